package model

type Evidence struct {
	EvidenceID     string  `gorm:"column:evidence_id;type:varchar(36);primaryKey"`
	ActionID       string  `gorm:"column:action_id;type:varchar(36);not null;index"`
	CapaID         string  `gorm:"column:capa_id;type:varchar(32);not null;index"`
	Title          string  `gorm:"column:title;type:text;not null"`
	Description    string  `gorm:"column:description;type:text;not null"`
	Type           string  `gorm:"column:type;type:varchar(16);not null"`
	URL            string  `gorm:"column:url;type:text;not null;default:''"`
	FileRef        string  `gorm:"column:file_ref;type:text;not null;default:''"`
	SubmittedBy    string  `gorm:"column:submitted_by;type:text;not null"`
	SubmittedAt    string  `gorm:"column:submitted_at;type:text;not null"`
	ReviewedBy     string  `gorm:"column:reviewed_by;type:text;not null;default:''"`
	Outcome        string  `gorm:"column:outcome;type:varchar(16);not null;default:''"`
	ReviewComments string  `gorm:"column:review_comments;type:text;not null;default:''"`
	ReviewedAt     *string `gorm:"column:reviewed_at;type:text"`
}

func (Evidence) TableName() string {
	return "evidence"
}
