package model

type CapaAction struct {
	ActionID             string  `gorm:"column:action_id;type:varchar(36);primaryKey"`
	CapaID               string  `gorm:"column:capa_id;type:varchar(32);not null;index:idx_capa_actions_capa_phase,priority:1"`
	WorkflowID           string  `gorm:"column:workflow_id;type:varchar(36);not null"`
	Phase                string  `gorm:"column:phase;type:varchar(32);not null;index:idx_capa_actions_capa_phase,priority:2"`
	Title                string  `gorm:"column:title;type:text;not null"`
	Description          string  `gorm:"column:description;type:text;not null;default:''"`
	Owner                string  `gorm:"column:owner;type:text;not null"`
	DueDate              string  `gorm:"column:due_date;type:varchar(10);not null;default:''"`
	VerifiedBy           string  `gorm:"column:verified_by;type:text;not null;default:''"`
	VerificationOutcome  string  `gorm:"column:verification_outcome;type:varchar(16);not null;default:''"`
	VerificationComments string  `gorm:"column:verification_comments;type:text;not null;default:''"`
	VerifiedAt           *string `gorm:"column:verified_at;type:text"`
	CreatedAt            string  `gorm:"column:created_at;type:text;not null"`
}

func (CapaAction) TableName() string {
	return "capa_actions"
}
