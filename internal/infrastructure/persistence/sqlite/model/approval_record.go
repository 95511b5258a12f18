package model

type ApprovalRecord struct {
	ApprovalID    uint64 `gorm:"column:approval_id;primaryKey;autoIncrement"`
	TransitionID  uint64 `gorm:"column:transition_id;not null;uniqueIndex"`
	WorkflowID    string `gorm:"column:workflow_id;type:varchar(36);not null;index"`
	UserID        string `gorm:"column:user_id;type:text;not null"`
	Roles         string `gorm:"column:roles;type:text;not null"`
	Meaning       string `gorm:"column:meaning;type:text;not null"`
	SignedAt      string `gorm:"column:signed_at;type:text;not null"`
	SignatureHash string `gorm:"column:signature_hash;type:varchar(64);not null"`
}

func (ApprovalRecord) TableName() string {
	return "approval_records"
}
