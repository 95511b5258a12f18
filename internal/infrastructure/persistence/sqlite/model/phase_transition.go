package model

type PhaseTransition struct {
	TransitionID     uint64 `gorm:"column:transition_id;primaryKey;autoIncrement"`
	WorkflowID       string `gorm:"column:workflow_id;type:varchar(36);not null;index"`
	FromPhase        string `gorm:"column:from_phase;type:varchar(32);not null"`
	ToPhase          string `gorm:"column:to_phase;type:varchar(32);not null"`
	ApproverID       string `gorm:"column:approver_id;type:text;not null"`
	Comments         string `gorm:"column:comments;type:text;not null;default:''"`
	SignatureHash    string `gorm:"column:signature_hash;type:varchar(64);not null"`
	EvidenceRefsJSON string `gorm:"column:evidence_refs_json;type:text;not null"`
	CreatedAt        string `gorm:"column:created_at;type:text;not null"`
}

func (PhaseTransition) TableName() string {
	return "phase_transitions"
}
