package model

type AuditEntry struct {
	WorkflowID  string  `gorm:"column:workflow_id;type:varchar(36);primaryKey"`
	Seq         uint64  `gorm:"column:seq;primaryKey;autoIncrement:false"`
	CapaID      string  `gorm:"column:capa_id;type:varchar(32);not null;index"`
	Actor       string  `gorm:"column:actor;type:text;not null"`
	Action      string  `gorm:"column:action;type:varchar(64);not null"`
	BeforeJSON  string  `gorm:"column:before_json;type:text;not null"`
	AfterJSON   string  `gorm:"column:after_json;type:text;not null"`
	Reason      string  `gorm:"column:reason;type:text;not null;default:''"`
	CorrectsSeq *uint64 `gorm:"column:corrects_seq"`
	PrevHash    string  `gorm:"column:prev_hash;type:varchar(64);not null;default:''"`
	EntryHash   string  `gorm:"column:entry_hash;type:varchar(64);not null"`
	CreatedAt   string  `gorm:"column:created_at;type:text;not null"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}
