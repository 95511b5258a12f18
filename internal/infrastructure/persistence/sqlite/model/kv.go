package model

// KV is a cache row. ExpiresAt is unix nanoseconds, 0 means no expiry.
type KV struct {
	Key       string `gorm:"column:key;type:varchar(191);primaryKey"`
	Value     string `gorm:"column:value;type:text;not null"`
	ExpiresAt int64  `gorm:"column:expires_at;not null;default:0"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (KV) TableName() string {
	return "eqms_kv"
}

// All lists every table model in migration order.
func All() []any {
	return []any{
		&CapaRecord{},
		&Workflow{},
		&PhaseTransition{},
		&ApprovalRecord{},
		&CapaAction{},
		&Evidence{},
		&AuditEntry{},
		&Sequence{},
		&KV{},
	}
}
