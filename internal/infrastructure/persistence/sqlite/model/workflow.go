package model

import "gorm.io/gorm"

type Workflow struct {
	WorkflowID       string         `gorm:"column:workflow_id;type:varchar(36);primaryKey"`
	CapaID           string         `gorm:"column:capa_id;type:varchar(32);not null;uniqueIndex"`
	Phase            string         `gorm:"column:phase;type:varchar(32);not null;index"`
	AssignedApprover string         `gorm:"column:assigned_approver;type:text;not null;default:''"`
	Version          uint64         `gorm:"column:version;not null;default:1"`
	AuditSeq         uint64         `gorm:"column:audit_seq;not null;default:0"`
	CreatedAt        string         `gorm:"column:created_at;type:text;not null"`
	UpdatedAt        string         `gorm:"column:updated_at;type:text;not null"`
	DeletedAt        gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Workflow) TableName() string {
	return "workflows"
}
