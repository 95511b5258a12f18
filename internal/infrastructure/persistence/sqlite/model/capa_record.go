package model

import "gorm.io/gorm"

type CapaRecord struct {
	CapaID                   string         `gorm:"column:capa_id;type:varchar(32);primaryKey"`
	Title                    string         `gorm:"column:title;type:text;not null"`
	Description              string         `gorm:"column:description;type:text;not null"`
	Source                   string         `gorm:"column:source;type:varchar(16);not null;index"`
	RiskPriority             string         `gorm:"column:risk_priority;type:varchar(16);not null;index"`
	PatientSafetyImpact      bool           `gorm:"column:patient_safety_impact;not null;default:false"`
	ProductPerformanceImpact bool           `gorm:"column:product_performance_impact;not null;default:false"`
	ComplianceImpact         bool           `gorm:"column:compliance_impact;not null;default:false"`
	Initiator                string         `gorm:"column:initiator;type:text;not null"`
	Assignee                 string         `gorm:"column:assignee;type:text;not null;default:''"`
	DueDate                  string         `gorm:"column:due_date;type:varchar(10);not null"`
	ClosedDate               *string        `gorm:"column:closed_date;type:varchar(10)"`
	CreatedAt                string         `gorm:"column:created_at;type:text;not null"`
	UpdatedAt                string         `gorm:"column:updated_at;type:text;not null"`
	DeletedAt                gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (CapaRecord) TableName() string {
	return "capa_records"
}
