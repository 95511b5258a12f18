package capa

import (
	"strings"
	"time"
)

// ActionDraft is the input for a new CAPA action.
type ActionDraft struct {
	Title       string `validate:"required,min=3,max=200"`
	Description string
	Owner       string `validate:"required"`
	DueDate     *time.Time
}

func (d *ActionDraft) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Owner = strings.TrimSpace(d.Owner)
}

func (d ActionDraft) Validate() error {
	if err := validate.Struct(d); err != nil {
		return validationError(err)
	}
	return nil
}

// EditorRoles may edit CAPA fields besides the initiator and assignee.
var EditorRoles = []Role{RoleCapaOwner, RoleQualityEngineer, RoleQualityManager}

// AssignerRoles may assign the approver of a workflow.
var AssignerRoles = []Role{RoleCapaOwner, RoleQualityManager}

// AuditCorrectorRoles may append corrections to the audit trail.
var AuditCorrectorRoles = []Role{RoleQualityManager}
