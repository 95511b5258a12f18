package capa

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"eqms/internal/errs"
)

type Source string

const (
	SourceComplaint Source = "complaint"
	SourceAudit     Source = "audit"
	SourceInternal  Source = "internal"
)

type RiskPriority string

const (
	RiskLow    RiskPriority = "low"
	RiskMedium RiskPriority = "medium"
	RiskHigh   RiskPriority = "high"
)

// CapaDraft is the submission that opens a CAPA.
type CapaDraft struct {
	Title                    string       `validate:"required,min=3,max=200"`
	Description              string       `validate:"required,min=10"`
	Source                   Source       `validate:"required,oneof=complaint audit internal"`
	RiskPriority             RiskPriority `validate:"required,oneof=low medium high"`
	PatientSafetyImpact      bool
	ProductPerformanceImpact bool
	ComplianceImpact         bool
	Initiator                string `validate:"required"`
	Assignee                 string
	AssignedApprover         string
	DueDate                  time.Time `validate:"required"`
}

func (d *CapaDraft) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Source = Source(strings.ToLower(strings.TrimSpace(string(d.Source))))
	d.RiskPriority = RiskPriority(strings.ToLower(strings.TrimSpace(string(d.RiskPriority))))
	d.Initiator = strings.TrimSpace(d.Initiator)
	d.Assignee = strings.TrimSpace(d.Assignee)
	d.AssignedApprover = strings.TrimSpace(d.AssignedApprover)
}

func (d CapaDraft) Validate() error {
	if err := validate.Struct(d); err != nil {
		return validationError(err)
	}
	return nil
}

// CapaPatch holds field edits; nil fields are left untouched.
type CapaPatch struct {
	Title        *string
	Description  *string
	RiskPriority *RiskPriority
	Assignee     *string
	DueDate      *time.Time
}

func (p CapaPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.RiskPriority == nil && p.Assignee == nil && p.DueDate == nil
}

func (p CapaPatch) Validate() error {
	if p.Title != nil {
		if err := validate.Var(strings.TrimSpace(*p.Title), "required,min=3,max=200"); err != nil {
			return errs.E(errs.KindValidation, "title must be 3 to 200 characters")
		}
	}
	if p.Description != nil {
		if err := validate.Var(strings.TrimSpace(*p.Description), "required,min=10"); err != nil {
			return errs.E(errs.KindValidation, "description must be at least 10 characters")
		}
	}
	if p.RiskPriority != nil {
		if err := validate.Var(string(*p.RiskPriority), "oneof=low medium high"); err != nil {
			return errs.E(errs.KindValidation, "risk priority must be one of [low medium high]")
		}
	}
	if p.DueDate != nil && p.DueDate.IsZero() {
		return errs.E(errs.KindValidation, "due date cannot be empty")
	}
	return nil
}

var capaIDPattern = regexp.MustCompile(`^([A-Z][A-Z0-9]*)-(\d{4})-(\d{3,})$`)

// FormatCapaID renders PREFIX-YYYY-NNN.
func FormatCapaID(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%03d", strings.ToUpper(prefix), year, seq)
}

// CapaSequenceName is the database sequence that numbers CAPAs within a year.
func CapaSequenceName(prefix string, year int) string {
	return fmt.Sprintf("capa:%s:%04d", strings.ToUpper(prefix), year)
}

func IsCapaID(raw string) bool {
	return capaIDPattern.MatchString(strings.TrimSpace(raw))
}
