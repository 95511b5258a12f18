package capa

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"eqms/internal/errs"
)

type EvidenceType string

const (
	EvidenceDocument EvidenceType = "document"
	EvidenceLink     EvidenceType = "link"
)

type ReviewOutcome string

const (
	OutcomeApproved ReviewOutcome = "approved"
	OutcomeRejected ReviewOutcome = "rejected"
)

func ParseReviewOutcome(raw string) (ReviewOutcome, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved", "approve", "accept", "accepted":
		return OutcomeApproved, nil
	case "rejected", "reject", "deny", "denied":
		return OutcomeRejected, nil
	default:
		return "", errs.E(errs.KindValidation, "unknown review outcome %q", raw)
	}
}

// EvidenceDraft is contributor input for a new evidence item.
type EvidenceDraft struct {
	Title       string       `validate:"required,min=3"`
	Description string       `validate:"required,min=10"`
	Type        EvidenceType `validate:"required,oneof=document link"`
	URL         string
	FileRef     string
}

// Normalize trims all fields in place.
func (d *EvidenceDraft) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Type = EvidenceType(strings.ToLower(strings.TrimSpace(string(d.Type))))
	d.URL = strings.TrimSpace(d.URL)
	d.FileRef = strings.TrimSpace(d.FileRef)
}

// Validate checks field lengths and that a link carries a well-formed URL and
// a document carries a file reference.
func (d EvidenceDraft) Validate() error {
	if err := validate.Struct(d); err != nil {
		return validationError(err)
	}
	switch d.Type {
	case EvidenceLink:
		if err := validate.Var(d.URL, "required,url"); err != nil {
			return errs.E(errs.KindValidation, "link evidence requires a well-formed url")
		}
	case EvidenceDocument:
		if d.FileRef == "" {
			return errs.E(errs.KindValidation, "document evidence requires a file reference")
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validationError flattens validator output into a single validation error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errs.WithKind(errs.KindValidation, err, "invalid input")
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, describeFieldError(fe))
	}
	return errs.E(errs.KindValidation, "%s", strings.Join(parts, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "url":
		return field + " must be a well-formed url"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
