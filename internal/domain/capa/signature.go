package capa

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"eqms/internal/errs"
)

// Signature is an electronic signature: who signed, when, and what the
// signature means (for example "approved root cause analysis").
type Signature struct {
	UserID   string
	SignedAt time.Time
	Meaning  string
}

// Validate checks the signature is complete and was made by the approver.
func (s Signature) Validate(approver Principal) error {
	if strings.TrimSpace(s.UserID) == "" {
		return errs.E(errs.KindValidation, "signature user id is required")
	}
	if s.SignedAt.IsZero() {
		return errs.E(errs.KindValidation, "signature timestamp is required")
	}
	if strings.TrimSpace(s.Meaning) == "" {
		return errs.E(errs.KindValidation, "signature meaning statement is required")
	}
	if strings.TrimSpace(s.UserID) != approver.UserID {
		return errs.E(errs.KindValidation, "signature user %q does not match approver %q", s.UserID, approver.UserID)
	}
	return nil
}

// Hash binds the signature to one transition of one workflow.
func (s Signature) Hash(workflowID string, from, to Phase) string {
	return digest(
		workflowID,
		string(from),
		string(to),
		strings.TrimSpace(s.UserID),
		s.SignedAt.UTC().Format(time.RFC3339Nano),
		strings.TrimSpace(s.Meaning),
	)
}

func digest(parts ...string) string {
	h := sha3.New256()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
