package capa

import (
	"testing"
	"time"

	"eqms/internal/errs"
)

func TestSignatureValidate(t *testing.T) {
	approver := NewPrincipal("qm-1", "quality_manager")
	at := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sig  Signature
		ok   bool
	}{
		{"complete", Signature{UserID: "qm-1", SignedAt: at, Meaning: "approve closure"}, true},
		{"missing user", Signature{SignedAt: at, Meaning: "approve"}, false},
		{"missing time", Signature{UserID: "qm-1", Meaning: "approve"}, false},
		{"missing meaning", Signature{UserID: "qm-1", SignedAt: at, Meaning: "  "}, false},
		{"other signer", Signature{UserID: "qm-2", SignedAt: at, Meaning: "approve"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sig.Validate(approver)
			if tt.ok && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if !tt.ok && !errs.Is(err, errs.KindValidation) {
				t.Fatalf("Validate() error = %v, want validation", err)
			}
		})
	}
}

func TestSignatureHashBindsTransition(t *testing.T) {
	sig := Signature{UserID: "qm-1", SignedAt: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), Meaning: "approve"}

	h1 := sig.Hash("wf-1", PhaseCorrection, PhaseRootCauseAnalysis)
	h2 := sig.Hash("wf-1", PhaseCorrection, PhaseRootCauseAnalysis)
	if h1 != h2 || len(h1) != 64 {
		t.Fatalf("hash not stable: %q %q", h1, h2)
	}
	if h1 == sig.Hash("wf-2", PhaseCorrection, PhaseRootCauseAnalysis) {
		t.Fatalf("hash must depend on workflow")
	}
	if h1 == sig.Hash("wf-1", PhaseCorrection, PhaseCancelled) {
		t.Fatalf("hash must depend on target phase")
	}
}
