package capa

import (
	"strings"

	"eqms/internal/errs"
)

// Phase is a CAPA workflow phase.
type Phase string

const (
	PhaseCorrection                Phase = "correction"
	PhaseRootCauseAnalysis         Phase = "root_cause_analysis"
	PhaseCorrectiveAction          Phase = "corrective_action"
	PhaseEffectivenessVerification Phase = "effectiveness_verification"
	PhaseClosed                    Phase = "closed"
	PhaseCancelled                 Phase = "cancelled"
)

// InitialPhase is the phase every workflow starts in.
const InitialPhase = PhaseCorrection

// successors is the exhaustive forward-only transition table.
// Terminal phases have no entry.
var successors = map[Phase]Phase{
	PhaseCorrection:                PhaseRootCauseAnalysis,
	PhaseRootCauseAnalysis:         PhaseCorrectiveAction,
	PhaseCorrectiveAction:          PhaseEffectivenessVerification,
	PhaseEffectivenessVerification: PhaseClosed,
}

var phaseAliases = map[string]Phase{
	"correction":                 PhaseCorrection,
	"rootcauseanalysis":          PhaseRootCauseAnalysis,
	"root_cause_analysis":        PhaseRootCauseAnalysis,
	"rca":                        PhaseRootCauseAnalysis,
	"correctiveaction":           PhaseCorrectiveAction,
	"corrective_action":          PhaseCorrectiveAction,
	"effectivenessverification":  PhaseEffectivenessVerification,
	"effectiveness_verification": PhaseEffectivenessVerification,
	"closed":                     PhaseClosed,
	"cancelled":                  PhaseCancelled,
	"canceled":                   PhaseCancelled,
}

// Phases lists every phase in workflow order, terminal phases last.
func Phases() []Phase {
	return []Phase{
		PhaseCorrection,
		PhaseRootCauseAnalysis,
		PhaseCorrectiveAction,
		PhaseEffectivenessVerification,
		PhaseClosed,
		PhaseCancelled,
	}
}

// ParsePhase accepts the canonical snake_case name, the CamelCase name used in
// the regulatory SOPs and a few short aliases.
func ParsePhase(raw string) (Phase, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	if p, ok := phaseAliases[key]; ok {
		return p, nil
	}
	if p, ok := phaseAliases[strings.ReplaceAll(key, "_", "")]; ok {
		return p, nil
	}
	return "", errs.E(errs.KindValidation, "unknown phase %q", raw)
}

func (p Phase) Valid() bool {
	if p == PhaseClosed || p == PhaseCancelled {
		return true
	}
	_, ok := successors[p]
	return ok
}

func (p Phase) IsTerminal() bool {
	return p == PhaseClosed || p == PhaseCancelled
}

// Successor returns the single forward successor of p.
func (p Phase) Successor() (Phase, bool) {
	next, ok := successors[p]
	return next, ok
}

// Label is the human-readable phase name.
func (p Phase) Label() string {
	switch p {
	case PhaseCorrection:
		return "Correction"
	case PhaseRootCauseAnalysis:
		return "Root Cause Analysis"
	case PhaseCorrectiveAction:
		return "Corrective Action"
	case PhaseEffectivenessVerification:
		return "Effectiveness Verification"
	case PhaseClosed:
		return "Closed"
	case PhaseCancelled:
		return "Cancelled"
	default:
		return string(p)
	}
}

// ValidateTransition checks that a workflow in from may move to to.
// Terminal sources fail with invalid_state, anything other than the successor
// or cancellation fails with illegal_transition.
func ValidateTransition(from, to Phase) error {
	if !from.Valid() {
		return errs.E(errs.KindInvalidState, "workflow is in unknown phase %q", from)
	}
	if from.IsTerminal() {
		return errs.E(errs.KindInvalidState, "workflow is %s; no further transitions are allowed", from.Label())
	}
	if to == PhaseCancelled {
		return nil
	}
	next, _ := from.Successor()
	if to != next {
		return errs.E(errs.KindIllegalTransition, "cannot move from %s to %q; next phase is %s", from.Label(), to, next.Label())
	}
	return nil
}
