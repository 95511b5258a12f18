package capa

import (
	"fmt"
	"strings"

	"eqms/internal/errs"
)

// Gate holds the exit criteria of a phase.
type Gate struct {
	ApproverRoles           []Role
	RequireEvidence         bool
	RequireReviewedEvidence bool
	RequireActionSignOff    bool
}

func (g Gate) Allows(p Principal) bool {
	return p.HasAnyRole(g.ApproverRoles)
}

// GatePolicy maps every non-terminal phase to its exit gate.
type GatePolicy struct {
	Gates         map[Phase]Gate
	Cancel        Gate
	ReviewerRoles []Role
}

func DefaultGatePolicy() GatePolicy {
	reviewed := func(roles ...Role) Gate {
		return Gate{ApproverRoles: roles, RequireEvidence: true, RequireReviewedEvidence: true}
	}
	signedOff := func(roles ...Role) Gate {
		g := reviewed(roles...)
		g.RequireActionSignOff = true
		return g
	}

	return GatePolicy{
		Gates: map[Phase]Gate{
			PhaseCorrection:                reviewed(RoleCapaOwner, RoleQualityEngineer, RoleQualityManager),
			PhaseRootCauseAnalysis:         reviewed(RoleQualityEngineer, RoleQualityManager),
			PhaseCorrectiveAction:          signedOff(RoleQualityEngineer, RoleQualityManager),
			PhaseEffectivenessVerification: signedOff(RoleQualityManager),
		},
		Cancel:        Gate{ApproverRoles: []Role{RoleQualityManager}},
		ReviewerRoles: []Role{RoleQualityEngineer, RoleQualityManager},
	}
}

// Validate ensures every non-terminal phase has a gate with at least one role.
func (p GatePolicy) Validate() error {
	for from := range successors {
		g, ok := p.Gates[from]
		if !ok {
			return fmt.Errorf("gate for phase %s is missing", from)
		}
		if len(g.ApproverRoles) == 0 {
			return fmt.Errorf("gate for phase %s has no approver roles", from)
		}
	}
	for phase := range p.Gates {
		if _, ok := successors[phase]; !ok {
			return fmt.Errorf("gate declared for phase %q which has no exit", phase)
		}
	}
	if len(p.Cancel.ApproverRoles) == 0 {
		return fmt.Errorf("cancel gate has no approver roles")
	}
	if len(p.ReviewerRoles) == 0 {
		return fmt.Errorf("reviewer roles are empty")
	}
	return nil
}

// GateFor returns the gate guarding the move out of from into to.
func (p GatePolicy) GateFor(from, to Phase) (Gate, error) {
	if to == PhaseCancelled {
		return p.Cancel, nil
	}
	g, ok := p.Gates[from]
	if !ok {
		return Gate{}, errs.E(errs.KindInternal, "no gate configured for phase %s", from)
	}
	return g, nil
}

func (p GatePolicy) CanReview(principal Principal) bool {
	return principal.HasAnyRole(p.ReviewerRoles)
}

// EvidenceStatus is the review state of one evidence item as seen by a gate.
type EvidenceStatus struct {
	ID       string
	ActionID string
	Reviewed bool
	Outcome  ReviewOutcome
}

// ActionStatus is the sign-off state of one action as seen by a gate.
type ActionStatus struct {
	ID       string
	Title    string
	Verified bool
	Outcome  ReviewOutcome
}

// GateCheck is everything a gate needs to decide on evidence completeness.
type GateCheck struct {
	Gate         Gate
	EvidenceRefs []string
	// CapaEvidence is all evidence attached to the CAPA, keyed by id.
	CapaEvidence map[string]EvidenceStatus
	// PhaseEvidence is the evidence attached to actions of the current phase.
	PhaseEvidence []EvidenceStatus
	PhaseActions  []ActionStatus
}

// EvaluateGate returns a precondition error describing the first unmet
// evidence requirement, or nil.
func EvaluateGate(c GateCheck) error {
	refs := NormalizeEvidenceRefs(c.EvidenceRefs)

	if c.Gate.RequireEvidence {
		if len(refs) == 0 {
			return errs.E(errs.KindPrecondition, "at least one evidence reference is required")
		}
		for _, ref := range refs {
			if _, ok := c.CapaEvidence[ref]; !ok {
				return errs.E(errs.KindPrecondition, "evidence %s is not attached to this CAPA", ref)
			}
		}
	}

	if c.Gate.RequireReviewedEvidence {
		for _, ev := range c.PhaseEvidence {
			if !ev.Reviewed {
				return errs.E(errs.KindPrecondition, "evidence %s has not been reviewed", ev.ID)
			}
		}
		for _, ref := range refs {
			ev, ok := c.CapaEvidence[ref]
			if !ok {
				continue
			}
			if !ev.Reviewed {
				return errs.E(errs.KindPrecondition, "evidence %s has not been reviewed", ref)
			}
			if ev.Outcome != OutcomeApproved {
				return errs.E(errs.KindPrecondition, "evidence %s was rejected in review", ref)
			}
		}
	}

	if c.Gate.RequireActionSignOff {
		if len(c.PhaseActions) == 0 {
			return errs.E(errs.KindPrecondition, "phase has no actions to sign off")
		}
		for _, a := range c.PhaseActions {
			if !a.Verified {
				return errs.E(errs.KindPrecondition, "action %s has not been verified", a.ID)
			}
			if a.Outcome != OutcomeApproved {
				return errs.E(errs.KindPrecondition, "action %s verification was rejected", a.ID)
			}
		}
	}

	return nil
}

// NormalizeEvidenceRefs trims, drops blanks and de-duplicates refs.
func NormalizeEvidenceRefs(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		ref := strings.TrimSpace(raw)
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}
