package capa

import (
	"context"
	"strings"

	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/errs"
	"eqms/internal/ports"
)

// CreateAction adds an action to the current phase of a CAPA. Evidence is
// attached to actions, and action sign-off feeds the later phase gates.
func (s *Service) CreateAction(ctx context.Context, actor domaincapa.Principal, capaID string, draft domaincapa.ActionDraft) (ActionView, error) {
	if err := s.ready(ctx); err != nil {
		return ActionView{}, err
	}
	if err := requireActor(actor); err != nil {
		return ActionView{}, err
	}
	capaID = strings.TrimSpace(capaID)
	if capaID == "" {
		return ActionView{}, errs.E(errs.KindValidation, "capa id is required")
	}
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return ActionView{}, err
	}

	now := s.now()
	var action ports.CapaAction
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		record, err := s.repo.GetCapa(txCtx, capaID)
		if err != nil {
			return mapRepoErr(err, "capa "+capaID)
		}
		wf, err := s.repo.GetWorkflowByCapa(txCtx, capaID)
		if err != nil {
			return mapRepoErr(err, "workflow of capa "+capaID)
		}
		if err := requireNonTerminal(wf); err != nil {
			return err
		}
		if actor.UserID != record.Initiator && actor.UserID != record.Assignee && !actor.HasAnyRole(domaincapa.EditorRoles) {
			return errs.E(errs.KindAuthorization,
				"only the initiator, the assignee or one of %s may add actions to %s", joinRoles(domaincapa.EditorRoles), capaID)
		}

		action = ports.CapaAction{
			ActionID:    s.newID(),
			CapaID:      capaID,
			WorkflowID:  wf.WorkflowID,
			Phase:       wf.Phase,
			Title:       draft.Title,
			Description: draft.Description,
			Owner:       draft.Owner,
			CreatedAt:   formatTime(now),
		}
		if draft.DueDate != nil {
			action.DueDate = formatDate(*draft.DueDate)
		}
		if err := s.repo.CreateAction(txCtx, action); err != nil {
			return err
		}

		_, err = s.appendAuditTx(txCtx, auditRecord{
			WorkflowID: wf.WorkflowID,
			CapaID:     capaID,
			Actor:      actor.UserID,
			Action:     domaincapa.AuditActionCreated,
			After:      newActionView(action),
			At:         now,
		})
		return err
	}); err != nil {
		return ActionView{}, err
	}
	return newActionView(action), nil
}

// ListActions returns the actions of a CAPA, optionally limited to a phase.
func (s *Service) ListActions(ctx context.Context, capaID string, phase string) ([]ActionView, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	capaID = strings.TrimSpace(capaID)
	if capaID == "" {
		return nil, errs.E(errs.KindValidation, "capa id is required")
	}
	filter := ports.ActionFilter{CapaID: capaID}
	if strings.TrimSpace(phase) != "" {
		p, err := domaincapa.ParsePhase(phase)
		if err != nil {
			return nil, err
		}
		filter.Phase = string(p)
	}

	if _, err := s.repo.GetCapa(ctx, capaID); err != nil {
		return nil, mapRepoErr(err, "capa "+capaID)
	}
	actions, err := s.repo.ListActions(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]ActionView, 0, len(actions))
	for _, a := range actions {
		items = append(items, newActionView(a))
	}
	return items, nil
}

type VerifyActionInput struct {
	ActionID string
	Verifier domaincapa.Principal
	Outcome  string
	Comments string
}

// VerifyAction signs off an action once every evidence item under it has
// been reviewed.
func (s *Service) VerifyAction(ctx context.Context, input VerifyActionInput) (ActionVerification, error) {
	if err := s.ready(ctx); err != nil {
		return ActionVerification{}, err
	}
	if err := requireActor(input.Verifier); err != nil {
		return ActionVerification{}, err
	}
	actionID := strings.TrimSpace(input.ActionID)
	if actionID == "" {
		return ActionVerification{}, errs.E(errs.KindValidation, "action id is required")
	}
	comments := strings.TrimSpace(input.Comments)
	policy := s.policy.Current()
	now := s.now()

	var (
		action ports.CapaAction
		result ActionVerification
	)
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		action, err = s.repo.GetAction(txCtx, actionID)
		if err != nil {
			return mapRepoErr(err, "action "+actionID)
		}

		evidence, err := s.repo.ListEvidence(txCtx, ports.EvidenceFilter{CapaID: action.CapaID, ActionIDs: []string{actionID}})
		if err != nil {
			return err
		}
		if len(evidence) == 0 {
			return errs.E(errs.KindPrecondition, "action %s has no evidence to verify", actionID)
		}
		result = ActionVerification{ActionID: actionID, EvidenceTotal: len(evidence)}
		for _, e := range evidence {
			if e.ReviewedBy == "" {
				return errs.E(errs.KindPrecondition, "evidence %s has not been reviewed", e.EvidenceID)
			}
			if domaincapa.ReviewOutcome(e.Outcome) == domaincapa.OutcomeApproved {
				result.EvidenceApproved++
			} else {
				result.EvidenceRejected++
			}
		}

		if action.VerifiedBy != "" {
			return errs.E(errs.KindAlreadyReviewed, "action %s was already verified by %s", actionID, action.VerifiedBy)
		}
		if !policy.CanReview(input.Verifier) {
			return errs.E(errs.KindAuthorization, "verifying actions requires one of: %s", joinRoles(policy.ReviewerRoles))
		}
		if input.Verifier.UserID == action.Owner {
			return errs.E(errs.KindAuthorization, "action owner %s cannot verify their own action", action.Owner)
		}

		outcome, err := domaincapa.ParseReviewOutcome(input.Outcome)
		if err != nil {
			return err
		}
		if outcome == domaincapa.OutcomeRejected && comments == "" {
			return errs.E(errs.KindValidation, "comments are required when rejecting")
		}

		wf, err := s.repo.GetWorkflow(txCtx, action.WorkflowID)
		if err != nil {
			return mapRepoErr(err, "workflow "+action.WorkflowID)
		}
		if err := requireNonTerminal(wf); err != nil {
			return err
		}

		stamp := formatTime(now)
		if err := s.repo.MarkActionVerified(txCtx, ports.ActionVerificationUpdate{
			ActionID:   actionID,
			VerifiedBy: input.Verifier.UserID,
			Outcome:    string(outcome),
			Comments:   comments,
			VerifiedAt: stamp,
		}); err != nil {
			return mapRepoErr(err, "action "+actionID)
		}

		result.VerifiedBy = input.Verifier.UserID
		result.Outcome = string(outcome)
		result.Comments = comments
		result.VerifiedAt = stamp

		_, err = s.appendAuditTx(txCtx, auditRecord{
			WorkflowID: wf.WorkflowID,
			CapaID:     action.CapaID,
			Actor:      input.Verifier.UserID,
			Action:     domaincapa.AuditActionVerified,
			Before:     newActionView(action),
			After:      result,
			At:         now,
		})
		return err
	}); err != nil {
		return ActionVerification{}, err
	}

	s.publishBestEffort(ctx, domaincapa.DomainEvent{
		Type:       domaincapa.EventActionVerified,
		WorkflowID: action.WorkflowID,
		CapaID:     action.CapaID,
		Actor:      input.Verifier.UserID,
		OccurredAt: now,
		Payload: map[string]any{
			"actionId": actionID,
			"outcome":  result.Outcome,
		},
	})
	return result, nil
}
