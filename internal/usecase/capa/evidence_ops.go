package capa

import (
	"context"
	"strings"

	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/errs"
	"eqms/internal/ports"
)

// AttachEvidence appends an unreviewed evidence item to an action of the
// workflow's current phase.
func (s *Service) AttachEvidence(ctx context.Context, actor domaincapa.Principal, actionID string, draft domaincapa.EvidenceDraft) (EvidenceView, error) {
	if err := s.ready(ctx); err != nil {
		return EvidenceView{}, err
	}
	if err := requireActor(actor); err != nil {
		return EvidenceView{}, err
	}
	actionID = strings.TrimSpace(actionID)
	if actionID == "" {
		return EvidenceView{}, errs.E(errs.KindValidation, "action id is required")
	}
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return EvidenceView{}, err
	}

	now := s.now()
	var (
		evidence   ports.Evidence
		workflowID string
	)
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		action, err := s.repo.GetAction(txCtx, actionID)
		if err != nil {
			return mapRepoErr(err, "action "+actionID)
		}
		wf, err := s.repo.GetWorkflow(txCtx, action.WorkflowID)
		if err != nil {
			return mapRepoErr(err, "workflow "+action.WorkflowID)
		}
		if err := requireNonTerminal(wf); err != nil {
			return err
		}
		if action.Phase != wf.Phase {
			return errs.E(errs.KindInvalidState,
				"action %s belongs to %s but the workflow is in %s",
				actionID, domaincapa.Phase(action.Phase).Label(), domaincapa.Phase(wf.Phase).Label())
		}
		workflowID = wf.WorkflowID

		evidence = ports.Evidence{
			EvidenceID:  s.newID(),
			ActionID:    actionID,
			CapaID:      action.CapaID,
			Title:       draft.Title,
			Description: draft.Description,
			Type:        string(draft.Type),
			URL:         draft.URL,
			FileRef:     draft.FileRef,
			SubmittedBy: actor.UserID,
			SubmittedAt: formatTime(now),
		}
		if err := s.repo.CreateEvidence(txCtx, evidence); err != nil {
			return err
		}

		_, err = s.appendAuditTx(txCtx, auditRecord{
			WorkflowID: wf.WorkflowID,
			CapaID:     action.CapaID,
			Actor:      actor.UserID,
			Action:     domaincapa.AuditEvidenceAttached,
			After:      newEvidenceView(evidence),
			At:         now,
		})
		return err
	}); err != nil {
		return EvidenceView{}, err
	}

	s.publishBestEffort(ctx, domaincapa.DomainEvent{
		Type:       domaincapa.EventEvidenceAttached,
		WorkflowID: workflowID,
		CapaID:     evidence.CapaID,
		Actor:      actor.UserID,
		OccurredAt: now,
		Payload: map[string]any{
			"evidenceId": evidence.EvidenceID,
			"actionId":   actionID,
		},
	})
	return newEvidenceView(evidence), nil
}

func (s *Service) ListEvidence(ctx context.Context, actionID string) ([]EvidenceView, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	actionID = strings.TrimSpace(actionID)
	if actionID == "" {
		return nil, errs.E(errs.KindValidation, "action id is required")
	}

	action, err := s.repo.GetAction(ctx, actionID)
	if err != nil {
		return nil, mapRepoErr(err, "action "+actionID)
	}
	rows, err := s.repo.ListEvidence(ctx, ports.EvidenceFilter{CapaID: action.CapaID, ActionIDs: []string{actionID}})
	if err != nil {
		return nil, err
	}
	items := make([]EvidenceView, 0, len(rows))
	for _, e := range rows {
		items = append(items, newEvidenceView(e))
	}
	return items, nil
}

type VerifyEvidenceInput struct {
	EvidenceID string
	Reviewer   domaincapa.Principal
	Comments   string
	Outcome    string
}

// VerifyEvidence records the single review of an evidence item. The reviewer
// must not be the submitter.
func (s *Service) VerifyEvidence(ctx context.Context, input VerifyEvidenceInput) (EvidenceView, error) {
	if err := s.ready(ctx); err != nil {
		return EvidenceView{}, err
	}
	if err := requireActor(input.Reviewer); err != nil {
		return EvidenceView{}, err
	}
	evidenceID := strings.TrimSpace(input.EvidenceID)
	if evidenceID == "" {
		return EvidenceView{}, errs.E(errs.KindValidation, "evidence id is required")
	}
	comments := strings.TrimSpace(input.Comments)
	policy := s.policy.Current()
	now := s.now()

	var (
		reviewed   ports.Evidence
		workflowID string
	)
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		evidence, err := s.repo.GetEvidence(txCtx, evidenceID)
		if err != nil {
			return mapRepoErr(err, "evidence "+evidenceID)
		}
		if input.Reviewer.UserID == evidence.SubmittedBy {
			return errs.E(errs.KindAuthorization, "evidence %s cannot be reviewed by its submitter", evidenceID)
		}
		if evidence.ReviewedBy != "" {
			return errs.E(errs.KindAlreadyReviewed, "evidence %s was already reviewed by %s", evidenceID, evidence.ReviewedBy)
		}
		if !policy.CanReview(input.Reviewer) {
			return errs.E(errs.KindAuthorization, "reviewing evidence requires one of: %s", joinRoles(policy.ReviewerRoles))
		}
		outcome, err := domaincapa.ParseReviewOutcome(input.Outcome)
		if err != nil {
			return err
		}
		if outcome == domaincapa.OutcomeRejected && comments == "" {
			return errs.E(errs.KindValidation, "comments are required when rejecting")
		}

		action, err := s.repo.GetAction(txCtx, evidence.ActionID)
		if err != nil {
			return mapRepoErr(err, "action "+evidence.ActionID)
		}
		wf, err := s.repo.GetWorkflow(txCtx, action.WorkflowID)
		if err != nil {
			return mapRepoErr(err, "workflow "+action.WorkflowID)
		}
		if err := requireNonTerminal(wf); err != nil {
			return err
		}
		workflowID = wf.WorkflowID

		stamp := formatTime(now)
		if err := s.repo.MarkEvidenceReviewed(txCtx, ports.EvidenceReview{
			EvidenceID: evidenceID,
			ReviewedBy: input.Reviewer.UserID,
			Outcome:    string(outcome),
			Comments:   comments,
			ReviewedAt: stamp,
		}); err != nil {
			return mapRepoErr(err, "evidence "+evidenceID)
		}

		before := newEvidenceView(evidence)
		reviewed = evidence
		reviewed.ReviewedBy = input.Reviewer.UserID
		reviewed.Outcome = string(outcome)
		reviewed.ReviewComments = comments
		reviewed.ReviewedAt = &stamp

		_, err = s.appendAuditTx(txCtx, auditRecord{
			WorkflowID: wf.WorkflowID,
			CapaID:     evidence.CapaID,
			Actor:      input.Reviewer.UserID,
			Action:     domaincapa.AuditEvidenceVerified,
			Before:     before,
			After:      newEvidenceView(reviewed),
			At:         now,
		})
		return err
	}); err != nil {
		return EvidenceView{}, err
	}

	s.publishBestEffort(ctx, domaincapa.DomainEvent{
		Type:       domaincapa.EventEvidenceVerified,
		WorkflowID: workflowID,
		CapaID:     reviewed.CapaID,
		Actor:      input.Reviewer.UserID,
		OccurredAt: now,
		Payload: map[string]any{
			"evidenceId": evidenceID,
			"actionId":   reviewed.ActionID,
			"outcome":    reviewed.Outcome,
		},
	})
	return newEvidenceView(reviewed), nil
}
