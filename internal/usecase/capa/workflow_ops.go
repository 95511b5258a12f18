package capa

import (
	"context"
	"log/slog"
	"strings"

	"eqms/internal/bootstrap/logging"
	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/errs"
	"eqms/internal/ports"
)

func (s *Service) GetWorkflow(ctx context.Context, workflowID string) (WorkflowView, error) {
	if err := s.ready(ctx); err != nil {
		return WorkflowView{}, err
	}
	workflowID = strings.TrimSpace(workflowID)
	if workflowID == "" {
		return WorkflowView{}, errs.E(errs.KindValidation, "workflow id is required")
	}

	wf, err := s.repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return WorkflowView{}, mapRepoErr(err, "workflow "+workflowID)
	}
	transitions, err := s.repo.ListTransitions(ctx, workflowID)
	if err != nil {
		return WorkflowView{}, err
	}
	approvals, err := s.repo.ListApprovals(ctx, workflowID)
	if err != nil {
		return WorkflowView{}, err
	}
	return newWorkflowView(wf, transitions, approvals), nil
}

// PhaseOf returns the current phase, served from cache when possible.
func (s *Service) PhaseOf(ctx context.Context, workflowID string) (domaincapa.Phase, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	workflowID = strings.TrimSpace(workflowID)
	if workflowID == "" {
		return "", errs.E(errs.KindValidation, "workflow id is required")
	}

	key := cacheWorkflowPhaseKey(workflowID)
	if s.cache != nil {
		value, found, err := s.cache.Get(ctx, key)
		if err != nil {
			logging.Debug(ctx, "phase cache lookup failed", slog.String("workflow_id", workflowID), slog.Any("err", errs.Loggable(err)))
		}
		if found {
			if phase := domaincapa.Phase(value); phase.Valid() {
				return phase, nil
			}
		}
	}

	wf, err := s.repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return "", mapRepoErr(err, "workflow "+workflowID)
	}
	s.setCacheBestEffort(ctx, key, wf.Phase)
	return domaincapa.Phase(wf.Phase), nil
}

// AssignApprover records who is expected to sign the next gate. It does not
// restrict who may approve; gates are decided by role.
func (s *Service) AssignApprover(ctx context.Context, actor domaincapa.Principal, workflowID string, approverID string) (WorkflowView, error) {
	if err := s.ready(ctx); err != nil {
		return WorkflowView{}, err
	}
	if err := requireActor(actor); err != nil {
		return WorkflowView{}, err
	}
	workflowID = strings.TrimSpace(workflowID)
	approverID = strings.TrimSpace(approverID)
	if workflowID == "" {
		return WorkflowView{}, errs.E(errs.KindValidation, "workflow id is required")
	}
	if approverID == "" {
		return WorkflowView{}, errs.E(errs.KindValidation, "approver id is required")
	}

	now := s.now()
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		wf, err := s.repo.GetWorkflow(txCtx, workflowID)
		if err != nil {
			return mapRepoErr(err, "workflow "+workflowID)
		}
		if err := requireNonTerminal(wf); err != nil {
			return err
		}
		if !actor.HasAnyRole(domaincapa.AssignerRoles) {
			return errs.E(errs.KindAuthorization, "assigning an approver requires one of: %s", joinRoles(domaincapa.AssignerRoles))
		}

		updated, err := s.repo.UpdateWorkflow(txCtx, ports.WorkflowUpdate{
			WorkflowID:       wf.WorkflowID,
			ExpectedVersion:  wf.Version,
			Phase:            wf.Phase,
			AssignedApprover: approverID,
			UpdatedAt:        formatTime(now),
		})
		if err != nil {
			return mapRepoErr(err, "workflow "+workflowID)
		}

		_, err = s.appendAuditTx(txCtx, auditRecord{
			WorkflowID: wf.WorkflowID,
			CapaID:     wf.CapaID,
			Actor:      actor.UserID,
			Action:     domaincapa.AuditApproverAssigned,
			Before:     map[string]any{"assignedApprover": wf.AssignedApprover, "version": wf.Version},
			After:      map[string]any{"assignedApprover": updated.AssignedApprover, "version": updated.Version},
			At:         now,
		})
		return err
	}); err != nil {
		return WorkflowView{}, err
	}

	return s.GetWorkflow(ctx, workflowID)
}

type TransitionRequest struct {
	WorkflowID   string
	TargetPhase  string
	Approver     domaincapa.Principal
	EvidenceRefs []string
	Signature    domaincapa.Signature
	Comments     string
}

// RequestTransition moves a workflow through one phase gate. Checks run in a
// fixed order and the first failure is returned; on success the workflow
// update, transition, approval and audit entry commit together.
func (s *Service) RequestTransition(ctx context.Context, req TransitionRequest) (WorkflowView, error) {
	if err := s.ready(ctx); err != nil {
		return WorkflowView{}, err
	}
	workflowID := strings.TrimSpace(req.WorkflowID)
	if workflowID == "" {
		return WorkflowView{}, errs.E(errs.KindValidation, "workflow id is required")
	}
	target, err := domaincapa.ParsePhase(req.TargetPhase)
	if err != nil {
		return WorkflowView{}, err
	}
	refs := domaincapa.NormalizeEvidenceRefs(req.EvidenceRefs)
	comments := strings.TrimSpace(req.Comments)
	policy := s.policy.Current()
	now := s.now()

	var (
		from       domaincapa.Phase
		transition ports.PhaseTransition
		capaID     string
	)
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		wf, err := s.repo.GetWorkflow(txCtx, workflowID)
		if err != nil {
			return mapRepoErr(err, "workflow "+workflowID)
		}
		capaID = wf.CapaID
		from = domaincapa.Phase(wf.Phase)
		if err := requireNonTerminal(wf); err != nil {
			return err
		}
		if err := domaincapa.ValidateTransition(from, target); err != nil {
			return err
		}

		gate, err := policy.GateFor(from, target)
		if err != nil {
			return err
		}
		if err := requireActor(req.Approver); err != nil {
			return err
		}
		if !gate.Allows(req.Approver) {
			return errs.E(errs.KindAuthorization,
				"leaving %s for %s requires one of: %s", from.Label(), target.Label(), joinRoles(gate.ApproverRoles))
		}

		check, err := s.gateCheckTx(txCtx, wf, gate, refs)
		if err != nil {
			return err
		}
		if err := domaincapa.EvaluateGate(check); err != nil {
			return err
		}
		if err := req.Signature.Validate(req.Approver); err != nil {
			return err
		}

		stamp := formatTime(now)
		sigHash := req.Signature.Hash(wf.WorkflowID, from, target)

		updated, err := s.repo.UpdateWorkflow(txCtx, ports.WorkflowUpdate{
			WorkflowID:       wf.WorkflowID,
			ExpectedVersion:  wf.Version,
			Phase:            string(target),
			AssignedApprover: wf.AssignedApprover,
			UpdatedAt:        stamp,
		})
		if err != nil {
			return mapRepoErr(err, "workflow "+workflowID)
		}

		transition, err = s.repo.AppendTransition(txCtx, ports.PhaseTransition{
			WorkflowID:    wf.WorkflowID,
			FromPhase:     string(from),
			ToPhase:       string(target),
			ApproverID:    req.Approver.UserID,
			Comments:      comments,
			SignatureHash: sigHash,
			EvidenceRefs:  refs,
			CreatedAt:     stamp,
		})
		if err != nil {
			return err
		}

		if err := s.repo.CreateApproval(txCtx, ports.ApprovalRecord{
			TransitionID:  transition.TransitionID,
			WorkflowID:    wf.WorkflowID,
			UserID:        req.Approver.UserID,
			Roles:         req.Approver.RoleNames(),
			Meaning:       strings.TrimSpace(req.Signature.Meaning),
			SignedAt:      formatTime(req.Signature.SignedAt),
			SignatureHash: sigHash,
		}); err != nil {
			return err
		}

		if target == domaincapa.PhaseClosed {
			record, err := s.repo.GetCapa(txCtx, wf.CapaID)
			if err != nil {
				return mapRepoErr(err, "capa "+wf.CapaID)
			}
			record.ClosedDate = &stamp
			record.UpdatedAt = stamp
			if err := s.repo.UpdateCapa(txCtx, record); err != nil {
				return mapRepoErr(err, "capa "+wf.CapaID)
			}
		}

		_, err = s.appendAuditTx(txCtx, auditRecord{
			WorkflowID: wf.WorkflowID,
			CapaID:     wf.CapaID,
			Actor:      req.Approver.UserID,
			Action:     domaincapa.AuditPhaseTransition,
			Before:     map[string]any{"phase": from, "version": wf.Version},
			After: map[string]any{
				"phase":         target,
				"version":       updated.Version,
				"transitionId":  transition.TransitionID,
				"evidenceRefs":  refs,
				"signatureHash": sigHash,
				"comments":      comments,
			},
			At: now,
		})
		return err
	}); err != nil {
		return WorkflowView{}, err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.capa")),
		"workflow transitioned",
		slog.String("workflow_id", workflowID),
		slog.String("capa_id", capaID),
		slog.String("from", string(from)),
		slog.String("to", string(target)),
		slog.String("approver", req.Approver.UserID),
	)
	s.setCacheBestEffort(ctx, cacheWorkflowPhaseKey(workflowID), string(target))
	s.publishBestEffort(ctx, domaincapa.DomainEvent{
		Type:       domaincapa.EventPhaseTransitioned,
		WorkflowID: workflowID,
		CapaID:     capaID,
		Actor:      req.Approver.UserID,
		OccurredAt: now,
		Payload: map[string]any{
			"from":          string(from),
			"to":            string(target),
			"transitionId":  transition.TransitionID,
			"signatureHash": transition.SignatureHash,
		},
	})

	return s.GetWorkflow(ctx, workflowID)
}

// gateCheckTx loads the evidence and action state a gate needs. Gates that
// require nothing skip the queries.
func (s *Service) gateCheckTx(ctx context.Context, wf ports.Workflow, gate domaincapa.Gate, refs []string) (domaincapa.GateCheck, error) {
	check := domaincapa.GateCheck{Gate: gate, EvidenceRefs: refs}
	if !gate.RequireEvidence && !gate.RequireReviewedEvidence && !gate.RequireActionSignOff {
		return check, nil
	}

	all, err := s.repo.ListEvidence(ctx, ports.EvidenceFilter{CapaID: wf.CapaID})
	if err != nil {
		return check, err
	}
	check.CapaEvidence = make(map[string]domaincapa.EvidenceStatus, len(all))
	for _, e := range all {
		check.CapaEvidence[e.EvidenceID] = evidenceStatus(e)
	}

	actions, err := s.repo.ListActions(ctx, ports.ActionFilter{CapaID: wf.CapaID, Phase: wf.Phase})
	if err != nil {
		return check, err
	}
	actionIDs := make([]string, 0, len(actions))
	for _, a := range actions {
		actionIDs = append(actionIDs, a.ActionID)
		check.PhaseActions = append(check.PhaseActions, actionStatus(a))
	}

	phaseEvidence, err := s.repo.ListEvidence(ctx, ports.EvidenceFilter{CapaID: wf.CapaID, ActionIDs: actionIDs})
	if err != nil {
		return check, err
	}
	for _, e := range phaseEvidence {
		check.PhaseEvidence = append(check.PhaseEvidence, evidenceStatus(e))
	}
	return check, nil
}
