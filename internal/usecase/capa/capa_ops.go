package capa

import (
	"context"
	"strings"

	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/errs"
	"eqms/internal/ports"
)

// CreateCapa opens a CAPA record together with its workflow in the initial
// phase. The id is numbered from a database sequence per prefix and year.
func (s *Service) CreateCapa(ctx context.Context, actor domaincapa.Principal, draft domaincapa.CapaDraft) (CapaView, error) {
	if err := s.ready(ctx); err != nil {
		return CapaView{}, err
	}
	if err := requireActor(actor); err != nil {
		return CapaView{}, err
	}

	draft.Initiator = actor.UserID
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return CapaView{}, err
	}

	now := s.now()
	stamp := formatTime(now)

	var (
		record ports.CapaRecord
		wf     ports.Workflow
	)
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		seq, err := s.repo.NextSequence(txCtx, domaincapa.CapaSequenceName(s.idPrefix, now.Year()))
		if err != nil {
			return err
		}

		record = ports.CapaRecord{
			CapaID:                   domaincapa.FormatCapaID(s.idPrefix, now.Year(), seq),
			Title:                    draft.Title,
			Description:              draft.Description,
			Source:                   string(draft.Source),
			RiskPriority:             string(draft.RiskPriority),
			PatientSafetyImpact:      draft.PatientSafetyImpact,
			ProductPerformanceImpact: draft.ProductPerformanceImpact,
			ComplianceImpact:         draft.ComplianceImpact,
			Initiator:                draft.Initiator,
			Assignee:                 draft.Assignee,
			DueDate:                  formatDate(draft.DueDate),
			CreatedAt:                stamp,
			UpdatedAt:                stamp,
		}
		if err := s.repo.CreateCapa(txCtx, record); err != nil {
			return err
		}

		wf = ports.Workflow{
			WorkflowID:       s.newID(),
			CapaID:           record.CapaID,
			Phase:            string(domaincapa.InitialPhase),
			AssignedApprover: draft.AssignedApprover,
			Version:          1,
			CreatedAt:        stamp,
			UpdatedAt:        stamp,
		}
		if err := s.repo.CreateWorkflow(txCtx, wf); err != nil {
			return err
		}

		_, err = s.appendAuditTx(txCtx, auditRecord{
			WorkflowID: wf.WorkflowID,
			CapaID:     record.CapaID,
			Actor:      actor.UserID,
			Action:     domaincapa.AuditCapaCreated,
			After:      newCapaView(record, wf),
			At:         now,
		})
		return err
	}); err != nil {
		return CapaView{}, err
	}

	s.setCacheBestEffort(ctx, cacheWorkflowPhaseKey(wf.WorkflowID), wf.Phase)
	return newCapaView(record, wf), nil
}

func (s *Service) GetCapa(ctx context.Context, capaID string) (CapaView, error) {
	if err := s.ready(ctx); err != nil {
		return CapaView{}, err
	}
	capaID = strings.TrimSpace(capaID)
	if capaID == "" {
		return CapaView{}, errs.E(errs.KindValidation, "capa id is required")
	}

	record, err := s.repo.GetCapa(ctx, capaID)
	if err != nil {
		return CapaView{}, mapRepoErr(err, "capa "+capaID)
	}
	wf, err := s.repo.GetWorkflowByCapa(ctx, capaID)
	if err != nil {
		return CapaView{}, mapRepoErr(err, "workflow of capa "+capaID)
	}
	return newCapaView(record, wf), nil
}

type ListCapasInput struct {
	Phases       []string
	Source       string
	RiskPriority string
	Assignee     string
	Limit        int
}

func (s *Service) ListCapas(ctx context.Context, input ListCapasInput) ([]CapaView, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	filter := ports.CapaFilter{
		Source:       strings.ToLower(strings.TrimSpace(input.Source)),
		RiskPriority: strings.ToLower(strings.TrimSpace(input.RiskPriority)),
		Assignee:     strings.TrimSpace(input.Assignee),
		Limit:        input.Limit,
	}
	for _, raw := range input.Phases {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		phase, err := domaincapa.ParsePhase(raw)
		if err != nil {
			return nil, err
		}
		filter.Phases = append(filter.Phases, string(phase))
	}
	if filter.Limit < 0 {
		return nil, errs.E(errs.KindValidation, "limit must not be negative")
	}

	rows, err := s.repo.ListCapas(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]CapaView, 0, len(rows))
	for _, row := range rows {
		items = append(items, newCapaView(row.Capa, row.Workflow))
	}
	return items, nil
}

// UpdateCapa edits descriptive fields while the workflow is still open.
func (s *Service) UpdateCapa(ctx context.Context, actor domaincapa.Principal, capaID string, patch domaincapa.CapaPatch) (CapaView, error) {
	if err := s.ready(ctx); err != nil {
		return CapaView{}, err
	}
	if err := requireActor(actor); err != nil {
		return CapaView{}, err
	}
	capaID = strings.TrimSpace(capaID)
	if capaID == "" {
		return CapaView{}, errs.E(errs.KindValidation, "capa id is required")
	}
	if patch.Empty() {
		return CapaView{}, errs.E(errs.KindValidation, "no fields to update")
	}
	if err := patch.Validate(); err != nil {
		return CapaView{}, err
	}

	now := s.now()
	var view CapaView
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
				"only the initiator, the assignee or one of %s may edit %s", joinRoles(domaincapa.EditorRoles), capaID)
		}

		before := newCapaView(record, wf)
		applyPatch(&record, patch)
		record.UpdatedAt = formatTime(now)
		if err := s.repo.UpdateCapa(txCtx, record); err != nil {
			return mapRepoErr(err, "capa "+capaID)
		}

		view = newCapaView(record, wf)
		_, err = s.appendAuditTx(txCtx, auditRecord{
			WorkflowID: wf.WorkflowID,
			CapaID:     capaID,
			Actor:      actor.UserID,
			Action:     domaincapa.AuditCapaUpdated,
			Before:     before,
			After:      view,
			At:         now,
		})
		return err
	}); err != nil {
		return CapaView{}, err
	}
	return view, nil
}

func applyPatch(record *ports.CapaRecord, patch domaincapa.CapaPatch) {
	if patch.Title != nil {
		record.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		record.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.RiskPriority != nil {
		record.RiskPriority = string(*patch.RiskPriority)
	}
	if patch.Assignee != nil {
		record.Assignee = strings.TrimSpace(*patch.Assignee)
	}
	if patch.DueDate != nil {
		record.DueDate = formatDate(*patch.DueDate)
	}
}

// DeleteCapa withdraws a CAPA that never left the initial phase. Once work
// has been recorded the record is kept for inspection and can only be
// cancelled through a transition.
func (s *Service) DeleteCapa(ctx context.Context, actor domaincapa.Principal, capaID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := requireActor(actor); err != nil {
		return err
	}
	capaID = strings.TrimSpace(capaID)
	if capaID == "" {
		return errs.E(errs.KindValidation, "capa id is required")
	}

	var workflowID string
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		record, err := s.repo.GetCapa(txCtx, capaID)
		if err != nil {
			return mapRepoErr(err, "capa "+capaID)
		}
		wf, err := s.repo.GetWorkflowByCapa(txCtx, capaID)
		if err != nil {
			return mapRepoErr(err, "workflow of capa "+capaID)
		}
		workflowID = wf.WorkflowID

		if actor.UserID != record.Initiator && !actor.HasRole(domaincapa.RoleQualityManager) {
			return errs.E(errs.KindAuthorization, "only the initiator or a quality manager may delete %s", capaID)
		}
		if domaincapa.Phase(wf.Phase) != domaincapa.InitialPhase {
			return errs.E(errs.KindInvalidState, "%s has left the %s phase and cannot be deleted", capaID, domaincapa.InitialPhase.Label())
		}
		transitions, err := s.repo.ListTransitions(txCtx, wf.WorkflowID)
		if err != nil {
			return err
		}
		actions, err := s.repo.ListActions(txCtx, ports.ActionFilter{CapaID: capaID})
		if err != nil {
			return err
		}
		if len(transitions) > 0 || len(actions) > 0 {
			return errs.E(errs.KindInvalidState, "%s has recorded work and cannot be deleted", capaID)
		}

		if _, err := s.appendAuditTx(txCtx, auditRecord{
			WorkflowID: wf.WorkflowID,
			CapaID:     capaID,
			Actor:      actor.UserID,
			Action:     domaincapa.AuditCapaDeleted,
			Before:     newCapaView(record, wf),
			At:         s.now(),
		}); err != nil {
			return err
		}
		return mapRepoErr(s.repo.SoftDeleteCapa(txCtx, capaID), "capa "+capaID)
	}); err != nil {
		return err
	}

	s.deleteCacheBestEffort(ctx, cacheWorkflowPhaseKey(workflowID))
	return nil
}
