package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"gorm.io/gorm"

	"eqms/internal/errs"
	"eqms/internal/infrastructure/persistence/sqlite/model"
	"eqms/internal/ports"
)

func (r *CapaRepository) CreateWorkflow(ctx context.Context, wf ports.Workflow) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Workflow{
		WorkflowID:       wf.WorkflowID,
		CapaID:           wf.CapaID,
		Phase:            wf.Phase,
		AssignedApprover: wf.AssignedApprover,
		Version:          wf.Version,
		AuditSeq:         wf.AuditSeq,
		CreatedAt:        wf.CreatedAt,
		UpdatedAt:        wf.UpdatedAt,
	}
	if row.Version == 0 {
		row.Version = 1
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert workflow")
	}
	return nil
}

func (r *CapaRepository) GetWorkflow(ctx context.Context, workflowID string) (ports.Workflow, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Workflow{}, err
	}
	return takeWorkflow(db.Where("workflow_id = ?", workflowID))
}

func (r *CapaRepository) GetWorkflowByCapa(ctx context.Context, capaID string) (ports.Workflow, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Workflow{}, err
	}
	return takeWorkflow(db.Where("capa_id = ?", capaID))
}

// UpdateWorkflow is a compare-and-swap on the version column. A stale
// ExpectedVersion yields ports.ErrConflict and leaves the row untouched.
func (r *CapaRepository) UpdateWorkflow(ctx context.Context, update ports.WorkflowUpdate) (ports.Workflow, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Workflow{}, err
	}

	result := db.Model(&model.Workflow{}).
		Where("workflow_id = ? AND version = ?", update.WorkflowID, update.ExpectedVersion).
		Updates(map[string]any{
			"phase":             update.Phase,
			"assigned_approver": update.AssignedApprover,
			"version":           gorm.Expr("version + 1"),
			"updated_at":        update.UpdatedAt,
		})
	if result.Error != nil {
		return ports.Workflow{}, errs.Wrap(result.Error, "update workflow")
	}
	if result.RowsAffected == 0 {
		if _, err := takeWorkflow(db.Where("workflow_id = ?", update.WorkflowID)); err != nil {
			return ports.Workflow{}, err
		}
		return ports.Workflow{}, ports.ErrConflict
	}

	return takeWorkflow(db.Where("workflow_id = ?", update.WorkflowID))
}

// AllocateAuditSeq reserves the next audit sequence number of a workflow.
func (r *CapaRepository) AllocateAuditSeq(ctx context.Context, workflowID string) (uint64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Model(&model.Workflow{}).
		Where("workflow_id = ?", workflowID).
		UpdateColumn("audit_seq", gorm.Expr("audit_seq + 1"))
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "increment audit seq")
	}
	if result.RowsAffected == 0 {
		return 0, ports.ErrNotFound
	}

	wf, err := takeWorkflow(db.Where("workflow_id = ?", workflowID))
	if err != nil {
		return 0, err
	}
	return wf.AuditSeq, nil
}

func (r *CapaRepository) AppendTransition(ctx context.Context, transition ports.PhaseTransition) (ports.PhaseTransition, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.PhaseTransition{}, err
	}

	refs := transition.EvidenceRefs
	if refs == nil {
		refs = []string{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return ports.PhaseTransition{}, errs.Wrap(err, "marshal evidence refs")
	}

	row := model.PhaseTransition{
		WorkflowID:       transition.WorkflowID,
		FromPhase:        transition.FromPhase,
		ToPhase:          transition.ToPhase,
		ApproverID:       transition.ApproverID,
		Comments:         transition.Comments,
		SignatureHash:    transition.SignatureHash,
		EvidenceRefsJSON: string(refsJSON),
		CreatedAt:        transition.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.PhaseTransition{}, errs.Wrap(err, "insert phase transition")
	}
	return mapTransition(row), nil
}

func (r *CapaRepository) ListTransitions(ctx context.Context, workflowID string) ([]ports.PhaseTransition, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.PhaseTransition
	if err := db.Where("workflow_id = ?", workflowID).
		Order("transition_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query phase transitions")
	}

	items := make([]ports.PhaseTransition, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapTransition(row))
	}
	return items, nil
}

func (r *CapaRepository) CreateApproval(ctx context.Context, approval ports.ApprovalRecord) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.ApprovalRecord{
		TransitionID:  approval.TransitionID,
		WorkflowID:    approval.WorkflowID,
		UserID:        approval.UserID,
		Roles:         strings.Join(approval.Roles, ","),
		Meaning:       approval.Meaning,
		SignedAt:      approval.SignedAt,
		SignatureHash: approval.SignatureHash,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert approval record")
	}
	return nil
}

func (r *CapaRepository) ListApprovals(ctx context.Context, workflowID string) ([]ports.ApprovalRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ApprovalRecord
	if err := db.Where("workflow_id = ?", workflowID).
		Order("transition_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query approval records")
	}

	items := make([]ports.ApprovalRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.ApprovalRecord{
			ApprovalID:    row.ApprovalID,
			TransitionID:  row.TransitionID,
			WorkflowID:    row.WorkflowID,
			UserID:        row.UserID,
			Roles:         splitRoles(row.Roles),
			Meaning:       row.Meaning,
			SignedAt:      row.SignedAt,
			SignatureHash: row.SignatureHash,
		})
	}
	return items, nil
}

func takeWorkflow(query *gorm.DB) (ports.Workflow, error) {
	var row model.Workflow
	if err := query.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Workflow{}, ports.ErrNotFound
		}
		return ports.Workflow{}, errs.Wrap(err, "query workflow")
	}
	return mapWorkflow(row), nil
}

func splitRoles(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
