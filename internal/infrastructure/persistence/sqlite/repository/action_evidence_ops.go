package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"eqms/internal/errs"
	"eqms/internal/infrastructure/persistence/sqlite/model"
	"eqms/internal/ports"
)

func (r *CapaRepository) CreateAction(ctx context.Context, action ports.CapaAction) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.CapaAction{
		ActionID:    action.ActionID,
		CapaID:      action.CapaID,
		WorkflowID:  action.WorkflowID,
		Phase:       action.Phase,
		Title:       action.Title,
		Description: action.Description,
		Owner:       action.Owner,
		DueDate:     action.DueDate,
		CreatedAt:   action.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert capa action")
	}
	return nil
}

func (r *CapaRepository) GetAction(ctx context.Context, actionID string) (ports.CapaAction, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.CapaAction{}, err
	}

	var row model.CapaAction
	if err := db.Where("action_id = ?", actionID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CapaAction{}, ports.ErrNotFound
		}
		return ports.CapaAction{}, errs.Wrap(err, "query capa action")
	}
	return mapAction(row), nil
}

func (r *CapaRepository) ListActions(ctx context.Context, filter ports.ActionFilter) ([]ports.CapaAction, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.CapaAction{})
	if capaID := strings.TrimSpace(filter.CapaID); capaID != "" {
		query = query.Where("capa_id = ?", capaID)
	}
	if phase := strings.TrimSpace(filter.Phase); phase != "" {
		query = query.Where("phase = ?", phase)
	}

	var rows []model.CapaAction
	if err := query.Order("created_at asc, action_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query capa actions")
	}

	items := make([]ports.CapaAction, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAction(row))
	}
	return items, nil
}

// MarkActionVerified records the sign-off once. A second call returns
// ports.ErrAlreadyReviewed.
func (r *CapaRepository) MarkActionVerified(ctx context.Context, update ports.ActionVerificationUpdate) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.CapaAction{}).
		Where("action_id = ? AND verified_by = ?", update.ActionID, "").
		Updates(map[string]any{
			"verified_by":           update.VerifiedBy,
			"verification_outcome":  update.Outcome,
			"verification_comments": update.Comments,
			"verified_at":           update.VerifiedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update capa action verification")
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetAction(ctx, update.ActionID); err != nil {
			return err
		}
		return ports.ErrAlreadyReviewed
	}
	return nil
}

func (r *CapaRepository) CreateEvidence(ctx context.Context, evidence ports.Evidence) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Evidence{
		EvidenceID:  evidence.EvidenceID,
		ActionID:    evidence.ActionID,
		CapaID:      evidence.CapaID,
		Title:       evidence.Title,
		Description: evidence.Description,
		Type:        evidence.Type,
		URL:         evidence.URL,
		FileRef:     evidence.FileRef,
		SubmittedBy: evidence.SubmittedBy,
		SubmittedAt: evidence.SubmittedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert evidence")
	}
	return nil
}

func (r *CapaRepository) GetEvidence(ctx context.Context, evidenceID string) (ports.Evidence, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Evidence{}, err
	}

	var row model.Evidence
	if err := db.Where("evidence_id = ?", evidenceID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Evidence{}, ports.ErrNotFound
		}
		return ports.Evidence{}, errs.Wrap(err, "query evidence")
	}
	return mapEvidence(row), nil
}

// ListEvidence filters by CAPA and/or actions. A non-nil but empty ActionIDs
// matches nothing.
func (r *CapaRepository) ListEvidence(ctx context.Context, filter ports.EvidenceFilter) ([]ports.Evidence, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if filter.ActionIDs != nil && len(filter.ActionIDs) == 0 {
		return []ports.Evidence{}, nil
	}

	query := db.Model(&model.Evidence{})
	if capaID := strings.TrimSpace(filter.CapaID); capaID != "" {
		query = query.Where("capa_id = ?", capaID)
	}
	if len(filter.ActionIDs) > 0 {
		query = query.Where("action_id IN ?", filter.ActionIDs)
	}

	var rows []model.Evidence
	if err := query.Order("submitted_at asc, evidence_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query evidence")
	}

	items := make([]ports.Evidence, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEvidence(row))
	}
	return items, nil
}

// MarkEvidenceReviewed sets the review fields exactly once. Rows that already
// carry a reviewer are left untouched and ports.ErrAlreadyReviewed is returned.
func (r *CapaRepository) MarkEvidenceReviewed(ctx context.Context, review ports.EvidenceReview) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.Evidence{}).
		Where("evidence_id = ? AND reviewed_by = ?", review.EvidenceID, "").
		Updates(map[string]any{
			"reviewed_by":     review.ReviewedBy,
			"outcome":         review.Outcome,
			"review_comments": review.Comments,
			"reviewed_at":     review.ReviewedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update evidence review")
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetEvidence(ctx, review.EvidenceID); err != nil {
			return err
		}
		return ports.ErrAlreadyReviewed
	}
	return nil
}
