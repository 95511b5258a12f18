package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"eqms/internal/errs"
	"eqms/internal/infrastructure/persistence/sqlite/model"
	"eqms/internal/ports"
)

// AppendAuditEntry inserts an entry. (workflow_id, seq) is the primary key so
// a reused sequence number fails instead of overwriting history.
func (r *CapaRepository) AppendAuditEntry(ctx context.Context, entry ports.AuditEntry) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.AuditEntry{
		WorkflowID:  entry.WorkflowID,
		Seq:         entry.Seq,
		CapaID:      entry.CapaID,
		Actor:       entry.Actor,
		Action:      entry.Action,
		BeforeJSON:  entry.BeforeJSON,
		AfterJSON:   entry.AfterJSON,
		Reason:      entry.Reason,
		CorrectsSeq: entry.CorrectsSeq,
		PrevHash:    entry.PrevHash,
		EntryHash:   entry.EntryHash,
		CreatedAt:   entry.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert audit entry")
	}
	return nil
}

func (r *CapaRepository) ListAuditEntries(ctx context.Context, workflowID string) ([]ports.AuditEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.AuditEntry
	if err := db.Where("workflow_id = ?", workflowID).
		Order("seq asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query audit entries")
	}

	items := make([]ports.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAuditEntry(row))
	}
	return items, nil
}

func (r *CapaRepository) GetAuditEntry(ctx context.Context, workflowID string, seq uint64) (ports.AuditEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.AuditEntry{}, err
	}

	var row model.AuditEntry
	if err := db.Where("workflow_id = ? AND seq = ?", workflowID, seq).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.AuditEntry{}, ports.ErrNotFound
		}
		return ports.AuditEntry{}, errs.Wrap(err, "query audit entry")
	}
	return mapAuditEntry(row), nil
}

func (r *CapaRepository) LastAuditEntry(ctx context.Context, workflowID string) (ports.AuditEntry, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.AuditEntry{}, false, err
	}

	var row model.AuditEntry
	if err := db.Where("workflow_id = ?", workflowID).
		Order("seq desc").
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.AuditEntry{}, false, nil
		}
		return ports.AuditEntry{}, false, errs.Wrap(err, "query last audit entry")
	}
	return mapAuditEntry(row), true, nil
}
