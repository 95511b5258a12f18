package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"eqms/internal/errs"
	"eqms/internal/infrastructure/persistence/sqlite/model"
	"eqms/internal/ports"
)

type CapaRepository struct {
	db *gorm.DB
}

var _ ports.CapaRepository = (*CapaRepository)(nil)

func NewCapaRepository(db *gorm.DB) *CapaRepository {
	return &CapaRepository{db: db}
}

func (r *CapaRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// NextSequence increments the named counter and returns the new value.
// The first call for a name returns 1.
func (r *CapaRepository) NextSequence(ctx context.Context, name string) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	seed := model.Sequence{Name: name, Value: 0}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, errs.Wrap(err, "seed sequence")
	}
	if err := db.Model(&model.Sequence{}).
		Where("name = ?", name).
		UpdateColumn("value", gorm.Expr("value + 1")).Error; err != nil {
		return 0, errs.Wrap(err, "increment sequence")
	}

	var row model.Sequence
	if err := db.Where("name = ?", name).Take(&row).Error; err != nil {
		return 0, errs.Wrap(err, "read sequence")
	}
	return row.Value, nil
}

func (r *CapaRepository) CreateCapa(ctx context.Context, record ports.CapaRecord) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := toCapaModel(record)
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert capa record")
	}
	return nil
}

func (r *CapaRepository) GetCapa(ctx context.Context, capaID string) (ports.CapaRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.CapaRecord{}, err
	}

	var row model.CapaRecord
	if err := db.Where("capa_id = ?", capaID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CapaRecord{}, ports.ErrNotFound
		}
		return ports.CapaRecord{}, errs.Wrap(err, "query capa record")
	}
	return mapCapa(row), nil
}

func (r *CapaRepository) ListCapas(ctx context.Context, filter ports.CapaFilter) ([]ports.CapaOverview, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.CapaRecord{})
	if source := strings.TrimSpace(filter.Source); source != "" {
		query = query.Where("source = ?", source)
	}
	if risk := strings.TrimSpace(filter.RiskPriority); risk != "" {
		query = query.Where("risk_priority = ?", risk)
	}
	if assignee := strings.TrimSpace(filter.Assignee); assignee != "" {
		query = query.Where("assignee = ?", assignee)
	}
	if len(filter.Phases) > 0 {
		sub := db.Model(&model.Workflow{}).
			Select("capa_id").
			Where("phase IN ?", filter.Phases)
		query = query.Where("capa_id IN (?)", sub)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.CapaRecord
	if err := query.Order("capa_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query capa records")
	}
	if len(rows) == 0 {
		return []ports.CapaOverview{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.CapaID)
	}

	var wfRows []model.Workflow
	if err := db.Where("capa_id IN ?", ids).Find(&wfRows).Error; err != nil {
		return nil, errs.Wrap(err, "query workflows")
	}
	byCapa := make(map[string]model.Workflow, len(wfRows))
	for _, wf := range wfRows {
		byCapa[wf.CapaID] = wf
	}

	items := make([]ports.CapaOverview, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.CapaOverview{
			Capa:     mapCapa(row),
			Workflow: mapWorkflow(byCapa[row.CapaID]),
		})
	}
	return items, nil
}

func (r *CapaRepository) UpdateCapa(ctx context.Context, record ports.CapaRecord) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.CapaRecord{}).
		Where("capa_id = ?", record.CapaID).
		Updates(map[string]any{
			"title":         record.Title,
			"description":   record.Description,
			"risk_priority": record.RiskPriority,
			"assignee":      record.Assignee,
			"due_date":      record.DueDate,
			"closed_date":   record.ClosedDate,
			"updated_at":    record.UpdatedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update capa record")
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// SoftDeleteCapa hides the record and its workflow from every query.
// Rows stay in the database so the audit trail keeps its subject.
func (r *CapaRepository) SoftDeleteCapa(ctx context.Context, capaID string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Where("capa_id = ?", capaID).Delete(&model.CapaRecord{})
	if result.Error != nil {
		return errs.Wrap(result.Error, "delete capa record")
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	if err := db.Where("capa_id = ?", capaID).Delete(&model.Workflow{}).Error; err != nil {
		return errs.Wrap(err, "delete workflow")
	}
	return nil
}
