package schema

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"eqms/internal/errs"
)

// Version is bumped whenever a migration changes the table layout.
const Version = "3"

const versionKey = "schema_version"

type Meta struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Key       string    `gorm:"column:key;type:varchar(191);uniqueIndex;not null"`
	Value     string    `gorm:"column:value;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (Meta) TableName() string {
	return "schema_meta"
}

// RecordVersion stores Version after a successful migration.
func RecordVersion(ctx context.Context, db *gorm.DB) error {
	row := Meta{Key: versionKey, Value: Version}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{"value": Version, "updated_at": time.Now().UTC()}),
	}).Create(&row).Error
	if err != nil {
		return errs.Wrap(err, "record schema version")
	}
	return nil
}

// CurrentVersion reports the recorded version, or "" before the first migration.
func CurrentVersion(ctx context.Context, db *gorm.DB) (string, error) {
	var rows []Meta
	if err := db.WithContext(ctx).Where("key = ?", versionKey).Limit(1).Find(&rows).Error; err != nil {
		return "", errs.Wrap(err, "read schema version")
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Value, nil
}
