package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"eqms/internal/bootstrap/config"
	"eqms/internal/bootstrap/logging"
	"eqms/internal/errs"
	"eqms/internal/infrastructure/persistence/schema"
	"eqms/internal/infrastructure/persistence/sqlite/model"
)

// App exposes the loaded configuration and database to commands that work
// below the CAPA service (migrations, server settings).
type App struct {
	Config config.Config
	DB     *gorm.DB
}

// InitSchema migrates every CAPA table and records the schema version.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	tables := append(model.All(), &schema.Meta{})
	if err := a.DB.WithContext(ctx).AutoMigrate(tables...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}
	if err := schema.RecordVersion(ctx, a.DB); err != nil {
		return err
	}

	logging.Info(logCtx, "schema migration completed", slog.String("schema_version", schema.Version))
	return nil
}

// CheckSchema fails with a precondition error when init-db has not been run
// for the current schema version.
func (a *App) CheckSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if !a.DB.Migrator().HasTable(&schema.Meta{}) {
		return errs.E(errs.KindPrecondition, "database schema is not initialized, run init-db")
	}
	current, err := schema.CurrentVersion(ctx, a.DB)
	if err != nil {
		return err
	}
	if current != schema.Version {
		return errs.E(errs.KindPrecondition, "database schema version %q, expected %q, run init-db", current, schema.Version)
	}
	return nil
}
