package bootstrap

import (
	"context"
	"log/slog"
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"eqms/internal/bootstrap/config"
	"eqms/internal/bootstrap/database"
	"eqms/internal/bootstrap/logging"
	cacheinfra "eqms/internal/infrastructure/cache"
	"eqms/internal/infrastructure/gatepolicy"
	"eqms/internal/infrastructure/notify"
	sqliterepo "eqms/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "eqms/internal/infrastructure/persistence/sqlite/uow"
	"eqms/internal/ports"
	"eqms/internal/usecase/capa"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewCapaRepository,
			fx.As(new(ports.CapaRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideNotifier),
	fx.Provide(provideGatePolicy),
	fx.Provide(provideSettings),
	fx.Provide(capa.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideNotifier(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.Notifier, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	switch strings.ToLower(strings.TrimSpace(cfg.Notify.Driver)) {
	case "nats":
		n, err := notify.DialNATS(cfg.Notify.NATSURL, cfg.Notify.SubjectPrefix, cfg.App.Name)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				return n.Close()
			},
		})
		logging.Info(logCtx, "event notifier connected", slog.String("driver", "nats"), slog.String("url", cfg.Notify.NATSURL))
		return n, nil
	case "none", "noop":
		return notify.Noop{}, nil
	default:
		return notify.LogNotifier{}, nil
	}
}

// provideGatePolicy loads the configured gate policy. With gates.watch the
// file is reloaded on change for the lifetime of the application.
func provideGatePolicy(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.GatePolicySource, error) {
	source, err := gatepolicy.NewSource(cfg.Gates.PolicyFile)
	if err != nil {
		return nil, err
	}
	if !cfg.Gates.Watch || source.Path() == "" {
		return source, nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return source.Watch(watchCtx)
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
	return source, nil
}

func provideSettings(cfg config.Config) capa.Settings {
	return capa.Settings{IDPrefix: cfg.Capa.IDPrefix}
}
