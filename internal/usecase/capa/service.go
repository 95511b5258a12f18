package capa

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"eqms/internal/bootstrap/logging"
	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/errs"
	"eqms/internal/ports"
)

const (
	dateLayout       = "2006-01-02"
	defaultIDPrefix  = "CAPA"
	phaseCachePrefix = "workflow_phase:"
)

// Settings carries configuration the service needs at runtime.
type Settings struct {
	IDPrefix string
}

type Service struct {
	repo     ports.CapaRepository
	uow      ports.UnitOfWork
	cache    ports.Cache
	notifier ports.Notifier
	policy   ports.GatePolicySource
	idPrefix string
	now      func() time.Time
	newID    func() string
}

// NewService wires the CAPA usecases. cache and notifier may be nil; policy
// defaults to the built-in gate table.
func NewService(
	repo ports.CapaRepository,
	uow ports.UnitOfWork,
	cache ports.Cache,
	notifier ports.Notifier,
	policy ports.GatePolicySource,
	settings Settings,
) *Service {
	if policy == nil {
		policy = ports.StaticGatePolicy(domaincapa.DefaultGatePolicy())
	}
	prefix := strings.ToUpper(strings.TrimSpace(settings.IDPrefix))
	if prefix == "" {
		prefix = defaultIDPrefix
	}
	return &Service{
		repo:     repo,
		uow:      uow,
		cache:    cache,
		notifier: notifier,
		policy:   policy,
		idPrefix: prefix,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (s *Service) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("capa repository is required")
	}
	if s.uow == nil {
		return errors.New("capa unit of work is required")
	}
	return nil
}

func requireActor(p domaincapa.Principal) error {
	if strings.TrimSpace(p.UserID) == "" {
		return errs.E(errs.KindAuthorization, "caller identity is required")
	}
	return nil
}

func requireNonTerminal(wf ports.Workflow) error {
	phase := domaincapa.Phase(wf.Phase)
	if phase.IsTerminal() {
		return errs.E(errs.KindInvalidState, "workflow %s is %s", wf.WorkflowID, phase.Label())
	}
	return nil
}

// mapRepoErr turns repository sentinels into typed errors naming subject.
func mapRepoErr(err error, subject string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ports.ErrNotFound):
		return errs.E(errs.KindNotFound, "%s not found", subject)
	case errors.Is(err, ports.ErrConflict):
		return errs.E(errs.KindConflict, "%s was modified concurrently; reload and retry", subject)
	case errors.Is(err, ports.ErrAlreadyReviewed):
		return errs.E(errs.KindAlreadyReviewed, "%s has already been reviewed", subject)
	default:
		return errs.WithStack(err)
	}
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, 0)
}

func (s *Service) deleteCacheBestEffort(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, key)
}

// publishBestEffort sends a committed event. Failures are logged only.
func (s *Service) publishBestEffort(ctx context.Context, event domaincapa.DomainEvent) {
	if s.notifier == nil || event.Type == "" {
		return
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "usecase.capa")),
			"publish domain event failed",
			slog.String("type", string(event.Type)),
			slog.String("workflow_id", event.WorkflowID),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func cacheWorkflowPhaseKey(workflowID string) string {
	return phaseCachePrefix + workflowID
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func snapshot(v any) (string, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return string(raw), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", errs.Wrap(err, "marshal audit snapshot")
	}
	return string(data), nil
}

func joinRoles(roles []domaincapa.Role) string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}

func jsonOrNull(raw string) json.RawMessage {
	if strings.TrimSpace(raw) == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(raw)
}
