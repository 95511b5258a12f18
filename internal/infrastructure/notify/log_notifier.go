package notify

import (
	"context"
	"log/slog"

	"eqms/internal/bootstrap/logging"
	"eqms/internal/domain/capa"
	"eqms/internal/ports"
)

// LogNotifier writes events to the context logger. Used when no broker is
// configured.
type LogNotifier struct{}

var _ ports.Notifier = LogNotifier{}

func (LogNotifier) Publish(ctx context.Context, event capa.DomainEvent) error {
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "notify.log")),
		"domain event",
		slog.String("type", string(event.Type)),
		slog.String("workflow_id", event.WorkflowID),
		slog.String("capa_id", event.CapaID),
		slog.String("actor", event.Actor),
		slog.Any("payload", event.Payload),
	)
	return nil
}

type Noop struct{}

var _ ports.Notifier = Noop{}

func (Noop) Publish(context.Context, capa.DomainEvent) error { return nil }
