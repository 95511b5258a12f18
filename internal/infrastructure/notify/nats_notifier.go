package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"eqms/internal/domain/capa"
	"eqms/internal/errs"
	"eqms/internal/ports"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes each event as JSON on <prefix>.<event type>, for
// example eqms.capa.capa.phase_transitioned.
type NATSNotifier struct {
	pub           publisher
	conn          *nats.Conn
	subjectPrefix string
}

var _ ports.Notifier = (*NATSNotifier)(nil)

func DialNATS(url string, subjectPrefix string, clientName string) (*NATSNotifier, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("nats url is required")
	}

	nc, err := nats.Connect(url,
		nats.Name(clientName),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %s", url)
	}

	n := newNATSNotifier(nc, subjectPrefix)
	n.conn = nc
	return n, nil
}

func newNATSNotifier(pub publisher, subjectPrefix string) *NATSNotifier {
	return &NATSNotifier{
		pub:           pub,
		subjectPrefix: strings.Trim(strings.TrimSpace(subjectPrefix), "."),
	}
}

func (n *NATSNotifier) Publish(ctx context.Context, event capa.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "marshal domain event")
	}
	if err := n.pub.Publish(n.Subject(event.Type), data); err != nil {
		return errs.Wrapf(err, "publish %s", event.Type)
	}
	return nil
}

func (n *NATSNotifier) Subject(eventType capa.EventType) string {
	if n.subjectPrefix == "" {
		return string(eventType)
	}
	return n.subjectPrefix + "." + string(eventType)
}

// Close flushes pending messages and closes the connection.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	if err := n.conn.Drain(); err != nil {
		return errs.Wrap(err, "drain nats connection")
	}
	return nil
}
