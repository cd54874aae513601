package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"apiview/internal/bootstrap/logging"
	"apiview/internal/errs"
)

// Publisher sends an encoded event to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Close() error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, name string) (*NATSPublisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(10),
	)
	if err != nil {
		return nil, errs.Wrap(err, "connect nats")
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := p.conn.Publish(subject, payload); err != nil {
		return errs.Wrapf(err, "publish %s", subject)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return errs.Wrap(err, "flush nats")
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// LogPublisher writes events to the context logger. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "notify.log")),
		"notification",
		slog.String("subject", subject),
		slog.String("payload", string(payload)),
	)
	return nil
}

func (LogPublisher) Close() error { return nil }
