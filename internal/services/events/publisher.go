// Package events publishes job lifecycle transitions to NATS. The queue
// treats publication as fire-and-forget, so a broker outage costs events
// but never blocks a transition.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

const defaultSubjectPrefix = "aerofleet.jobs"

// Publisher sends job lifecycle events to per-status NATS subjects,
// e.g. aerofleet.jobs.pending.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger arbor.ILogger
}

// NewPublisher connects to the configured broker. Reconnection retries
// forever in the background; events raised while disconnected are lost,
// which the lifecycle contract allows.
func NewPublisher(cfg *common.EventsConfig, logger arbor.ILogger) (interfaces.EventPublisher, error) {
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("aerofleet"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	logger.Info().
		Str("url", cfg.NATSURL).
		Str("subject_prefix", prefix).
		Msg("Event publisher connected")

	return &Publisher{conn: conn, prefix: prefix, logger: logger}, nil
}

// Publish sends one event to <prefix>.<status>.
func (p *Publisher) Publish(ctx context.Context, event models.JobEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode job event: %w", err)
	}
	if err := p.conn.Publish(subjectFor(p.prefix, event.Status), payload); err != nil {
		return fmt.Errorf("failed to publish job event: %w", err)
	}
	return nil
}

// Close drains buffered messages and closes the connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

func subjectFor(prefix string, status models.JobStatus) string {
	return fmt.Sprintf("%s.%s", prefix, status)
}

// NoopPublisher satisfies the interface when publication is disabled.
// Every call succeeds and nothing leaves the process.
type NoopPublisher struct{}

// NewNoop returns the disabled publisher.
func NewNoop() interfaces.EventPublisher {
	return NoopPublisher{}
}

// Publish discards the event.
func (NoopPublisher) Publish(ctx context.Context, event models.JobEvent) error { return nil }

// Close is a no-op.
func (NoopPublisher) Close() {}
