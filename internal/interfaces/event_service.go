package interfaces

import (
	"context"

	"github.com/ternarybob/aerofleet/internal/models"
)

// EventPublisher pushes job lifecycle transitions to interested consumers.
// Publication is strictly fire-and-forget: the queue logs a returned error
// and moves on, so a broker outage never affects job processing.
type EventPublisher interface {
	// Publish sends one lifecycle event. The subject is derived from the
	// event status.
	Publish(ctx context.Context, event models.JobEvent) error

	// Close drains and closes the underlying connection.
	Close()
}
