package interfaces

import (
	"context"

	"github.com/ternarybob/aerofleet/internal/models"
)

// MonitorService exposes read-only health and data-quality views. It
// never writes and has no effect on the engine.
type MonitorService interface {
	// Snapshot aggregates queue health, recent jobs, airline coverage and
	// confidence buckets into one view.
	Snapshot(ctx context.Context) (*models.MonitorSnapshot, error)

	// JobStatus returns one job by job_id, or (nil, nil) when absent.
	JobStatus(ctx context.Context, jobID string) (*models.ScrapingJob, error)
}
