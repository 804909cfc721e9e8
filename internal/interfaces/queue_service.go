package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/aerofleet/internal/models"
)

// JobQueue manages the persistent scraping-job queue. All lifecycle
// transitions go through here so that retry bookkeeping and event
// publication stay in one place.
type JobQueue interface {
	// Create enqueues a pending job for the airline. The airline must
	// exist (models.ErrAirlineNotFound otherwise). Zero option fields take
	// the configured defaults. Returns the job_id.
	Create(ctx context.Context, airlineCode string, opts models.CreateJobOptions) (string, error)

	// Lease claims the next dispatchable job, or (nil, nil) when the queue
	// has nothing due. The job stays pending until Start.
	Lease(ctx context.Context) (*models.ScrapingJob, error)

	// Start marks a leased job running.
	Start(ctx context.Context, jobID string) error

	// Complete finishes a job successfully with its result counters.
	Complete(ctx context.Context, jobID string, counters models.JobCounters) error

	// Fail records a failure. When shouldRetry is true and the retry
	// budget is not exhausted the job returns to pending with scheduled_at
	// pushed out by the retry delay; otherwise it lands in failed.
	Fail(ctx context.Context, jobID string, errMsg string, shouldRetry bool) error

	// Cancel cancels a pending or running job.
	Cancel(ctx context.Context, jobID string) error

	// GetStatus returns the job or (nil, nil) when absent.
	GetStatus(ctx context.Context, jobID string) (*models.ScrapingJob, error)

	// Stats tallies the queue by status.
	Stats(ctx context.Context) (*models.QueueStats, error)

	// ReclaimStale rescues jobs stuck in running longer than olderThan:
	// back to pending with a retry consumed, or failed when the budget is
	// spent. Returns the number reclaimed.
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)

	// CleanupOldJobs deletes terminal jobs older than the retention window.
	CleanupOldJobs(ctx context.Context, olderThanDays int) (int64, error)
}
