package interfaces

import "context"

// SchedulerService drains the job queue with bounded concurrency and,
// when enabled, enqueues due airlines on a cron schedule.
type SchedulerService interface {
	// Start launches the poll loop, the reclamation ticker and (when
	// enabled) the cron branch. Returns an error if already running or if
	// the cron expression cannot be scheduled.
	Start(ctx context.Context) error

	// Stop halts leasing, stops cron and waits (bounded) for in-flight
	// jobs to settle.
	Stop() error

	// IsRunning reports whether the scheduler loop is active.
	IsRunning() bool

	// EnqueueDueAirlines runs one pass of the cron branch immediately:
	// every scrape-enabled airline that is stale and has no active job
	// gets a pending job. Returns the number enqueued.
	EnqueueDueAirlines(ctx context.Context) (int, error)
}
