package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

const jobColumns = `id, job_id, airline_code, airline_name, job_type, status,
	priority, leased_until, started_at, completed_at, duration_seconds,
	discovered_count, new_count, updated_count, error_count, progress,
	error_message, result_summary, created_at, updated_at`

// JobStorage implements the scraping_jobs table operations, including the
// SKIP LOCKED lease that keeps concurrent workers from double-dispatching.
type JobStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewJobStorage creates a new job storage instance
func NewJobStorage(db *DB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// Insert persists a new job row and stamps the generated id back onto job.
func (s *JobStorage) Insert(ctx context.Context, job *models.ScrapingJob) error {
	err := s.db.pool.QueryRow(ctx, `
		INSERT INTO scraping_jobs (job_id, airline_code, airline_name, job_type,
			status, priority, result_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		job.JobID,
		job.AirlineCode,
		job.AirlineName,
		string(job.JobType),
		string(job.Status),
		string(job.Priority),
		job.Retry,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.JobID, err)
	}

	s.logger.Debug().
		Str("job_id", job.JobID).
		Str("airline", job.AirlineCode).
		Msg("Job inserted")

	return nil
}

// GetByJobID returns the job or (nil, nil) when absent.
func (s *JobStorage) GetByJobID(ctx context.Context, jobID string) (*models.ScrapingJob, error) {
	row := s.db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM scraping_jobs WHERE job_id = $1`, jobID)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return job, nil
}

// LeaseNext claims the next dispatchable pending job. Eligibility: due by
// scheduled_at (falling back to created_at for legacy rows), not under a
// live lease hold. High priority drains first, then normal, then low;
// within a band the oldest job wins. The inner SELECT takes the row lock
// with SKIP LOCKED, so concurrent leasers pass over each other instead of
// blocking or colliding.
func (s *JobStorage) LeaseNext(ctx context.Context, holdFor time.Duration) (*models.ScrapingJob, error) {
	row := s.db.pool.QueryRow(ctx, `
		UPDATE scraping_jobs SET
			leased_until = now() + make_interval(secs => $1),
			updated_at = now()
		WHERE id = (
			SELECT id FROM scraping_jobs
			WHERE status = 'pending'
				AND COALESCE((result_summary->>'scheduled_at')::timestamptz, created_at) <= now()
				AND (leased_until IS NULL OR leased_until < now())
			ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END,
				created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns, holdFor.Seconds())

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lease job: %w", err)
	}
	return job, nil
}

// MarkStarted moves a leased pending job to running. A no-op result means
// the job was cancelled (or otherwise moved on) between lease and start.
func (s *JobStorage) MarkStarted(ctx context.Context, jobID string) error {
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE scraping_jobs SET
			status = 'running',
			started_at = now(),
			updated_at = now()
		WHERE job_id = $1 AND status = 'pending'`, jobID)
	if err != nil {
		return fmt.Errorf("failed to start job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not pending", jobID)
	}
	return nil
}

// MarkCompleted finishes a running job: records the counters, derives the
// wall-clock duration from started_at and releases the lease hold.
func (s *JobStorage) MarkCompleted(ctx context.Context, jobID string, counters models.JobCounters) error {
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE scraping_jobs SET
			status = 'completed',
			completed_at = now(),
			duration_seconds = EXTRACT(EPOCH FROM (now() - started_at)),
			discovered_count = $2,
			new_count = $3,
			updated_count = $4,
			error_count = $5,
			progress = 100,
			leased_until = NULL,
			updated_at = now()
		WHERE job_id = $1 AND status = 'running'`,
		jobID, counters.Discovered, counters.New, counters.Updated, counters.Errors)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not running", jobID)
	}
	return nil
}

// MarkFailed moves a job to its terminal failed state with the message a
// human will read in status output.
func (s *JobStorage) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE scraping_jobs SET
			status = 'failed',
			error_message = $2,
			completed_at = now(),
			duration_seconds = EXTRACT(EPOCH FROM (now() - started_at)),
			error_count = error_count + 1,
			leased_until = NULL,
			updated_at = now()
		WHERE job_id = $1 AND status IN ('pending', 'running')`, jobID, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is already terminal", jobID)
	}
	return nil
}

// Reschedule moves a job back to pending under the updated retry state.
// started_at and the lease hold are cleared so the job queues as fresh
// work once retry.ScheduledAt comes due.
func (s *JobStorage) Reschedule(ctx context.Context, jobID string, retry models.RetryState) error {
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE scraping_jobs SET
			status = 'pending',
			leased_until = NULL,
			started_at = NULL,
			result_summary = $2,
			updated_at = now()
		WHERE job_id = $1 AND status IN ('pending', 'running')`, jobID, retry)
	if err != nil {
		return fmt.Errorf("failed to reschedule job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is already terminal", jobID)
	}
	return nil
}

// MarkCancelled cancels a pending or running job. Returns false when the
// job was already terminal, so cancellation of finished work is a no-op
// rather than an error.
func (s *JobStorage) MarkCancelled(ctx context.Context, jobID string) (bool, error) {
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE scraping_jobs SET
			status = 'cancelled',
			completed_at = now(),
			leased_until = NULL,
			updated_at = now()
		WHERE job_id = $1 AND status IN ('pending', 'running')`, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Stats tallies jobs by status in a single scan.
func (s *JobStorage) Stats(ctx context.Context) (*models.QueueStats, error) {
	var stats models.QueueStats
	err := s.db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'running'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*)
		FROM scraping_jobs`).Scan(
		&stats.Pending, &stats.Running, &stats.Completed,
		&stats.Failed, &stats.Cancelled, &stats.Total,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	return &stats, nil
}

// ListStaleRunning returns running jobs whose started_at predates cutoff.
// These are dead-worker candidates for reclamation.
func (s *JobStorage) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*models.ScrapingJob, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM scraping_jobs
		WHERE status = 'running' AND started_at IS NOT NULL AND started_at < $1
		ORDER BY started_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ScrapingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// HasActiveJob reports whether a pending or running job exists for the
// airline, case-insensitively.
func (s *JobStorage) HasActiveJob(ctx context.Context, airlineCode string) (bool, error) {
	var exists bool
	err := s.db.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM scraping_jobs
			WHERE upper(airline_code) = upper($1) AND status IN ('pending', 'running')
		)`, airlineCode).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active jobs for %s: %w", airlineCode, err)
	}
	return exists, nil
}

// DeleteTerminalOlderThan prunes completed, failed and cancelled jobs that
// finished before cutoff. Returns the number of rows removed.
func (s *JobStorage) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.pool.Exec(ctx, `
		DELETE FROM scraping_jobs
		WHERE status IN ('completed', 'failed', 'cancelled')
			AND completed_at IS NOT NULL
			AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanJob hydrates a ScrapingJob from a row selected with jobColumns.
func scanJob(row pgx.Row) (*models.ScrapingJob, error) {
	var (
		job      models.ScrapingJob
		jobType  string
		status   string
		priority string
	)
	err := row.Scan(
		&job.ID, &job.JobID, &job.AirlineCode, &job.AirlineName,
		&jobType, &status, &priority,
		&job.LeasedUntil, &job.StartedAt, &job.CompletedAt, &job.DurationSeconds,
		&job.DiscoveredCount, &job.NewCount, &job.UpdatedCount, &job.ErrorCount,
		&job.Progress, &job.ErrorMessage, &job.Retry,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.JobType = models.JobType(jobType)
	job.Status = models.JobStatus(status)
	job.Priority = models.JobPriority(priority)
	return &job, nil
}
