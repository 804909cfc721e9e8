// Package queue is the lifecycle authority for scraping jobs. Storage
// owns the SQL; this layer owns the transitions, the retry bookkeeping
// and event publication, so every state change funnels through one place.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

// leaseHold is how long a leased job stays invisible to other leasers
// before Start confirms it. Generous against clock skew, short enough
// that an abandoned lease re-dispatches quickly.
const leaseHold = 2 * time.Minute

// Service implements interfaces.JobQueue.
type Service struct {
	jobs     interfaces.JobStorage
	airlines interfaces.AirlineStorage
	events   interfaces.EventPublisher
	config   *common.ScraperConfig
	logger   arbor.ILogger
}

// NewService creates the job queue. A nil events publisher disables
// publication entirely.
func NewService(jobs interfaces.JobStorage, airlines interfaces.AirlineStorage, events interfaces.EventPublisher, config *common.ScraperConfig, logger arbor.ILogger) interfaces.JobQueue {
	return &Service{
		jobs:     jobs,
		airlines: airlines,
		events:   events,
		config:   config,
		logger:   logger,
	}
}

// Create enqueues a pending job for the airline. Zero option fields take
// the configured defaults; ScheduledAt defaults to now so the job is
// immediately dispatchable.
func (s *Service) Create(ctx context.Context, airlineCode string, opts models.CreateJobOptions) (string, error) {
	airline, err := s.airlines.FindByCode(ctx, airlineCode)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()

	jobType := opts.JobType
	if jobType == "" {
		jobType = models.JobTypeFullFleetUpdate
	}
	priority := opts.Priority
	if priority == "" {
		priority = models.JobPriorityNormal
	}
	scheduledAt := opts.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = now
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = s.config.MaxRetries
	}
	retryDelay := opts.RetryDelayMinutes
	if retryDelay == 0 {
		retryDelay = s.config.RetryDelayMinutes
	}

	job := &models.ScrapingJob{
		JobID:       models.NewJobID(airline.IATACode, now),
		AirlineCode: airline.IATACode,
		AirlineName: airline.Name,
		JobType:     jobType,
		Status:      models.JobStatusPending,
		Priority:    priority,
		Retry: models.RetryState{
			MaxRetries:        maxRetries,
			RetryDelayMinutes: retryDelay,
			ScheduledAt:       scheduledAt,
			ForceFullScrape:   opts.ForceFullScrape,
			DryRun:            opts.DryRun,
		},
	}

	if err := s.jobs.Insert(ctx, job); err != nil {
		return "", err
	}

	s.logger.Info().
		Str("job_id", job.JobID).
		Str("airline", job.AirlineCode).
		Str("priority", string(priority)).
		Msg("Job created")
	s.publish(ctx, job, models.JobStatusPending, "", models.JobCounters{})
	return job.JobID, nil
}

// Lease claims the next dispatchable job under a short hold. The job
// stays pending until Start so a crash between the two leaves a row the
// hold expiry re-dispatches on its own.
func (s *Service) Lease(ctx context.Context) (*models.ScrapingJob, error) {
	return s.jobs.LeaseNext(ctx, leaseHold)
}

// Start marks a leased job running.
func (s *Service) Start(ctx context.Context, jobID string) error {
	job, err := s.mustGet(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.jobs.MarkStarted(ctx, jobID); err != nil {
		return err
	}
	s.publish(ctx, job, models.JobStatusRunning, "", models.JobCounters{})
	return nil
}

// Complete finishes a job successfully with its result counters.
func (s *Service) Complete(ctx context.Context, jobID string, counters models.JobCounters) error {
	job, err := s.mustGet(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.jobs.MarkCompleted(ctx, jobID, counters); err != nil {
		return err
	}
	s.logger.Info().
		Str("job_id", jobID).
		Int("discovered", counters.Discovered).
		Int("new", counters.New).
		Int("updated", counters.Updated).
		Int("errors", counters.Errors).
		Msg("Job completed")
	s.publish(ctx, job, models.JobStatusCompleted, "", counters)
	return nil
}

// Fail records a failure. A retryable failure with budget left returns
// the job to pending with scheduled_at pushed out by the retry delay;
// anything else lands in the terminal failed state.
func (s *Service) Fail(ctx context.Context, jobID string, errMsg string, shouldRetry bool) error {
	job, err := s.mustGet(ctx, jobID)
	if err != nil {
		return err
	}

	if shouldRetry && job.Retry.RetryCount+1 < job.Retry.MaxRetries {
		retry := job.Retry
		retry.RetryCount++
		retry.LastError = errMsg
		retry.ScheduledAt = time.Now().UTC().Add(s.retryDelay(job))
		if err := s.jobs.Reschedule(ctx, jobID, retry); err != nil {
			return err
		}
		s.logger.Warn().
			Str("job_id", jobID).
			Str("error", errMsg).
			Int("retry", retry.RetryCount).
			Int("max_retries", retry.MaxRetries).
			Msg("Job failed, retry scheduled")
		s.publish(ctx, job, models.JobStatusPending, errMsg, models.JobCounters{})
		return nil
	}

	if err := s.jobs.MarkFailed(ctx, jobID, errMsg); err != nil {
		return err
	}
	s.logger.Error().
		Str("job_id", jobID).
		Str("error", errMsg).
		Msg("Job failed permanently")
	s.publish(ctx, job, models.JobStatusFailed, errMsg, models.JobCounters{})
	return nil
}

// Cancel cancels a pending or running job.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	job, err := s.mustGet(ctx, jobID)
	if err != nil {
		return err
	}
	ok, err := s.jobs.MarkCancelled(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %s is already terminal", jobID)
	}
	s.logger.Info().Str("job_id", jobID).Msg("Job cancelled")
	s.publish(ctx, job, models.JobStatusCancelled, "", models.JobCounters{})
	return nil
}

// GetStatus returns the job or (nil, nil) when absent.
func (s *Service) GetStatus(ctx context.Context, jobID string) (*models.ScrapingJob, error) {
	return s.jobs.GetByJobID(ctx, jobID)
}

// Stats tallies the queue by status.
func (s *Service) Stats(ctx context.Context) (*models.QueueStats, error) {
	return s.jobs.Stats(ctx)
}

// ReclaimStale rescues jobs stuck in running longer than olderThan. A
// reclaim consumes a retry: back to pending when budget remains, failed
// when it is spent. Per-job failures are logged and skipped so one bad
// row never blocks the sweep.
func (s *Service) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	stale, err := s.jobs.ListStaleRunning(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, job := range stale {
		message := fmt.Sprintf("worker silent for over %s", olderThan)
		if job.Retry.RetryCount+1 < job.Retry.MaxRetries {
			retry := job.Retry
			retry.RetryCount++
			retry.LastError = message
			retry.ScheduledAt = time.Now().UTC()
			if err := s.jobs.Reschedule(ctx, job.JobID, retry); err != nil {
				s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to reclaim stale job")
				continue
			}
			s.logger.Warn().
				Str("job_id", job.JobID).
				Int("retry", retry.RetryCount).
				Msg("Stale running job reclaimed to pending")
			s.publish(ctx, job, models.JobStatusPending, message, models.JobCounters{})
		} else {
			if err := s.jobs.MarkFailed(ctx, job.JobID, message); err != nil {
				s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to fail stale job")
				continue
			}
			s.logger.Error().
				Str("job_id", job.JobID).
				Msg("Stale running job failed, retry budget exhausted")
			s.publish(ctx, job, models.JobStatusFailed, message, models.JobCounters{})
		}
		reclaimed++
	}
	return reclaimed, nil
}

// CleanupOldJobs deletes terminal jobs older than the retention window.
func (s *Service) CleanupOldJobs(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	deleted, err := s.jobs.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info().
			Int64("deleted", deleted).
			Int("older_than_days", olderThanDays).
			Msg("Old jobs cleaned up")
	}
	return deleted, nil
}

// mustGet loads a job that a transition requires to exist.
func (s *Service) mustGet(ctx context.Context, jobID string) (*models.ScrapingJob, error) {
	job, err := s.jobs.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	return job, nil
}

// retryDelay resolves the per-job backoff, falling back to the
// configured default for rows created before the delay was persisted.
func (s *Service) retryDelay(job *models.ScrapingJob) time.Duration {
	minutes := job.Retry.RetryDelayMinutes
	if minutes <= 0 {
		minutes = s.config.RetryDelayMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// publish sends one lifecycle event. Strictly fire-and-forget: a broker
// problem is logged and never interferes with the transition itself.
func (s *Service) publish(ctx context.Context, job *models.ScrapingJob, status models.JobStatus, errMsg string, counters models.JobCounters) {
	if s.events == nil {
		return
	}
	event := models.JobEvent{
		JobID:       job.JobID,
		AirlineCode: job.AirlineCode,
		Status:      status,
		Error:       errMsg,
		Counters:    counters,
		At:          time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Event publication failed")
	}
}
