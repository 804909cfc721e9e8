// Package scheduler drives the engine. One poll loop leases jobs from
// the queue and executes them on a bounded worker pool; an optional cron
// branch enqueues due airlines; a background ticker reclaims jobs
// orphaned by dead workers and prunes old terminal rows.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

const (
	// reclaimInterval is how often stuck running jobs are swept.
	reclaimInterval = 5 * time.Minute

	// cleanupInterval is how often terminal job retention is enforced.
	cleanupInterval = time.Hour

	// shutdownWait bounds how long Stop waits for in-flight jobs. Jobs
	// still running afterwards stay running in the database and are
	// reclaimed on the next start.
	shutdownWait = 30 * time.Second
)

// Service implements interfaces.SchedulerService.
type Service struct {
	queue    interfaces.JobQueue
	workflow interfaces.WorkflowService
	airlines interfaces.AirlineStorage
	jobs     interfaces.JobStorage
	config   *common.ScraperConfig
	logger   arbor.ILogger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	cron    *cron.Cron
	sem     chan struct{}
}

// NewService creates the scheduler.
func NewService(queue interfaces.JobQueue, workflow interfaces.WorkflowService, airlines interfaces.AirlineStorage, jobs interfaces.JobStorage, config *common.ScraperConfig, logger arbor.ILogger) interfaces.SchedulerService {
	return &Service{
		queue:    queue,
		workflow: workflow,
		airlines: airlines,
		jobs:     jobs,
		config:   config,
		logger:   logger,
	}
}

// Start launches the poll loop, the reclamation ticker and, when enabled,
// the cron enqueue branch.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}

	limit := s.config.ConcurrentLimit
	if limit < 1 {
		limit = 1
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.sem = make(chan struct{}, limit)
	s.running = true
	s.mu.Unlock()

	if s.config.ScheduleEnabled {
		if err := s.startCron(); err != nil {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			cancel()
			return err
		}
	}

	// Rescue jobs a previous process left running before any new dispatch.
	if n, err := s.queue.ReclaimStale(loopCtx, s.config.DeadJobTimeout()); err != nil {
		s.logger.Warn().Err(err).Msg("Startup reclamation failed")
	} else if n > 0 {
		s.logger.Warn().Int("count", n).Msg("Reclaimed jobs from previous run")
	}

	common.SafeGo(s.logger, "pollLoop", func() { s.pollLoop(loopCtx) })
	common.SafeGo(s.logger, "maintenanceLoop", func() { s.maintenanceLoop(loopCtx) })

	s.logger.Info().
		Int("concurrent_limit", limit).
		Str("poll_interval", s.config.PollInterval().String()).
		Bool("cron_enabled", s.config.ScheduleEnabled).
		Msg("Scheduler started")
	return nil
}

// Stop halts the cron branch and leasing, then waits a bounded time for
// in-flight jobs to finish.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	cronRunner := s.cron
	s.cron = nil
	s.mu.Unlock()

	if cronRunner != nil {
		cronRunner.Stop()
	}
	cancel()

	timeout := time.After(shutdownWait)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for len(s.sem) > 0 {
		select {
		case <-timeout:
			s.logger.Warn().
				Int("count", len(s.sem)).
				Msg("Jobs still running at shutdown, they will be reclaimed on next start")
			return nil
		case <-ticker.C:
		}
	}

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning reports whether the scheduler loop is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// startCron registers the enqueue pass in the configured timezone.
func (s *Service) startCron() error {
	loc, err := time.LoadLocation(s.config.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	runner := cron.New(cron.WithLocation(loc))
	_, err = runner.AddFunc(s.config.ScheduleCron, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Msg("Recovered from panic in scheduled enqueue")
			}
		}()
		n, err := s.EnqueueDueAirlines(context.Background())
		if err != nil {
			s.logger.Error().Err(err).Msg("Scheduled enqueue failed")
			return
		}
		if n > 0 {
			s.logger.Info().Int("enqueued", n).Msg("Due airlines enqueued")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register cron schedule %q: %w", s.config.ScheduleCron, err)
	}

	runner.Start()
	s.mu.Lock()
	s.cron = runner
	s.mu.Unlock()

	s.logger.Info().
		Str("cron", s.config.ScheduleCron).
		Str("timezone", s.config.Timezone).
		Msg("Scheduled enqueue enabled")
	return nil
}

// EnqueueDueAirlines runs one pass of the cron branch: every
// scrape-enabled airline that is stale or never scraped, and has no
// pending or running job, gets a pending job. Never-scraped airlines
// enqueue at high priority.
func (s *Service) EnqueueDueAirlines(ctx context.Context) (int, error) {
	due, err := s.airlines.ListDue(ctx, s.config.StaleAfter(), s.config.EnqueueCapPerTick)
	if err != nil {
		return 0, fmt.Errorf("failed to list due airlines: %w", err)
	}

	enqueued := 0
	for _, airline := range due {
		active, err := s.jobs.HasActiveJob(ctx, airline.IATACode)
		if err != nil {
			s.logger.Warn().Err(err).Str("airline", airline.IATACode).Msg("Active job check failed")
			continue
		}
		if active {
			continue
		}

		staleness := common.CheckAirlineStaleness(airline.LastScrapedAt, time.Now(), s.config.StaleAfter())
		priority := models.JobPriorityNormal
		if airline.LastScrapedAt == nil {
			priority = models.JobPriorityHigh
		}
		if _, err := s.queue.Create(ctx, airline.IATACode, models.CreateJobOptions{Priority: priority}); err != nil {
			s.logger.Warn().Err(err).Str("airline", airline.IATACode).Msg("Enqueue failed")
			continue
		}
		s.logger.Debug().
			Str("airline", airline.IATACode).
			Str("priority", string(priority)).
			Str("reason", staleness.Reason).
			Msg("Airline enqueued")
		enqueued++
	}
	return enqueued, nil
}

// pollLoop leases and dispatches jobs until the context ends. Each pass
// drains the queue up to free capacity; an empty queue or a full pool
// waits out the poll interval.
func (s *Service) pollLoop(ctx context.Context) {
	interval := s.config.PollInterval()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.dispatchAvailable(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatchAvailable leases jobs while worker capacity remains. A lease
// error ends the pass; the next tick retries.
func (s *Service) dispatchAvailable(ctx context.Context) {
	for len(s.sem) < cap(s.sem) {
		if ctx.Err() != nil {
			return
		}

		job, err := s.queue.Lease(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Queue lease failed")
			return
		}
		if job == nil {
			return
		}

		if err := s.queue.Start(ctx, job.JobID); err != nil {
			s.logger.Warn().
				Err(err).
				Str("job_id", job.JobID).
				Msg("Failed to start leased job, lease hold will expire")
			continue
		}

		s.sem <- struct{}{}
		go s.execute(job)
	}
}

// execute runs one job to a terminal transition. The run gets its own
// timeout-bounded context rather than the loop's: shutdown stops leasing
// but lets in-flight jobs finish. The timeout never exceeds the
// dead-worker cutoff, so reclamation cannot re-dispatch a job this
// process is still working on.
func (s *Service) execute(job *models.ScrapingJob) {
	defer func() { <-s.sem }()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job_id", job.JobID).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Recovered from panic in job execution")
			if err := s.queue.Fail(context.Background(), job.JobID, fmt.Sprintf("internal error: %v", r), true); err != nil {
				s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to record panic failure")
			}
		}
	}()

	timeout := s.config.DeadJobTimeout()
	if timeout <= 0 {
		timeout = time.Hour
	}
	runCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	started := time.Now()
	s.logger.Info().
		Str("job_id", job.JobID).
		Str("airline", job.AirlineCode).
		Msg("Job execution started")

	result, err := s.workflow.RunFullUpdate(runCtx, job.AirlineCode, models.WorkflowOptions{
		ForceFullScrape: job.Retry.ForceFullScrape,
		DryRun:          job.Retry.DryRun,
	})
	if err != nil {
		message := failureMessage(err, timeout)
		s.logger.Error().
			Str("job_id", job.JobID).
			Str("error", message).
			Dur("duration", time.Since(started)).
			Msg("Job execution failed")
		if err := s.queue.Fail(context.Background(), job.JobID, message, models.IsRetryable(err)); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to record job failure")
		}
		return
	}

	s.logger.Info().
		Str("job_id", job.JobID).
		Int("discovered", result.AircraftFound).
		Dur("duration", time.Since(started)).
		Msg("Job execution completed")
	if err := s.queue.Complete(context.Background(), job.JobID, result.Counters()); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to record job completion")
	}
}

// maintenanceLoop sweeps stuck running jobs every reclaimInterval and
// enforces terminal job retention once per cleanupInterval.
func (s *Service) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(reclaimInterval)
	defer ticker.Stop()

	var lastCleanup time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if n, err := s.queue.ReclaimStale(ctx, s.config.DeadJobTimeout()); err != nil {
			s.logger.Error().Err(err).Msg("Stale job reclamation failed")
		} else if n > 0 {
			s.logger.Warn().Int("count", n).Msg("Stale running jobs reclaimed")
		}

		if s.config.CleanupAfterDays > 0 && time.Since(lastCleanup) >= cleanupInterval {
			if _, err := s.queue.CleanupOldJobs(ctx, s.config.CleanupAfterDays); err != nil {
				s.logger.Error().Err(err).Msg("Job cleanup failed")
			}
			lastCleanup = time.Now()
		}
	}
}

// failureMessage keeps the persisted error text human-readable. Sentinel
// wraps already carry their own phrasing; only the timeout needs one.
func failureMessage(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("job timed out after %s", timeout)
	}
	return err.Error()
}
