// Package monitor serves the read-only status surface: queue health,
// recent jobs, airline coverage and confidence buckets. It aggregates
// what the storage layer computes and never writes.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

const (
	// recentJobsLimit caps the job list in a snapshot.
	recentJobsLimit = 20

	// coverageStaleAfter marks an airline stale for reporting. Looser than
	// the scheduler's re-scrape age: coverage flags neglect, not dueness.
	coverageStaleAfter = 30 * 24 * time.Hour
)

// Service implements interfaces.MonitorService.
type Service struct {
	storage interfaces.MonitorStorage
	jobs    interfaces.JobStorage
	logger  arbor.ILogger
}

// NewService creates the monitor.
func NewService(storage interfaces.MonitorStorage, jobs interfaces.JobStorage, logger arbor.ILogger) interfaces.MonitorService {
	return &Service{
		storage: storage,
		jobs:    jobs,
		logger:  logger,
	}
}

// Snapshot assembles the full status view. Any failing aggregation fails
// the snapshot; a partial view would read as healthy when it is not.
func (s *Service) Snapshot(ctx context.Context) (*models.MonitorSnapshot, error) {
	queue, err := s.storage.QueueHealth(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue health: %w", err)
	}

	recent, err := s.storage.RecentJobs(ctx, recentJobsLimit)
	if err != nil {
		return nil, fmt.Errorf("recent jobs: %w", err)
	}

	coverage, err := s.storage.Coverage(ctx, coverageStaleAfter)
	if err != nil {
		return nil, fmt.Errorf("airline coverage: %w", err)
	}

	quality, err := s.storage.Quality(ctx)
	if err != nil {
		return nil, fmt.Errorf("data quality: %w", err)
	}

	return &models.MonitorSnapshot{
		Queue:       *queue,
		RecentJobs:  recent,
		Coverage:    *coverage,
		Quality:     *quality,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// JobStatus returns one job by its public id, or (nil, nil) when absent.
func (s *Service) JobStatus(ctx context.Context, jobID string) (*models.ScrapingJob, error) {
	job, err := s.jobs.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	return job, nil
}
