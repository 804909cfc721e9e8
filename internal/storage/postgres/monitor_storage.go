package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

// MonitorStorage implements the read-only aggregations behind the status
// surface. Everything here is a single-scan FILTER query; nothing mutates.
type MonitorStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewMonitorStorage creates a new monitor storage instance
func NewMonitorStorage(db *DB, logger arbor.ILogger) interfaces.MonitorStorage {
	return &MonitorStorage{
		db:     db,
		logger: logger,
	}
}

// QueueHealth reports live queue depth plus a 24-hour completion window and
// the 7-day job volume.
func (s *MonitorStorage) QueueHealth(ctx context.Context) (*models.QueueHealth, error) {
	var h models.QueueHealth
	err := s.db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'running'),
			COUNT(*) FILTER (WHERE status = 'completed' AND completed_at > now() - interval '24 hours'),
			COUNT(*) FILTER (WHERE status = 'failed' AND completed_at > now() - interval '24 hours'),
			COUNT(*) FILTER (WHERE created_at > now() - interval '7 days'),
			COALESCE(AVG(duration_seconds) FILTER (WHERE status = 'completed' AND completed_at > now() - interval '24 hours'), 0)
		FROM scraping_jobs`).Scan(
		&h.Pending, &h.Running, &h.Completed24h, &h.Failed24h,
		&h.Total7d, &h.AvgDurationSec,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate queue health: %w", err)
	}
	return &h, nil
}

// RecentJobs returns the newest jobs regardless of status.
func (s *MonitorStorage) RecentJobs(ctx context.Context, limit int) ([]*models.ScrapingJob, error) {
	rows, err := s.db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM scraping_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ScrapingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recent job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Coverage reports how much of the enabled airline catalog has been
// scraped, and how much of that has gone stale.
func (s *MonitorStorage) Coverage(ctx context.Context, staleAfter time.Duration) (*models.AirlineCoverage, error) {
	cutoff := time.Now().Add(-staleAfter)

	var c models.AirlineCoverage
	err := s.db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE last_scraped_at IS NOT NULL),
			COUNT(*) FILTER (WHERE last_scraped_at IS NULL),
			COUNT(*) FILTER (WHERE last_scraped_at IS NOT NULL AND last_scraped_at < $1)
		FROM airlines
		WHERE scrape_enabled`, cutoff).Scan(
		&c.Total, &c.Scraped, &c.NeverScraped, &c.Stale,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate airline coverage: %w", err)
	}
	return &c, nil
}

// Quality buckets aircraft by extraction confidence: high is 0.8 and up,
// medium 0.5 to 0.8, low above zero, unscored when the metadata carries
// no score or a zero one.
func (s *MonitorStorage) Quality(ctx context.Context) (*models.DataQuality, error) {
	var q models.DataQuality
	err := s.db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE score >= 0.8),
			COUNT(*) FILTER (WHERE score >= 0.5 AND score < 0.8),
			COUNT(*) FILTER (WHERE score > 0 AND score < 0.5),
			COUNT(*) FILTER (WHERE score IS NULL OR score = 0)
		FROM (
			SELECT NULLIF(metadata->>'confidence_score', '')::double precision AS score
			FROM aircraft
		) scored`).Scan(
		&q.High, &q.Medium, &q.Low, &q.Unscored,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate data quality: %w", err)
	}
	return &q, nil
}
