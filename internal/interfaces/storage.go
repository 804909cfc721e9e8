package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/aerofleet/internal/models"
)

// AirlineStorage - read/touch access to the airlines table
type AirlineStorage interface {
	// FindByCode resolves an airline by IATA or ICAO code,
	// case-insensitively. Returns models.ErrAirlineNotFound when absent.
	FindByCode(ctx context.Context, code string) (*models.Airline, error)

	// ListDue returns scrape-enabled airlines that were never scraped or
	// whose last scrape is older than staleAfter, capped at limit.
	ListDue(ctx context.Context, staleAfter time.Duration, limit int) ([]*models.Airline, error)

	// TouchScrapedAt stamps last_scraped_at = now for the airline.
	TouchScrapedAt(ctx context.Context, code string) error
}

// AircraftStorage - typed upserts and lookups over aircraft, aircraft_types
// and aircraft_configurations
type AircraftStorage interface {
	// FindTypeByCode resolves an aircraft type by IATA or ICAO type code.
	// Returns models.ErrAircraftTypeNotFound when absent.
	FindTypeByCode(ctx context.Context, code string) (*models.AircraftType, error)

	// FindByRegistration returns the aircraft with its type and current
	// configuration joined, or (nil, nil) when no such registration exists.
	// Case-insensitive.
	FindByRegistration(ctx context.Context, registration string) (*models.Aircraft, error)

	// Insert creates a new aircraft row and returns its id. Fails when the
	// registration already exists (case-insensitive unique index).
	Insert(ctx context.Context, aircraft *models.Aircraft) (int64, error)

	// Update patches an existing aircraft by registration and returns its
	// id. Only non-null patch fields overwrite; MSN and delivery_date keep
	// their present values when the patch carries none (COALESCE); status
	// always overwrites. Touches updated_at and last_scraped_at.
	Update(ctx context.Context, registration string, patch *models.Aircraft) (int64, error)

	// ReplaceCurrentConfiguration retires every configuration row of the
	// aircraft and inserts config as the single current one, atomically.
	ReplaceCurrentConfiguration(ctx context.Context, aircraftID int64, config *models.AircraftConfiguration) error
}

// JobStorage - row-level operations on the scraping_jobs table. Queue
// semantics (retry policy, event publication) live in the queue service;
// this layer owns the SQL, including the SKIP LOCKED lease.
type JobStorage interface {
	Insert(ctx context.Context, job *models.ScrapingJob) error

	// GetByJobID returns the job or (nil, nil) when absent.
	GetByJobID(ctx context.Context, jobID string) (*models.ScrapingJob, error)

	// LeaseNext claims the next dispatchable pending job: scheduled_at due,
	// no live lease hold, highest priority first, oldest first. The row is
	// stamped with a lease hold of holdFor and returned still pending;
	// concurrent leasers skip locked rows and never collide. Returns
	// (nil, nil) when nothing is dispatchable.
	LeaseNext(ctx context.Context, holdFor time.Duration) (*models.ScrapingJob, error)

	// MarkStarted moves a job to running and stamps started_at.
	MarkStarted(ctx context.Context, jobID string) error

	// MarkCompleted moves a job to completed, stamps completed_at, derives
	// duration_seconds from started_at and records the counters. Clears
	// the lease hold.
	MarkCompleted(ctx context.Context, jobID string, counters models.JobCounters) error

	// MarkFailed moves a job to its terminal failed state with the
	// human-readable message, stamps completed_at and increments the error
	// counter. Clears the lease hold.
	MarkFailed(ctx context.Context, jobID string, errMsg string) error

	// Reschedule moves a job back to pending with the updated retry state
	// (shifted scheduled_at, incremented retry_count). Clears the lease
	// hold and started_at.
	Reschedule(ctx context.Context, jobID string, retry models.RetryState) error

	// MarkCancelled cancels a job if it is pending or running. Returns
	// false when the job was already terminal.
	MarkCancelled(ctx context.Context, jobID string) (bool, error)

	// Stats tallies jobs by status.
	Stats(ctx context.Context) (*models.QueueStats, error)

	// ListStaleRunning returns running jobs whose started_at is older than
	// cutoff - candidates for dead-worker reclamation.
	ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*models.ScrapingJob, error)

	// HasActiveJob reports whether a pending or running job already exists
	// for the airline. The cron branch uses it to avoid duplicate enqueues.
	HasActiveJob(ctx context.Context, airlineCode string) (bool, error)

	// DeleteTerminalOlderThan removes completed/failed/cancelled jobs whose
	// completed_at is before cutoff. Returns the number deleted.
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MonitorStorage - read-only aggregations for the status surface
type MonitorStorage interface {
	QueueHealth(ctx context.Context) (*models.QueueHealth, error)
	RecentJobs(ctx context.Context, limit int) ([]*models.ScrapingJob, error)
	Coverage(ctx context.Context, staleAfter time.Duration) (*models.AirlineCoverage, error)
	Quality(ctx context.Context) (*models.DataQuality, error)
}

// StorageManager - composite interface over the postgres pool
type StorageManager interface {
	Airlines() AirlineStorage
	Aircraft() AircraftStorage
	Jobs() JobStorage
	Monitor() MonitorStorage
	Ping(ctx context.Context) error
	Close()
}
