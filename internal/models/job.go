package models

import (
	"fmt"
	"time"
)

// JobStatus is the queue state of a scraping job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobPriority orders dispatch. High drains before normal, normal before low;
// ties break on creation time.
type JobPriority string

const (
	JobPriorityHigh   JobPriority = "high"
	JobPriorityNormal JobPriority = "normal"
	JobPriorityLow    JobPriority = "low"
)

// JobType names what a job does when leased.
type JobType string

const (
	JobTypeFullFleetUpdate JobType = "full_fleet_update"
	JobTypeAircraftDetails JobType = "aircraft_details"
	JobTypeValidation      JobType = "validation"
)

// RetryState is the job's retry bookkeeping, persisted as the
// result_summary jsonb payload. ScheduledAt gates lease eligibility; a
// retryable failure pushes it forward by RetryDelayMinutes.
type RetryState struct {
	MaxRetries        int       `json:"max_retries"`
	RetryDelayMinutes int       `json:"retry_delay_minutes"`
	RetryCount        int       `json:"retry_count"`
	ScheduledAt       time.Time `json:"scheduled_at"` // ISO-8601 UTC
	LastError         string    `json:"last_error,omitempty"`
	ForceFullScrape   bool      `json:"force_full_scrape,omitempty"`
	DryRun            bool      `json:"dry_run,omitempty"`
}

// ScrapingJob is one queued fleet update. Status transitions are owned by
// the queue: pending -> running -> completed | failed, with failed-but-
// retryable hops back to pending, and cancel allowed from pending/running.
type ScrapingJob struct {
	ID              int64       `json:"id"`
	JobID           string      `json:"job_id"` // "job_<IATA>_<unixMillis>"
	AirlineCode     string      `json:"airline_code"`
	AirlineName     string      `json:"airline_name,omitempty"`
	JobType         JobType     `json:"job_type"`
	Status          JobStatus   `json:"status"`
	Priority        JobPriority `json:"priority"`
	LeasedUntil     *time.Time  `json:"leased_until,omitempty"` // short dispatch hold, not a run lock
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	DurationSeconds *float64    `json:"duration_seconds,omitempty"`
	DiscoveredCount int         `json:"discovered_count"`
	NewCount        int         `json:"new_count"`
	UpdatedCount    int         `json:"updated_count"`
	ErrorCount      int         `json:"error_count"`
	Progress        float64     `json:"progress"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	Retry           RetryState  `json:"result_summary"` // jsonb column
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// JobCounters is the result tally reported when a job completes.
type JobCounters struct {
	Discovered int `json:"discovered"`
	New        int `json:"new"`
	Updated    int `json:"updated"`
	Errors     int `json:"errors"`
}

// CreateJobOptions configures job creation. Zero values take the queue
// defaults (full_fleet_update, normal priority, immediate scheduling and
// the configured retry policy).
type CreateJobOptions struct {
	JobType           JobType
	Priority          JobPriority
	ScheduledAt       time.Time
	MaxRetries        int
	RetryDelayMinutes int
	ForceFullScrape   bool
	DryRun            bool
}

// QueueStats is the by-status tally for the whole queue.
type QueueStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Total     int `json:"total"`
}

// NewJobID builds the canonical job identifier for an airline. Millisecond
// timestamps keep ids unique per airline at any realistic enqueue rate.
func NewJobID(iataCode string, at time.Time) string {
	return fmt.Sprintf("job_%s_%d", iataCode, at.UnixMilli())
}
