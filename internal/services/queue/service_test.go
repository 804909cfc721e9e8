package queue

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

func newTestQueue(jobs *fakeJobs, airlines *fakeAirlines, events *fakePublisher) interfaces.JobQueue {
	cfg := &common.ScraperConfig{
		MaxRetries:        3,
		RetryDelayMinutes: 30,
		CleanupAfterDays:  30,
	}
	return NewService(jobs, airlines, events, cfg, arbor.NewLogger())
}

func pendingJob(jobID string, retryCount, maxRetries int) *models.ScrapingJob {
	return &models.ScrapingJob{
		JobID:       jobID,
		AirlineCode: "QF",
		JobType:     models.JobTypeFullFleetUpdate,
		Status:      models.JobStatusPending,
		Priority:    models.JobPriorityNormal,
		Retry: models.RetryState{
			MaxRetries:        maxRetries,
			RetryDelayMinutes: 30,
			RetryCount:        retryCount,
			ScheduledAt:       time.Now().UTC(),
		},
	}
}

func TestCreate_Defaults(t *testing.T) {
	jobs := newFakeJobs()
	airlines := &fakeAirlines{airline: &models.Airline{ID: 1, IATACode: "QF", Name: "Qantas"}}
	events := &fakePublisher{}
	q := newTestQueue(jobs, airlines, events)

	jobID, err := q.Create(context.Background(), "qf", models.CreateJobOptions{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(jobID, "job_QF_"), "job id carries the IATA code")
	require.Len(t, jobs.inserted, 1)
	job := jobs.inserted[0]
	assert.Equal(t, models.JobTypeFullFleetUpdate, job.JobType)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, models.JobPriorityNormal, job.Priority)
	assert.Equal(t, "Qantas", job.AirlineName)
	assert.Equal(t, 3, job.Retry.MaxRetries, "retry budget from config")
	assert.Equal(t, 30, job.Retry.RetryDelayMinutes)
	assert.Equal(t, 0, job.Retry.RetryCount)
	assert.False(t, job.Retry.ScheduledAt.IsZero(), "immediately dispatchable")

	require.Len(t, events.published, 1)
	assert.Equal(t, models.JobStatusPending, events.published[0].Status)
	assert.Equal(t, "QF", events.published[0].AirlineCode)
}

func TestCreate_AirlineNotFound(t *testing.T) {
	airlines := &fakeAirlines{err: models.ErrAirlineNotFound}
	q := newTestQueue(newFakeJobs(), airlines, &fakePublisher{})

	_, err := q.Create(context.Background(), "ZZ", models.CreateJobOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrAirlineNotFound)
}

func TestCreate_ExplicitOptions(t *testing.T) {
	jobs := newFakeJobs()
	airlines := &fakeAirlines{airline: &models.Airline{ID: 1, IATACode: "QF"}}
	q := newTestQueue(jobs, airlines, &fakePublisher{})

	later := time.Now().UTC().Add(2 * time.Hour)
	_, err := q.Create(context.Background(), "QF", models.CreateJobOptions{
		Priority:        models.JobPriorityHigh,
		ScheduledAt:     later,
		MaxRetries:      1,
		ForceFullScrape: true,
		DryRun:          true,
	})
	require.NoError(t, err)

	job := jobs.inserted[0]
	assert.Equal(t, models.JobPriorityHigh, job.Priority)
	assert.Equal(t, later, job.Retry.ScheduledAt)
	assert.Equal(t, 1, job.Retry.MaxRetries)
	assert.True(t, job.Retry.ForceFullScrape)
	assert.True(t, job.Retry.DryRun)
}

func TestStart_PublishesRunning(t *testing.T) {
	jobs := newFakeJobs()
	jobs.add(pendingJob("job_QF_1", 0, 3))
	events := &fakePublisher{}
	q := newTestQueue(jobs, &fakeAirlines{}, events)

	require.NoError(t, q.Start(context.Background(), "job_QF_1"))

	assert.Equal(t, []string{"job_QF_1"}, jobs.started)
	require.Len(t, events.published, 1)
	assert.Equal(t, models.JobStatusRunning, events.published[0].Status)
}

func TestStart_UnknownJob(t *testing.T) {
	q := newTestQueue(newFakeJobs(), &fakeAirlines{}, &fakePublisher{})

	err := q.Start(context.Background(), "job_QF_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestComplete_ForwardsCounters(t *testing.T) {
	jobs := newFakeJobs()
	jobs.add(pendingJob("job_QF_1", 0, 3))
	events := &fakePublisher{}
	q := newTestQueue(jobs, &fakeAirlines{}, events)

	counters := models.JobCounters{Discovered: 10, New: 2, Updated: 7, Errors: 1}
	require.NoError(t, q.Complete(context.Background(), "job_QF_1", counters))

	assert.Equal(t, counters, jobs.completed["job_QF_1"])
	require.Len(t, events.published, 1)
	assert.Equal(t, models.JobStatusCompleted, events.published[0].Status)
	assert.Equal(t, counters, events.published[0].Counters)
}

func TestFail_RetrySchedules(t *testing.T) {
	jobs := newFakeJobs()
	jobs.add(pendingJob("job_QF_1", 0, 3))
	events := &fakePublisher{}
	q := newTestQueue(jobs, &fakeAirlines{}, events)

	before := time.Now().UTC()
	require.NoError(t, q.Fail(context.Background(), "job_QF_1", "Source unavailable: planespotters.net", true))

	retry, ok := jobs.rescheduled["job_QF_1"]
	require.True(t, ok, "retryable failure with budget goes back to pending")
	assert.Equal(t, 1, retry.RetryCount)
	assert.Equal(t, "Source unavailable: planespotters.net", retry.LastError)
	assert.True(t, retry.ScheduledAt.After(before.Add(29*time.Minute)),
		"scheduled_at shifted by the retry delay")
	assert.Empty(t, jobs.failed)

	require.Len(t, events.published, 1)
	assert.Equal(t, models.JobStatusPending, events.published[0].Status)
	assert.Equal(t, "Source unavailable: planespotters.net", events.published[0].Error)
}

func TestFail_BudgetExhausted(t *testing.T) {
	jobs := newFakeJobs()
	jobs.add(pendingJob("job_QF_1", 2, 3))
	events := &fakePublisher{}
	q := newTestQueue(jobs, &fakeAirlines{}, events)

	require.NoError(t, q.Fail(context.Background(), "job_QF_1", "Source unavailable: planespotters.net", true))

	assert.Empty(t, jobs.rescheduled)
	assert.Equal(t, "Source unavailable: planespotters.net", jobs.failed["job_QF_1"])
	require.Len(t, events.published, 1)
	assert.Equal(t, models.JobStatusFailed, events.published[0].Status)
}

func TestFail_NonRetryable(t *testing.T) {
	jobs := newFakeJobs()
	jobs.add(pendingJob("job_QF_1", 0, 3))
	q := newTestQueue(jobs, &fakeAirlines{}, &fakePublisher{})

	require.NoError(t, q.Fail(context.Background(), "job_QF_1", "Airline not found: ZZ", false))

	assert.Empty(t, jobs.rescheduled, "non-retryable failures never reschedule")
	assert.Equal(t, "Airline not found: ZZ", jobs.failed["job_QF_1"])
}

func TestCancel(t *testing.T) {
	jobs := newFakeJobs()
	jobs.add(pendingJob("job_QF_1", 0, 3))
	jobs.cancelOK = true
	events := &fakePublisher{}
	q := newTestQueue(jobs, &fakeAirlines{}, events)

	require.NoError(t, q.Cancel(context.Background(), "job_QF_1"))
	require.Len(t, events.published, 1)
	assert.Equal(t, models.JobStatusCancelled, events.published[0].Status)
}

func TestCancel_AlreadyTerminal(t *testing.T) {
	jobs := newFakeJobs()
	jobs.add(pendingJob("job_QF_1", 0, 3))
	jobs.cancelOK = false
	events := &fakePublisher{}
	q := newTestQueue(jobs, &fakeAirlines{}, events)

	err := q.Cancel(context.Background(), "job_QF_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already terminal")
	assert.Empty(t, events.published)
}

func TestReclaimStale_MixedBudgets(t *testing.T) {
	jobs := newFakeJobs()
	fresh := pendingJob("job_QF_1", 0, 3)
	spent := pendingJob("job_VA_1", 2, 3)
	spent.AirlineCode = "VA"
	jobs.add(fresh)
	jobs.add(spent)
	jobs.stale = []*models.ScrapingJob{fresh, spent}
	events := &fakePublisher{}
	q := newTestQueue(jobs, &fakeAirlines{}, events)

	reclaimed, err := q.ReclaimStale(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, reclaimed)

	retry, ok := jobs.rescheduled["job_QF_1"]
	require.True(t, ok, "budget left goes back to pending")
	assert.Equal(t, 1, retry.RetryCount, "a reclaim consumes a retry")
	assert.Contains(t, retry.LastError, "worker silent")

	_, ok = jobs.failed["job_VA_1"]
	assert.True(t, ok, "exhausted budget lands in failed")

	require.Len(t, events.published, 2)
	assert.Equal(t, models.JobStatusPending, events.published[0].Status)
	assert.Equal(t, models.JobStatusFailed, events.published[1].Status)
}

func TestReclaimStale_Empty(t *testing.T) {
	q := newTestQueue(newFakeJobs(), &fakeAirlines{}, &fakePublisher{})

	reclaimed, err := q.ReclaimStale(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, reclaimed)
}

func TestCleanupOldJobs(t *testing.T) {
	jobs := newFakeJobs()
	jobs.deleted = 4
	q := newTestQueue(jobs, &fakeAirlines{}, &fakePublisher{})

	deleted, err := q.CleanupOldJobs(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -30), jobs.deleteCutoff, time.Minute)
}

func TestLease_PassesThrough(t *testing.T) {
	jobs := newFakeJobs()
	leasable := pendingJob("job_QF_1", 0, 3)
	jobs.leasable = leasable
	q := newTestQueue(jobs, &fakeAirlines{}, &fakePublisher{})

	job, err := q.Lease(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "job_QF_1", job.JobID)
	assert.Equal(t, leaseHold, jobs.leaseHold)
}

// --- fakes ---

type fakeAirlines struct {
	airline *models.Airline
	err     error
}

func (f *fakeAirlines) FindByCode(ctx context.Context, code string) (*models.Airline, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.airline, nil
}

func (f *fakeAirlines) ListDue(ctx context.Context, staleAfter time.Duration, limit int) ([]*models.Airline, error) {
	return nil, nil
}

func (f *fakeAirlines) TouchScrapedAt(ctx context.Context, code string) error {
	return nil
}

type fakeJobs struct {
	jobs        map[string]*models.ScrapingJob
	inserted    []*models.ScrapingJob
	started     []string
	completed   map[string]models.JobCounters
	failed      map[string]string
	rescheduled map[string]models.RetryState
	cancelOK    bool
	stale       []*models.ScrapingJob
	leasable    *models.ScrapingJob
	leaseHold   time.Duration
	deleted     int64

	deleteCutoff time.Time
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		jobs:        make(map[string]*models.ScrapingJob),
		completed:   make(map[string]models.JobCounters),
		failed:      make(map[string]string),
		rescheduled: make(map[string]models.RetryState),
	}
}

func (f *fakeJobs) add(job *models.ScrapingJob) {
	f.jobs[job.JobID] = job
}

func (f *fakeJobs) Insert(ctx context.Context, job *models.ScrapingJob) error {
	f.inserted = append(f.inserted, job)
	f.jobs[job.JobID] = job
	return nil
}

func (f *fakeJobs) GetByJobID(ctx context.Context, jobID string) (*models.ScrapingJob, error) {
	return f.jobs[jobID], nil
}

func (f *fakeJobs) LeaseNext(ctx context.Context, holdFor time.Duration) (*models.ScrapingJob, error) {
	f.leaseHold = holdFor
	return f.leasable, nil
}

func (f *fakeJobs) MarkStarted(ctx context.Context, jobID string) error {
	f.started = append(f.started, jobID)
	return nil
}

func (f *fakeJobs) MarkCompleted(ctx context.Context, jobID string, counters models.JobCounters) error {
	f.completed[jobID] = counters
	return nil
}

func (f *fakeJobs) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	f.failed[jobID] = errMsg
	return nil
}

func (f *fakeJobs) Reschedule(ctx context.Context, jobID string, retry models.RetryState) error {
	f.rescheduled[jobID] = retry
	return nil
}

func (f *fakeJobs) MarkCancelled(ctx context.Context, jobID string) (bool, error) {
	return f.cancelOK, nil
}

func (f *fakeJobs) Stats(ctx context.Context) (*models.QueueStats, error) {
	return &models.QueueStats{}, nil
}

func (f *fakeJobs) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*models.ScrapingJob, error) {
	return f.stale, nil
}

func (f *fakeJobs) HasActiveJob(ctx context.Context, airlineCode string) (bool, error) {
	return false, nil
}

func (f *fakeJobs) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.deleteCutoff = cutoff
	return f.deleted, nil
}

type fakePublisher struct {
	published []models.JobEvent
}

func (f *fakePublisher) Publish(ctx context.Context, event models.JobEvent) error {
	f.published = append(f.published, event)
	return nil
}

func (f *fakePublisher) Close() {}
