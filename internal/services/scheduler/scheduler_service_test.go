package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/models"
)

func testConfig() *common.ScraperConfig {
	return &common.ScraperConfig{
		ConcurrentLimit:       2,
		PollIntervalMS:        50,
		MaxRetries:            3,
		RetryDelayMinutes:     30,
		ScheduleCron:          "0 2 * * *",
		Timezone:              "UTC",
		StaleAfterDays:        7,
		DeadJobTimeoutMinutes: 60,
		CleanupAfterDays:      30,
		EnqueueCapPerTick:     100,
	}
}

func newTestScheduler(q *fakeQueue, wf *fakeWorkflow, airlines *fakeAirlines, jobs *fakeJobs, cfg *common.ScraperConfig) *Service {
	if cfg == nil {
		cfg = testConfig()
	}
	return &Service{
		queue:    q,
		workflow: wf,
		airlines: airlines,
		jobs:     jobs,
		config:   cfg,
		logger:   arbor.NewLogger(),
		sem:      make(chan struct{}, cfg.ConcurrentLimit),
	}
}

func runningJob(jobID string) *models.ScrapingJob {
	return &models.ScrapingJob{
		JobID:       jobID,
		AirlineCode: "QF",
		JobType:     models.JobTypeFullFleetUpdate,
		Status:      models.JobStatusRunning,
		Priority:    models.JobPriorityNormal,
		Retry: models.RetryState{
			MaxRetries:        3,
			RetryDelayMinutes: 30,
			ScheduledAt:       time.Now().UTC(),
		},
	}
}

func TestEnqueueDueAirlines(t *testing.T) {
	last := time.Now().Add(-30 * 24 * time.Hour)
	airlines := &fakeAirlines{due: []*models.Airline{
		{IATACode: "QF", LastScrapedAt: &last},
		{IATACode: "BA", LastScrapedAt: &last},
		{IATACode: "DL"},
	}}
	jobs := newFakeJobs()
	jobs.active["QF"] = true
	q := newFakeQueue()
	s := newTestScheduler(q, &fakeWorkflow{}, airlines, jobs, nil)

	n, err := s.EnqueueDueAirlines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	created := q.createdCalls()
	require.Len(t, created, 2, "airline with an active job is skipped")
	assert.Equal(t, "BA", created[0].airline)
	assert.Equal(t, models.JobPriorityNormal, created[0].opts.Priority)
	assert.Equal(t, "DL", created[1].airline)
	assert.Equal(t, models.JobPriorityHigh, created[1].opts.Priority, "never-scraped airlines jump the queue")

	assert.Equal(t, 7*24*time.Hour, airlines.staleSeen)
	assert.Equal(t, 100, airlines.limitSeen)
}

func TestEnqueueDueAirlines_ListError(t *testing.T) {
	airlines := &fakeAirlines{dueErr: errors.New("connection refused")}
	s := newTestScheduler(newFakeQueue(), &fakeWorkflow{}, airlines, newFakeJobs(), nil)

	_, err := s.EnqueueDueAirlines(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list due airlines")
}

func TestEnqueueDueAirlines_CreateFailureSkips(t *testing.T) {
	airlines := &fakeAirlines{due: []*models.Airline{{IATACode: "QF"}, {IATACode: "BA"}}}
	q := newFakeQueue()
	q.createErr = errors.New("insert failed")
	s := newTestScheduler(q, &fakeWorkflow{}, airlines, newFakeJobs(), nil)

	n, err := s.EnqueueDueAirlines(context.Background())
	require.NoError(t, err, "per-airline failures do not abort the pass")
	assert.Equal(t, 0, n)
}

func TestEnqueueDueAirlines_ActiveCheckFailureSkips(t *testing.T) {
	airlines := &fakeAirlines{due: []*models.Airline{{IATACode: "QF"}, {IATACode: "BA"}}}
	jobs := newFakeJobs()
	jobs.activeErr["QF"] = errors.New("query timeout")
	q := newFakeQueue()
	s := newTestScheduler(q, &fakeWorkflow{}, airlines, jobs, nil)

	n, err := s.EnqueueDueAirlines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	created := q.createdCalls()
	require.Len(t, created, 1)
	assert.Equal(t, "BA", created[0].airline)
}

func TestStartStop(t *testing.T) {
	q := newFakeQueue()
	s := newTestScheduler(q, &fakeWorkflow{}, &fakeAirlines{}, newFakeJobs(), nil)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop(), "stop is idempotent")

	reclaims := q.reclaimCalls()
	require.NotEmpty(t, reclaims, "startup reclamation ran before dispatch")
	assert.Equal(t, time.Hour, reclaims[0])
}

func TestStart_CronEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.ScheduleEnabled = true
	s := newTestScheduler(newFakeQueue(), &fakeWorkflow{}, &fakeAirlines{}, newFakeJobs(), cfg)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Stop())
}

func TestStart_InvalidTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.ScheduleEnabled = true
	cfg.Timezone = "Mars/Olympus"
	s := newTestScheduler(newFakeQueue(), &fakeWorkflow{}, &fakeAirlines{}, newFakeJobs(), cfg)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timezone")
	assert.False(t, s.IsRunning())
}

func TestStart_BadCronExpression(t *testing.T) {
	cfg := testConfig()
	cfg.ScheduleEnabled = true
	cfg.ScheduleCron = "not a schedule"
	s := newTestScheduler(newFakeQueue(), &fakeWorkflow{}, &fakeAirlines{}, newFakeJobs(), cfg)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cron")
	assert.False(t, s.IsRunning())
}

func TestExecute_Complete(t *testing.T) {
	q := newFakeQueue()
	wf := &fakeWorkflow{result: &models.WorkflowResult{
		AirlineCode:     "QF",
		AircraftFound:   12,
		AircraftAdded:   2,
		AircraftUpdated: 9,
		Errors:          1,
	}}
	s := newTestScheduler(q, wf, &fakeAirlines{}, newFakeJobs(), nil)

	job := runningJob("job_QF_1")
	job.Retry.ForceFullScrape = true
	job.Retry.DryRun = true

	s.sem <- struct{}{}
	s.execute(job)

	calls := wf.workflowCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "QF", calls[0].airline)
	assert.True(t, calls[0].opts.ForceFullScrape, "flag carried from the job")
	assert.True(t, calls[0].opts.DryRun)

	counters, ok := q.completedCounters("job_QF_1")
	require.True(t, ok)
	assert.Equal(t, models.JobCounters{Discovered: 12, New: 2, Updated: 9, Errors: 1}, counters)
	assert.Empty(t, q.failedCalls())
	assert.Len(t, s.sem, 0, "worker slot released")
}

func TestExecute_RetryableFailure(t *testing.T) {
	q := newFakeQueue()
	wf := &fakeWorkflow{err: errors.New("details collection failed: 503")}
	s := newTestScheduler(q, wf, &fakeAirlines{}, newFakeJobs(), nil)

	s.sem <- struct{}{}
	s.execute(runningJob("job_QF_2"))

	failed := q.failedCalls()
	require.Len(t, failed, 1)
	assert.Equal(t, "job_QF_2", failed[0].jobID)
	assert.Equal(t, "details collection failed: 503", failed[0].message)
	assert.True(t, failed[0].shouldRetry)
	assert.Equal(t, 0, q.completedCount())
}

func TestExecute_NonRetryableFailure(t *testing.T) {
	q := newFakeQueue()
	wf := &fakeWorkflow{err: fmt.Errorf("%w: ZZ", models.ErrAirlineNotFound)}
	s := newTestScheduler(q, wf, &fakeAirlines{}, newFakeJobs(), nil)

	s.sem <- struct{}{}
	s.execute(runningJob("job_ZZ_1"))

	failed := q.failedCalls()
	require.Len(t, failed, 1)
	assert.False(t, failed[0].shouldRetry, "unknown airline never retries")
	assert.Contains(t, failed[0].message, "Airline not found")
}

func TestExecute_TimeoutMessage(t *testing.T) {
	cfg := testConfig()
	cfg.DeadJobTimeoutMinutes = 30
	q := newFakeQueue()
	wf := &fakeWorkflow{err: context.DeadlineExceeded}
	s := newTestScheduler(q, wf, &fakeAirlines{}, newFakeJobs(), cfg)

	s.sem <- struct{}{}
	s.execute(runningJob("job_QF_3"))

	failed := q.failedCalls()
	require.Len(t, failed, 1)
	assert.Equal(t, "job timed out after 30m0s", failed[0].message)
	assert.True(t, failed[0].shouldRetry, "timeouts stay retryable")
}

func TestExecute_PanicRecovered(t *testing.T) {
	q := newFakeQueue()
	wf := &fakeWorkflow{panics: true}
	s := newTestScheduler(q, wf, &fakeAirlines{}, newFakeJobs(), nil)

	s.sem <- struct{}{}
	s.execute(runningJob("job_QF_4"))

	failed := q.failedCalls()
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].message, "internal error")
	assert.True(t, failed[0].shouldRetry)
	assert.Len(t, s.sem, 0, "worker slot released after panic")
}

func TestDispatchAvailable(t *testing.T) {
	q := newFakeQueue()
	q.leasable = []*models.ScrapingJob{runningJob("job_QF_1"), runningJob("job_QF_2")}
	wf := &fakeWorkflow{}
	s := newTestScheduler(q, wf, &fakeAirlines{}, newFakeJobs(), nil)

	s.dispatchAvailable(context.Background())

	assert.Equal(t, []string{"job_QF_1", "job_QF_2"}, q.startedJobs())
	require.Eventually(t, func() bool { return q.completedCount() == 2 },
		2*time.Second, 10*time.Millisecond, "both jobs run to completion")
	require.Eventually(t, func() bool { return len(s.sem) == 0 },
		2*time.Second, 10*time.Millisecond, "all worker slots released")
}

func TestDispatchAvailable_PoolFull(t *testing.T) {
	cfg := testConfig()
	cfg.ConcurrentLimit = 1
	q := newFakeQueue()
	q.leasable = []*models.ScrapingJob{runningJob("job_QF_1")}
	s := newTestScheduler(q, &fakeWorkflow{}, &fakeAirlines{}, newFakeJobs(), cfg)

	s.sem <- struct{}{}
	s.dispatchAvailable(context.Background())

	assert.Equal(t, 1, q.leasableCount(), "nothing leased while the pool is full")
	assert.Empty(t, q.startedJobs())
}

func TestDispatchAvailable_StartFailureSkipsJob(t *testing.T) {
	q := newFakeQueue()
	q.leasable = []*models.ScrapingJob{runningJob("job_QF_1"), runningJob("job_QF_2")}
	q.startErr["job_QF_1"] = errors.New("connection reset")
	wf := &fakeWorkflow{}
	s := newTestScheduler(q, wf, &fakeAirlines{}, newFakeJobs(), nil)

	s.dispatchAvailable(context.Background())

	assert.Equal(t, []string{"job_QF_2"}, q.startedJobs())
	require.Eventually(t, func() bool { return q.completedCount() == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, wf.callCount(), "the job that failed to start never executes")
}

// --- fakes ---

type createCall struct {
	airline string
	opts    models.CreateJobOptions
}

type failCall struct {
	jobID       string
	message     string
	shouldRetry bool
}

type fakeQueue struct {
	mu        sync.Mutex
	leasable  []*models.ScrapingJob
	createErr error
	startErr  map[string]error
	created   []createCall
	started   []string
	completed map[string]models.JobCounters
	failed    []failCall
	reclaims  []time.Duration
	cleanups  []int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		startErr:  map[string]error{},
		completed: map[string]models.JobCounters{},
	}
}

func (f *fakeQueue) Create(ctx context.Context, airlineCode string, opts models.CreateJobOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, createCall{airline: airlineCode, opts: opts})
	return models.NewJobID(airlineCode, time.Now()), nil
}

func (f *fakeQueue) Lease(ctx context.Context) (*models.ScrapingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.leasable) == 0 {
		return nil, nil
	}
	job := f.leasable[0]
	f.leasable = f.leasable[1:]
	return job, nil
}

func (f *fakeQueue) Start(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.startErr[jobID]; err != nil {
		return err
	}
	f.started = append(f.started, jobID)
	return nil
}

func (f *fakeQueue) Complete(ctx context.Context, jobID string, counters models.JobCounters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[jobID] = counters
	return nil
}

func (f *fakeQueue) Fail(ctx context.Context, jobID string, errMsg string, shouldRetry bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, failCall{jobID: jobID, message: errMsg, shouldRetry: shouldRetry})
	return nil
}

func (f *fakeQueue) Cancel(ctx context.Context, jobID string) error { return nil }

func (f *fakeQueue) GetStatus(ctx context.Context, jobID string) (*models.ScrapingJob, error) {
	return nil, nil
}

func (f *fakeQueue) Stats(ctx context.Context) (*models.QueueStats, error) {
	return &models.QueueStats{}, nil
}

func (f *fakeQueue) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reclaims = append(f.reclaims, olderThan)
	return 0, nil
}

func (f *fakeQueue) CleanupOldJobs(ctx context.Context, olderThanDays int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups = append(f.cleanups, olderThanDays)
	return 0, nil
}

func (f *fakeQueue) createdCalls() []createCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]createCall(nil), f.created...)
}

func (f *fakeQueue) startedJobs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

func (f *fakeQueue) completedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completed)
}

func (f *fakeQueue) completedCounters(jobID string) (models.JobCounters, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counters, ok := f.completed[jobID]
	return counters, ok
}

func (f *fakeQueue) failedCalls() []failCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]failCall(nil), f.failed...)
}

func (f *fakeQueue) reclaimCalls() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.reclaims...)
}

func (f *fakeQueue) leasableCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.leasable)
}

type workflowCall struct {
	airline string
	opts    models.WorkflowOptions
}

type fakeWorkflow struct {
	mu     sync.Mutex
	result *models.WorkflowResult
	err    error
	panics bool
	calls  []workflowCall
}

func (f *fakeWorkflow) RunFullUpdate(ctx context.Context, airlineCode string, opts models.WorkflowOptions) (*models.WorkflowResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, workflowCall{airline: airlineCode, opts: opts})
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &models.WorkflowResult{AirlineCode: airlineCode}, nil
}

func (f *fakeWorkflow) workflowCalls() []workflowCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]workflowCall(nil), f.calls...)
}

func (f *fakeWorkflow) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAirlines struct {
	due       []*models.Airline
	dueErr    error
	staleSeen time.Duration
	limitSeen int
}

func (f *fakeAirlines) FindByCode(ctx context.Context, code string) (*models.Airline, error) {
	return nil, models.ErrAirlineNotFound
}

func (f *fakeAirlines) ListDue(ctx context.Context, staleAfter time.Duration, limit int) ([]*models.Airline, error) {
	f.staleSeen = staleAfter
	f.limitSeen = limit
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	return f.due, nil
}

func (f *fakeAirlines) TouchScrapedAt(ctx context.Context, code string) error { return nil }

type fakeJobs struct {
	active    map[string]bool
	activeErr map[string]error
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		active:    map[string]bool{},
		activeErr: map[string]error{},
	}
}

func (f *fakeJobs) Insert(ctx context.Context, job *models.ScrapingJob) error { return nil }

func (f *fakeJobs) GetByJobID(ctx context.Context, jobID string) (*models.ScrapingJob, error) {
	return nil, nil
}

func (f *fakeJobs) LeaseNext(ctx context.Context, holdFor time.Duration) (*models.ScrapingJob, error) {
	return nil, nil
}

func (f *fakeJobs) MarkStarted(ctx context.Context, jobID string) error { return nil }

func (f *fakeJobs) MarkCompleted(ctx context.Context, jobID string, counters models.JobCounters) error {
	return nil
}

func (f *fakeJobs) MarkFailed(ctx context.Context, jobID string, errMsg string) error { return nil }

func (f *fakeJobs) Reschedule(ctx context.Context, jobID string, retry models.RetryState) error {
	return nil
}

func (f *fakeJobs) MarkCancelled(ctx context.Context, jobID string) (bool, error) {
	return false, nil
}

func (f *fakeJobs) Stats(ctx context.Context) (*models.QueueStats, error) {
	return &models.QueueStats{}, nil
}

func (f *fakeJobs) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*models.ScrapingJob, error) {
	return nil, nil
}

func (f *fakeJobs) HasActiveJob(ctx context.Context, airlineCode string) (bool, error) {
	if err := f.activeErr[airlineCode]; err != nil {
		return false, err
	}
	return f.active[airlineCode], nil
}

func (f *fakeJobs) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
