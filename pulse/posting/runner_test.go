package posting

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/teranos/postpulse/content"
	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/outbound"
)

func TestRun_PostsDueJob(t *testing.T) {
	f := newFixture(t)
	job, item := f.seedJob(t, "hello world", -time.Minute)

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "hello world").
		Return(outbound.Result{OK: true, StatusCode: 201, ExternalID: "ext-1"}, nil).Once()

	report, err := f.runner(adapter).Run(context.Background(), testOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, report.ProcessedCount)
	require.Len(t, report.Results, 1)
	assert.Equal(t, job.ID, report.Results[0].JobID)
	assert.Equal(t, OutcomeSuccess, report.Results[0].Outcome)

	got := f.job(t, job.ID)
	assert.Equal(t, JobStatusSuccess, got.Status)
	assert.Nil(t, got.LockedAt)
	assert.Equal(t, 0, got.Attempts)

	posted := f.item(t, item.ID)
	assert.Equal(t, content.StatusPosted, posted.Status)
	assert.Equal(t, "ext-1", posted.ExternalID)
	require.NotNil(t, posted.PostedAt)
	assert.True(t, posted.PostedAt.Equal(baseTime))

	adapter.AssertExpectations(t)
}

func TestRun_RateLimitedJobIsRetried(t *testing.T) {
	f := newFixture(t)
	job, item := f.seedJob(t, "hello", -time.Minute)

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "hello").
		Return(outbound.Result{OK: false, StatusCode: 429}, nil).Once()

	opts := testOptions()
	opts.MaxRetries = 3
	report, err := f.runner(adapter).Run(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomePending, report.Results[0].Outcome)
	assert.Equal(t, "Post failed (429)", report.Results[0].Detail)

	got := f.job(t, job.ID)
	assert.Equal(t, JobStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Nil(t, got.LockedAt)
	assert.Equal(t, "Post failed (429)", got.LastError)
	assert.True(t, got.RunAt.Equal(baseTime))

	assert.Equal(t, content.StatusScheduled, f.item(t, item.ID).Status)
}

func TestRun_RetryBound(t *testing.T) {
	f := newFixture(t)
	job, item := f.seedJob(t, "flaky", -time.Minute)

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "flaky").
		Return(outbound.Result{OK: false, StatusCode: 500, ErrorMessage: "upstream exploded"}, nil)

	opts := testOptions()
	opts.MaxRetries = 3
	runner := f.runner(adapter)

	for attempt := 1; attempt <= 3; attempt++ {
		report, err := runner.Run(context.Background(), opts)
		require.NoError(t, err)
		require.Len(t, report.Results, 1)
		assert.Equal(t, OutcomePending, report.Results[0].Outcome, "attempt %d", attempt)
		assert.Equal(t, attempt, f.job(t, job.ID).Attempts)
		f.clock.Advance(time.Second)
	}

	report, err := runner.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.Equal(t, "upstream exploded", report.Results[0].Detail)

	got := f.job(t, job.ID)
	assert.Equal(t, JobStatusFailed, got.Status)
	assert.Equal(t, 4, got.Attempts)
	assert.Equal(t, "upstream exploded", got.LastError)
	assert.Equal(t, content.StatusScheduled, f.item(t, item.ID).Status)

	// Terminal: nothing left to run
	f.clock.Advance(time.Second)
	report, err = runner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ProcessedCount)
	adapter.AssertNumberOfCalls(t, "Post", 4)
}

func TestRun_NonRetryableFailsImmediately(t *testing.T) {
	f := newFixture(t)
	job, item := f.seedJob(t, "forbidden", -time.Minute)

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "forbidden").
		Return(outbound.Result{OK: false, StatusCode: 403}, nil).Once()

	report, err := f.runner(adapter).Run(context.Background(), testOptions())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)

	got := f.job(t, job.ID)
	assert.Equal(t, JobStatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "Post failed (403)", got.LastError)
	assert.Equal(t, content.StatusScheduled, f.item(t, item.ID).Status)
}

func TestRun_RetryDelay(t *testing.T) {
	f := newFixture(t)
	job, _ := f.seedJob(t, "later", -time.Minute)

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "later").Return(outbound.Result{StatusCode: 503}, nil)

	opts := testOptions()
	opts.RetryDelay = 5 * time.Minute
	runner := f.runner(adapter)

	_, err := runner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, f.job(t, job.ID).RunAt.Equal(baseTime.Add(5*time.Minute)))

	f.clock.Advance(time.Minute)
	report, err := runner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ProcessedCount, "not due before the delay")
}

func TestRun_AdapterTimeoutIsRetryable(t *testing.T) {
	f := newFixture(t)
	job, _ := f.seedJob(t, "slow", -time.Minute)

	slow := outbound.AdapterFunc(func(ctx context.Context, body string) (outbound.Result, error) {
		<-ctx.Done()
		return outbound.Result{}, ctx.Err()
	})

	opts := testOptions()
	opts.AdapterTimeout = 20 * time.Millisecond
	report, err := f.runner(slow).Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomePending, report.Results[0].Outcome)
	assert.Contains(t, report.Results[0].Detail, "timed out")
	assert.Equal(t, 1, f.job(t, job.ID).Attempts)
}

func TestRun_ThrottledDoesNotCountAttempt(t *testing.T) {
	f := newFixture(t)
	job, _ := f.seedJob(t, "throttled", -time.Minute)

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "throttled").
		Return(outbound.Result{}, errors.Mark(errors.New("hourly budget spent"), outbound.ErrThrottled)).Once()

	report, err := f.runner(adapter).Run(context.Background(), testOptions())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomePending, report.Results[0].Outcome)

	got := f.job(t, job.ID)
	assert.Equal(t, JobStatusPending, got.Status)
	assert.Equal(t, 0, got.Attempts)
}

func TestRun_PacingRefusalDoesNotCountAttempt(t *testing.T) {
	f := newFixture(t)
	first, _ := f.seedJob(t, "first", -2*time.Minute)
	second, secondItem := f.seedJob(t, "second", -time.Minute)

	calls := 0
	next := outbound.AdapterFunc(func(ctx context.Context, body string) (outbound.Result, error) {
		calls++
		return outbound.Result{OK: true, StatusCode: 201}, nil
	})
	paced := outbound.NewThrottle(next, time.Hour, nil)

	opts := testOptions()
	opts.MaxRetries = 0
	opts.AdapterTimeout = 20 * time.Millisecond
	report, err := f.runner(paced).Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, OutcomeSuccess, report.Results[0].Outcome)
	assert.Equal(t, OutcomePending, report.Results[1].Outcome)
	assert.Equal(t, 1, calls)

	assert.Equal(t, JobStatusSuccess, f.job(t, first.ID).Status)
	got := f.job(t, second.ID)
	assert.Equal(t, JobStatusPending, got.Status)
	assert.Equal(t, 0, got.Attempts)
	assert.Nil(t, got.LockedAt)
	assert.Equal(t, content.StatusScheduled, f.item(t, secondItem.ID).Status)
}

func TestRun_LateClaimNotStaleToOverlappingRun(t *testing.T) {
	f := newFixture(t)
	f.seedJob(t, "first", -2*time.Minute)
	second, _ := f.seedJob(t, "second", -time.Minute)

	opts := testOptions()
	opts.LockTTL = 30 * time.Second

	posts := map[string]int{}
	var overlap *Report
	var adapter outbound.AdapterFunc
	adapter = func(ctx context.Context, body string) (outbound.Result, error) {
		posts[body]++
		switch body {
		case "first":
			f.clock.Advance(20 * time.Second)
		case "second":
			if overlap == nil {
				// Another invocation fires while "second" is in flight.
				f.clock.Advance(15 * time.Second)
				var err error
				overlap, err = f.runner(adapter).Run(context.Background(), opts)
				require.NoError(t, err)
			}
		}
		return outbound.Result{OK: true, StatusCode: 201}, nil
	}

	report, err := f.runner(adapter).Run(context.Background(), opts)
	require.NoError(t, err)

	require.NotNil(t, overlap)
	assert.Equal(t, int64(0), overlap.Recovered)
	assert.Equal(t, 0, overlap.ProcessedCount)
	assert.Equal(t, map[string]int{"first": 1, "second": 1}, posts)

	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.Equal(t, OutcomeSuccess, res.Outcome, res.Detail)
	}
	assert.Equal(t, JobStatusSuccess, f.job(t, second.ID).Status)
}

func TestRun_SuccessIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, item := f.seedJob(t, "once", -time.Minute)

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "once").
		Return(outbound.Result{OK: true, StatusCode: 201, ExternalID: "ext-1"}, nil).Once()
	runner := f.runner(adapter)

	_, err := runner.Run(ctx, testOptions())
	require.NoError(t, err)
	first := f.item(t, item.ID)

	// A second job for already-delivered content must not post again.
	f.clock.Advance(time.Hour)
	again := &Job{ContentID: item.ID, AccountID: f.account.ID, RunAt: f.clock.Now()}
	require.NoError(t, f.store.CreateJob(ctx, again))

	report, err := runner.Run(ctx, testOptions())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeSuccess, report.Results[0].Outcome)
	assert.Equal(t, "already posted", report.Results[0].Detail)

	second := f.item(t, item.ID)
	assert.Equal(t, first.PostedAt, second.PostedAt)
	assert.Equal(t, "ext-1", second.ExternalID)
	assert.Equal(t, JobStatusSuccess, f.job(t, job.ID).Status)
	assert.Equal(t, JobStatusSuccess, f.job(t, again.ID).Status)
	adapter.AssertNumberOfCalls(t, "Post", 1)

	updated, err := f.store.MarkContentPosted(ctx, item.ID, f.clock.Now(), "ext-2")
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestRun_StaleLockRecovered(t *testing.T) {
	f := newFixture(t)
	job, _ := f.seedJob(t, "crashed", -time.Hour)

	// An earlier invoker claimed the job and died.
	require.True(t, mustClaim(t, f, job.ID, baseTime.Add(-20*time.Minute)))

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "crashed").Return(outbound.Result{OK: true, StatusCode: 201}, nil).Once()

	opts := testOptions()
	opts.LockTTL = 10 * time.Minute
	report, err := f.runner(adapter).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.Recovered)
	assert.Equal(t, 1, report.ProcessedCount)
	assert.Equal(t, JobStatusSuccess, f.job(t, job.ID).Status)
}

func TestRun_FreshLockNotReclaimed(t *testing.T) {
	f := newFixture(t)
	job, _ := f.seedJob(t, "in flight", -time.Hour)
	require.True(t, mustClaim(t, f, job.ID, baseTime.Add(-time.Minute)))

	adapter := &mockAdapter{}
	opts := testOptions()
	opts.LockTTL = 10 * time.Minute
	report, err := f.runner(adapter).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, int64(0), report.Recovered)
	assert.Equal(t, 0, report.ProcessedCount)
	assert.Empty(t, report.Results)
	assert.Equal(t, JobStatusRunning, f.job(t, job.ID).Status)
	adapter.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
}

func TestRun_MaxJobsPerRun(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.seedJob(t, "bulk", -time.Duration(i+1)*time.Minute)
	}

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "bulk").Return(outbound.Result{OK: true, StatusCode: 201}, nil)

	opts := testOptions()
	opts.MaxJobsPerRun = 2
	report, err := f.runner(adapter).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ProcessedCount)
}

func TestRun_OverlappingInvocationsPostOnce(t *testing.T) {
	f := newFixture(t)
	f.seedJob(t, "contended", -time.Minute)

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "contended").Return(outbound.Result{OK: true, StatusCode: 201}, nil)

	// Two runners over the same store, as two cron invocations would be.
	first, second := f.runner(adapter), f.runner(adapter)
	r1, err := first.Run(context.Background(), testOptions())
	require.NoError(t, err)
	r2, err := second.Run(context.Background(), testOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, r1.ProcessedCount+r2.ProcessedCount)
	adapter.AssertNumberOfCalls(t, "Post", 1)
}

func TestRun_ReportJSON(t *testing.T) {
	f := newFixture(t)
	f.seedJob(t, "json", -time.Minute)

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "json").Return(outbound.Result{OK: false, StatusCode: 403, ErrorMessage: "nope"}, nil)

	report, err := f.runner(adapter).Run(context.Background(), testOptions())
	require.NoError(t, err)

	raw, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.EqualValues(t, 1, decoded["processedCount"])
	results := decoded["results"].([]interface{})
	require.Len(t, results, 1)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "failed", first["outcome"])
	assert.Equal(t, "nope", first["detail"])
	assert.NotEmpty(t, first["jobId"])
}

// fakeGateway serves scripted errors for the paths sqlite cannot produce.
type fakeGateway struct {
	jobs        []Job
	items       map[string]*content.Item
	selectErr   error
	claimErr    error
	claimResult bool
	finalizeErr error
	finalizeOK  bool
	markErr     error
	recoverErr  error
	finalized   map[string]JobUpdate
}

func newFakeGateway(jobs ...Job) *fakeGateway {
	return &fakeGateway{
		jobs:        jobs,
		items:       map[string]*content.Item{},
		claimResult: true,
		finalizeOK:  true,
		finalized:   map[string]JobUpdate{},
	}
}

func (g *fakeGateway) SelectEligibleJobs(ctx context.Context, now, staleBefore time.Time, limit int) ([]Job, error) {
	return g.jobs, g.selectErr
}

func (g *fakeGateway) ClaimJob(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	return g.claimResult, g.claimErr
}

func (g *fakeGateway) GetJob(ctx context.Context, id string) (*Job, error) {
	for i := range g.jobs {
		if g.jobs[i].ID == id {
			job := g.jobs[i]
			return &job, nil
		}
	}
	return nil, errors.NewNotFoundError("posting job not found: %s", id)
}

func (g *fakeGateway) FinalizeJob(ctx context.Context, id string, claimedAt time.Time, update JobUpdate) (bool, error) {
	if g.finalizeErr != nil {
		return false, g.finalizeErr
	}
	g.finalized[id] = update
	return g.finalizeOK, nil
}

func (g *fakeGateway) GetContentItem(ctx context.Context, id string) (*content.Item, error) {
	item, ok := g.items[id]
	if !ok {
		return nil, errors.NewNotFoundError("content item not found: %s", id)
	}
	return item, nil
}

func (g *fakeGateway) MarkContentPosted(ctx context.Context, id string, postedAt time.Time, externalID string) (bool, error) {
	return g.markErr == nil, g.markErr
}

func (g *fakeGateway) RecoverStale(ctx context.Context, staleBefore time.Time) (int64, error) {
	return 0, g.recoverErr
}

func fakeJob(id, contentID string) Job {
	return Job{ID: id, ContentID: contentID, AccountID: "acct-1", RunAt: baseTime, Status: JobStatusPending}
}

func TestRun_FetchErrorAborts(t *testing.T) {
	gw := newFakeGateway()
	gw.selectErr = errors.New("database is locked")

	report, err := NewRunner(gw, &mockAdapter{}, nil).Run(context.Background(), testOptions())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestRun_RecoverErrorDoesNotAbort(t *testing.T) {
	gw := newFakeGateway()
	gw.recoverErr = errors.New("recovery failed")

	report, err := NewRunner(gw, &mockAdapter{}, nil).Run(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, report.ProcessedCount)
}

func TestRun_ClaimRaceSkippedSilently(t *testing.T) {
	gw := newFakeGateway(fakeJob("job-1", "c-1"))
	gw.claimResult = false

	adapter := &mockAdapter{}
	report, err := NewRunner(gw, adapter, nil).Run(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, report.ProcessedCount)
	assert.Empty(t, report.Results)
	adapter.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
}

func TestRun_ClaimErrorContained(t *testing.T) {
	gw := newFakeGateway(fakeJob("job-1", "c-1"))
	gw.claimErr = errors.New("disk I/O error")

	report, err := NewRunner(gw, &mockAdapter{}, nil).Run(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, report.ProcessedCount)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.Contains(t, report.Results[0].Detail, "disk I/O error")
}

func TestRun_MissingContentFailsJob(t *testing.T) {
	gw := newFakeGateway(fakeJob("job-1", "gone"))

	adapter := &mockAdapter{}
	report, err := NewRunner(gw, adapter, nil).Run(context.Background(), testOptions())
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.Equal(t, "content item not found: gone", report.Results[0].Detail)

	update := gw.finalized["job-1"]
	assert.Equal(t, JobStatusFailed, update.Status)
	assert.Equal(t, 0, update.Attempts)
	require.NotNil(t, update.LastError)
	assert.Equal(t, "content item not found: gone", *update.LastError)
	adapter.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
}

func TestRun_FinalizeErrorContained(t *testing.T) {
	gw := newFakeGateway(fakeJob("job-1", "c-1"), fakeJob("job-2", "c-2"))
	gw.items["c-1"] = &content.Item{ID: "c-1", Body: "one", Status: content.StatusScheduled}
	gw.items["c-2"] = &content.Item{ID: "c-2", Body: "two", Status: content.StatusScheduled}
	gw.finalizeErr = errors.New("write failed")

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, mock.Anything).Return(outbound.Result{OK: true, StatusCode: 201}, nil)

	report, err := NewRunner(gw, adapter, nil).Run(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, report.ProcessedCount)
	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Contains(t, res.Detail, "write failed")
	}
}

func TestRun_ClaimLostReported(t *testing.T) {
	gw := newFakeGateway(fakeJob("job-1", "c-1"))
	gw.items["c-1"] = &content.Item{ID: "c-1", Body: "one", Status: content.StatusScheduled}
	gw.finalizeOK = false

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "one").Return(outbound.Result{StatusCode: 500}, nil)

	report, err := NewRunner(gw, adapter, nil).Run(context.Background(), testOptions())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.Contains(t, report.Results[0].Detail, ErrClaimLost.Error())
}

func TestRun_ContentWriteErrorStillFinalizesJob(t *testing.T) {
	gw := newFakeGateway(fakeJob("job-1", "c-1"))
	gw.items["c-1"] = &content.Item{ID: "c-1", Body: "one", Status: content.StatusScheduled}
	gw.markErr = errors.New("content table locked")

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "one").Return(outbound.Result{OK: true, StatusCode: 201, ExternalID: "ext-9"}, nil)

	report, err := NewRunner(gw, adapter, nil).Run(context.Background(), testOptions())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.Contains(t, report.Results[0].Detail, "content table locked")
	assert.Equal(t, JobStatusSuccess, gw.finalized["job-1"].Status)
}

func TestRun_NotifiesOutcomes(t *testing.T) {
	gw := newFakeGateway(fakeJob("job-1", "c-1"))
	gw.items["c-1"] = &content.Item{ID: "c-1", Body: "one", Status: content.StatusScheduled}

	adapter := &mockAdapter{}
	adapter.On("Post", mock.Anything, "one").Return(outbound.Result{StatusCode: 429}, nil)

	var events []Event
	runner := NewRunner(gw, adapter, nil)
	runner.SetClock(func() time.Time { return baseTime })
	runner.SetNotifier(NotifierFunc(func(ctx context.Context, ev Event) error {
		events = append(events, ev)
		return errors.New("broker down")
	}))

	report, err := runner.Run(context.Background(), testOptions())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	require.Len(t, events, 1)
	assert.Equal(t, "job-1", events[0].JobID)
	assert.Equal(t, "c-1", events[0].ContentID)
	assert.Equal(t, "acct-1", events[0].AccountID)
	assert.Equal(t, OutcomePending, events[0].Outcome)
	assert.Equal(t, 1, events[0].Attempts)
	assert.True(t, events[0].At.Equal(baseTime))
}

func TestRunner_RecoverStale(t *testing.T) {
	f := newFixture(t)
	job, _ := f.seedJob(t, "crashed", -time.Hour)
	require.True(t, mustClaim(t, f, job.ID, baseTime.Add(-30*time.Minute)))

	n, err := f.runner(&mockAdapter{}).RecoverStale(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, JobStatusPending, f.job(t, job.ID).Status)
}

func TestJob_JSONNames(t *testing.T) {
	raw, err := json.Marshal(fakeJob("job-1", "c-1"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "c-1", decoded["content_id"])
	assert.NotContains(t, decoded, "tweet_id")
}
