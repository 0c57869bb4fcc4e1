package posting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/postpulse/db"
	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/internal/util"
)

func TestCreateJob_Validation(t *testing.T) {
	f := newFixture(t)
	err := f.store.CreateJob(context.Background(), &Job{AccountID: f.account.ID, RunAt: baseTime})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestCreateJob_Defaults(t *testing.T) {
	f := newFixture(t)
	job, item := f.seedJob(t, "hello", -time.Minute)

	got := f.job(t, job.ID)
	assert.Equal(t, item.ID, got.ContentID)
	assert.Equal(t, JobStatusPending, got.Status)
	assert.Equal(t, 0, got.Attempts)
	assert.Nil(t, got.LockedAt)
	assert.Empty(t, got.LastError)
	assert.True(t, got.RunAt.Equal(baseTime.Add(-time.Minute)))
}

func TestCreateJob_OneActiveJobPerContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, item := f.seedJob(t, "hello", -time.Minute)

	err := f.store.CreateJob(ctx, &Job{ContentID: item.ID, AccountID: f.account.ID, RunAt: baseTime})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	// A finished job frees the slot
	now := f.clock.Now()
	claimed, err := f.store.ClaimJob(ctx, job.ID, now, now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)
	ok, err := f.store.FinalizeJob(ctx, job.ID, now, JobUpdate{Status: JobStatusFailed, Attempts: 1, RunAt: job.RunAt, UpdatedAt: now})
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.store.CreateJob(ctx, &Job{ContentID: item.ID, AccountID: f.account.ID, RunAt: baseTime}))
}

func TestGetJob_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.GetJob(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
	assert.Contains(t, err.Error(), "posting job not found: missing")
}

func TestSelectEligibleJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	late, _ := f.seedJob(t, "late", -time.Minute)
	early, _ := f.seedJob(t, "early", -time.Hour)
	f.seedJob(t, "future", time.Hour)

	t.Run("ordered by run_at and excludes future jobs", func(t *testing.T) {
		jobs, err := f.store.SelectEligibleJobs(ctx, now, now.Add(-10*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, early.ID, jobs[0].ID)
		assert.Equal(t, late.ID, jobs[1].ID)
	})

	t.Run("limit", func(t *testing.T) {
		jobs, err := f.store.SelectEligibleJobs(ctx, now, now.Add(-10*time.Minute), 1)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, early.ID, jobs[0].ID)
	})

	t.Run("running jobs are not eligible", func(t *testing.T) {
		claimed, err := f.store.ClaimJob(ctx, early.ID, now, now.Add(-10*time.Minute))
		require.NoError(t, err)
		require.True(t, claimed)

		jobs, err := f.store.SelectEligibleJobs(ctx, now, now.Add(-10*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, late.ID, jobs[0].ID)
	})
}

func TestClaimJob_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, _ := f.seedJob(t, "hello", -time.Minute)
	now := f.clock.Now()

	first, err := f.store.ClaimJob(ctx, job.ID, now, now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.True(t, first)

	second, err := f.store.ClaimJob(ctx, job.ID, now.Add(time.Second), now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.False(t, second)

	got := f.job(t, job.ID)
	assert.Equal(t, JobStatusRunning, got.Status)
	require.NotNil(t, got.LockedAt)
	assert.True(t, got.LockedAt.Equal(now))
}

func TestClaimJob_ConcurrentClaimers(t *testing.T) {
	f := newFixture(t)
	job, _ := f.seedJob(t, "contended", -time.Minute)
	now := f.clock.Now()

	const claimers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := f.store.ClaimJob(context.Background(), job.ID, now.Add(time.Duration(i)*time.Millisecond), now.Add(-10*time.Minute))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, won)
}

func TestFinalizeJob_Guard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, _ := f.seedJob(t, "hello", -time.Minute)
	claimedAt := f.clock.Now()

	claimed, err := f.store.ClaimJob(ctx, job.ID, claimedAt, claimedAt.Add(-10*time.Minute))
	require.NoError(t, err)
	require.True(t, claimed)

	update := JobUpdate{Status: JobStatusSuccess, RunAt: job.RunAt, UpdatedAt: claimedAt}

	ok, err := f.store.FinalizeJob(ctx, job.ID, claimedAt.Add(time.Second), update)
	require.NoError(t, err)
	assert.False(t, ok, "a different claim time must not finalize")

	ok, err = f.store.FinalizeJob(ctx, job.ID, claimedAt, update)
	require.NoError(t, err)
	assert.True(t, ok)

	got := f.job(t, job.ID)
	assert.Equal(t, JobStatusSuccess, got.Status)
	assert.Nil(t, got.LockedAt)

	ok, err = f.store.FinalizeJob(ctx, job.ID, claimedAt, JobUpdate{Status: JobStatusFailed, RunAt: job.RunAt, UpdatedAt: claimedAt})
	require.NoError(t, err)
	assert.False(t, ok, "success is terminal")
}

func TestFinalizeJob_NilLastErrorKeepsValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, _ := f.seedJob(t, "hello", -time.Minute)

	now := f.clock.Now()
	require.True(t, mustClaim(t, f, job.ID, now))
	ok, err := f.store.FinalizeJob(ctx, job.ID, now, JobUpdate{
		Status: JobStatusPending, Attempts: 1, RunAt: now, LastError: util.Ptr("Post failed (503)"), UpdatedAt: now,
	})
	require.NoError(t, err)
	require.True(t, ok)

	later := now.Add(time.Minute)
	require.True(t, mustClaim(t, f, job.ID, later))
	ok, err = f.store.FinalizeJob(ctx, job.ID, later, JobUpdate{
		Status: JobStatusSuccess, Attempts: 1, RunAt: now, UpdatedAt: later,
	})
	require.NoError(t, err)
	require.True(t, ok)

	got := f.job(t, job.ID)
	assert.Equal(t, "Post failed (503)", got.LastError)
	assert.Equal(t, 1, got.Attempts)
}

func TestRecoverStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	stale, _ := f.seedJob(t, "stale", -time.Hour)
	fresh, _ := f.seedJob(t, "fresh", -time.Hour)
	require.True(t, mustClaim(t, f, stale.ID, now.Add(-20*time.Minute)))
	require.True(t, mustClaim(t, f, fresh.ID, now.Add(-time.Minute)))

	n, err := f.store.RecoverStale(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got := f.job(t, stale.ID)
	assert.Equal(t, JobStatusPending, got.Status)
	assert.Nil(t, got.LockedAt)
	assert.Equal(t, 0, got.Attempts)

	assert.Equal(t, JobStatusRunning, f.job(t, fresh.ID).Status)
}

func TestListJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.seedJob(t, "a", -time.Minute)
	f.seedJob(t, "b", -time.Minute)
	require.True(t, mustClaim(t, f, a.ID, f.clock.Now()))

	all, err := f.store.ListJobs(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	running := JobStatusRunning
	filtered, err := f.store.ListJobs(ctx, &running, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, a.ID, filtered[0].ID)
}

func TestSelectEligibleJobs_QueryError(t *testing.T) {
	conn, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	sqlMock.ExpectQuery("SELECT .* FROM posting_jobs").WillReturnError(errors.New("connection reset"))

	store := NewStore(conn, db.Postgres)
	_, err = store.SelectEligibleJobs(context.Background(), baseTime, baseTime.Add(-time.Minute), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select eligible jobs")
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestClaimJob_PostgresPlaceholders(t *testing.T) {
	conn, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	sqlMock.ExpectExec(`UPDATE posting_jobs\s+SET status = 'running', locked_at = \$1, updated_at = \$2\s+WHERE id = \$3`).
		WithArgs(baseTime, baseTime, "job-1", baseTime.Add(-time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewStore(conn, db.Postgres)
	ok, err := store.ClaimJob(context.Background(), "job-1", baseTime, baseTime.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func mustClaim(t *testing.T, f *fixture, id string, at time.Time) bool {
	t.Helper()
	ok, err := f.store.ClaimJob(context.Background(), id, at, at.Add(-10*time.Minute))
	require.NoError(t, err)
	return ok
}
