package posting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/teranos/postpulse/content"
	"github.com/teranos/postpulse/db"
	qntxtest "github.com/teranos/postpulse/internal/testing"
	"github.com/teranos/postpulse/outbound"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// testClock is a settable clock. Each Advance moves it forward.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// mockAdapter records post bodies and returns queued results.
type mockAdapter struct {
	mock.Mock
}

func (m *mockAdapter) Post(ctx context.Context, body string) (outbound.Result, error) {
	args := m.Called(ctx, body)
	return args.Get(0).(outbound.Result), args.Error(1)
}

type fixture struct {
	store   *Store
	content *content.Store
	account *content.Account
	clock   *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := qntxtest.CreateTestDB(t)
	cs := content.NewStore(conn, db.SQLite)

	account := &content.Account{Handle: "pulse-poster"}
	require.NoError(t, cs.CreateAccount(context.Background(), account))

	clock := newTestClock(baseTime)
	store := NewStore(conn, db.SQLite)
	store.now = clock.Now

	return &fixture{store: store, content: cs, account: account, clock: clock}
}

func (f *fixture) seedItem(t *testing.T, body string) *content.Item {
	t.Helper()
	at := f.clock.Now().Add(-time.Minute)
	item := &content.Item{AccountID: f.account.ID, Body: body, ScheduledAt: &at}
	require.NoError(t, f.content.CreateItem(context.Background(), item))
	return item
}

// seedJob creates a content item and a pending job due runAtOffset from
// the fixture clock.
func (f *fixture) seedJob(t *testing.T, body string, runAtOffset time.Duration) (*Job, *content.Item) {
	t.Helper()
	item := f.seedItem(t, body)
	job := &Job{ContentID: item.ID, AccountID: f.account.ID, RunAt: f.clock.Now().Add(runAtOffset)}
	require.NoError(t, f.store.CreateJob(context.Background(), job))
	return job, item
}

func (f *fixture) runner(adapter outbound.Adapter) *Runner {
	r := NewRunner(f.store, adapter, nil)
	r.SetClock(f.clock.Now)
	return r
}

func (f *fixture) job(t *testing.T, id string) *Job {
	t.Helper()
	job, err := f.store.GetJob(context.Background(), id)
	require.NoError(t, err)
	return job
}

func (f *fixture) item(t *testing.T, id string) *content.Item {
	t.Helper()
	item, err := f.content.GetItem(context.Background(), id)
	require.NoError(t, err)
	return item
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.AdapterTimeout = time.Second
	return opts
}
