package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karas-agent/internal/api"
	"karas-agent/internal/models"
	"karas-agent/internal/storage"
)

type fakeFetcher struct {
	mu  sync.Mutex
	rs  []models.Reminder
	err error
}

func (f *fakeFetcher) Reminders(ctx context.Context) ([]models.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Reminder, len(f.rs))
	copy(out, f.rs)
	return out, nil
}

func (f *fakeFetcher) set(rs []models.Reminder, err error) {
	f.mu.Lock()
	f.rs, f.err = rs, err
	f.mu.Unlock()
}

type recorder struct {
	mu       sync.Mutex
	fail     bool
	rendered []string
}

func (r *recorder) Render(title, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, title)
	if r.fail {
		return errors.New("permission denied")
	}
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rendered)
}

func newTestCoordinator(t *testing.T, userID int64, opts ...Option) (*Coordinator, *fakeFetcher, *recorder, *storage.DB) {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fetch := &fakeFetcher{}
	rec := &recorder{}
	return NewCoordinator(userID, db, fetch, rec, opts...), fetch, rec, db
}

func TestCheckAndFireExactlyOnce(t *testing.T) {
	c, _, rec, _ := newTestCoordinator(t, 1)
	c.SetSnapshot([]models.Reminder{{ID: 1, Title: "pill", RemindAt: at(-5 * time.Second)}})

	fired := c.CheckAndFire(testNow)
	require.Len(t, fired, 1)
	assert.Equal(t, int64(1), fired[0].ID)
	assert.Equal(t, 1, rec.count())

	// Immediate re-check with an unchanged snapshot fires nothing.
	fired = c.CheckAndFire(testNow)
	assert.Empty(t, fired)
	assert.Equal(t, 1, rec.count())
}

func TestCheckAndFireMalformedInstant(t *testing.T) {
	c, _, rec, _ := newTestCoordinator(t, 1)
	c.SetSnapshot([]models.Reminder{{ID: 2, Title: "x", RemindAt: "not-a-date"}})

	assert.Empty(t, c.CheckAndFire(testNow))
	assert.Zero(t, rec.count())
}

func TestCheckAndFireBatchSurvivesEffectFailure(t *testing.T) {
	c, _, rec, db := newTestCoordinator(t, 1)
	rec.fail = true
	c.SetSnapshot([]models.Reminder{
		{ID: 1, Title: "a", RemindAt: at(-2 * time.Second)},
		{ID: 2, Title: "b", RemindAt: at(-1 * time.Second)},
	})

	fired := c.CheckAndFire(testNow)
	assert.Len(t, fired, 2, "one failing effect must not block its sibling")
	assert.Equal(t, 2, rec.count())

	// The ledger commit stands even though both effects failed: a broken
	// notifier must not turn into a duplicate storm later.
	ids, err := db.FiredIDs(1)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true, 2: true}, ids)
	assert.Empty(t, c.CheckAndFire(testNow))
}

func TestReplayBeforeDue(t *testing.T) {
	c, _, rec, _ := newTestCoordinator(t, 1)
	c.SetSnapshot([]models.Reminder{{ID: 3, Title: "later", RemindAt: at(time.Hour)}})

	played, err := c.Replay(3)
	require.NoError(t, err)
	assert.True(t, played)
	assert.Equal(t, 1, rec.count())

	// When id 3 actually comes due it has already been fired.
	assert.Empty(t, c.CheckAndFire(testNow.Add(2*time.Hour)))
	assert.Equal(t, 1, rec.count())
}

func TestReplayAlreadyFired(t *testing.T) {
	c, _, rec, _ := newTestCoordinator(t, 1)
	c.SetSnapshot([]models.Reminder{{ID: 4, Title: "once", RemindAt: at(-time.Minute)}})

	require.Len(t, c.CheckAndFire(testNow), 1)

	played, err := c.Replay(4)
	require.NoError(t, err)
	assert.False(t, played)
	assert.Equal(t, 1, rec.count())
}

func TestReplayUnknownReminder(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, 1)
	_, err := c.Replay(99)
	assert.Error(t, err)
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	c, fetch, _, _ := newTestCoordinator(t, 1)

	fetch.set([]models.Reminder{{ID: 1, Title: "keep", RemindAt: at(time.Hour)}}, nil)
	require.NoError(t, c.RefreshSnapshot(context.Background()))
	require.Len(t, c.Snapshot(), 1)

	fetch.set(nil, &api.NetworkError{Err: errors.New("dial tcp: timeout")})
	err := c.RefreshSnapshot(context.Background())
	assert.Error(t, err)
	assert.Len(t, c.Snapshot(), 1, "a failed fetch must not clobber the snapshot")
	assert.Error(t, c.LastError())

	fetch.set([]models.Reminder{}, nil)
	require.NoError(t, c.RefreshSnapshot(context.Background()))
	assert.Empty(t, c.Snapshot(), "a successful empty fetch is authoritative")
	assert.NoError(t, c.LastError())
}

func TestRefreshSessionExpired(t *testing.T) {
	expired := false
	db, err := storage.New(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fetch := &fakeFetcher{err: api.ErrSessionExpired}
	c := NewCoordinator(1, db, fetch, &recorder{},
		WithSessionExpiredHook(func() { expired = true }))

	assert.Error(t, c.RefreshSnapshot(context.Background()))
	assert.True(t, expired, "auth expiry is session-fatal, not transient")
}

func TestHandlePushSharesLedgerWithCheck(t *testing.T) {
	c, _, rec, _ := newTestCoordinator(t, 1)
	c.SetSnapshot([]models.Reminder{{ID: 5, Title: "due", RemindAt: at(-time.Second)}})

	c.HandlePush(models.PushPayload{ID: 5, Title: "due", Body: "from push"})
	assert.Equal(t, 1, rec.count())

	assert.Empty(t, c.CheckAndFire(testNow), "push delivery and timer check dedup against the same ledger")
	assert.Equal(t, 1, rec.count())
}

func TestHandlePushUnknownToSnapshot(t *testing.T) {
	c, _, rec, _ := newTestCoordinator(t, 1)

	// The payload carries its own text, so delivery works before the
	// snapshot catches up.
	c.HandlePush(models.PushPayload{ID: 6, Title: "fresh", Body: "b"})
	assert.Equal(t, 1, rec.count())

	c.HandlePush(models.PushPayload{ID: 6, Title: "fresh", Body: "b"})
	assert.Equal(t, 1, rec.count())
}

func TestResetAllowsRefire(t *testing.T) {
	c, _, rec, _ := newTestCoordinator(t, 1)
	c.SetSnapshot([]models.Reminder{{ID: 1, Title: "again", RemindAt: at(-time.Second)}})

	require.Len(t, c.CheckAndFire(testNow), 1)
	require.NoError(t, c.Reset())
	require.Len(t, c.CheckAndFire(testNow), 1)
	assert.Equal(t, 2, rec.count())
}

func TestConcurrentTriggersFireOnce(t *testing.T) {
	c, _, rec, _ := newTestCoordinator(t, 1)
	c.SetSnapshot([]models.Reminder{{ID: 10, Title: "race", RemindAt: at(-time.Second)}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.CheckAndFire(testNow)
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Replay(10)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rec.count(), "interleaved triggers dispatch the effect at most once")
}

func TestLedgerIsolationAcrossUsers(t *testing.T) {
	db, err := storage.New(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	snapshot := []models.Reminder{{ID: 1, Title: "shared id", RemindAt: at(-time.Second)}}

	recA := &recorder{}
	a := NewCoordinator(1, db, &fakeFetcher{}, recA)
	a.SetSnapshot(snapshot)
	require.Len(t, a.CheckAndFire(testNow), 1)

	// A second user logging in on the same machine gets their own ledger:
	// the first user's fired state neither suppresses nor replays theirs.
	recB := &recorder{}
	b := NewCoordinator(2, db, &fakeFetcher{}, recB)
	b.SetSnapshot(snapshot)
	assert.Len(t, b.CheckAndFire(testNow), 1)
	assert.Equal(t, 1, recA.count())
	assert.Equal(t, 1, recB.count())
}

func TestCurrentDueDoesNotFire(t *testing.T) {
	c, _, rec, _ := newTestCoordinator(t, 1)
	c.SetSnapshot([]models.Reminder{{ID: 1, Title: "peek", RemindAt: at(-time.Second)}})

	due := c.CurrentDue(testNow)
	require.Len(t, due, 1)
	assert.Zero(t, rec.count())

	// Still fires afterwards: peeking commits nothing.
	assert.Len(t, c.CheckAndFire(testNow), 1)
}

func TestLastFiredBanner(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, 1, WithBannerTTL(40*time.Millisecond))
	c.SetSnapshot([]models.Reminder{{ID: 1, Title: "banner", RemindAt: at(-time.Second)}})

	require.Len(t, c.CheckAndFire(testNow), 1)
	lf := c.LastFired()
	require.NotNil(t, lf)
	assert.Equal(t, "banner", lf.Title)

	time.Sleep(60 * time.Millisecond)
	assert.Nil(t, c.LastFired(), "banner auto-dismisses after its interval")
}
