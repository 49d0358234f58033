package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"karas-agent/internal/api"
	"karas-agent/internal/models"
)

// Ledger is the durable fired-identifier store.
type Ledger interface {
	ClaimFired(userID, reminderID int64) (bool, error)
	FiredIDs(userID int64) (map[int64]bool, error)
	ClearFired(userID int64) error
}

// Fetcher supplies the authoritative reminder list.
type Fetcher interface {
	Reminders(ctx context.Context) ([]models.Reminder, error)
}

// Renderer is the leaf output effect: show and speak one reminder.
type Renderer interface {
	Render(title, body string) error
}

// Coordinator reconciles the reminder snapshot against the fired ledger and
// emits each due reminder's notification exactly once. Any number of
// triggers (due-check tick, server poll, push delivery, manual actions) may
// call into it concurrently: the ledger claim is a single atomic insert, so
// the second caller to observe the same due reminder loses the claim and
// skips the effect. The claim always lands before the effect runs.
type Coordinator struct {
	mu     sync.Mutex
	userID int64
	ledger Ledger
	fetch  Fetcher
	render Renderer

	snapshot    []models.Reminder
	lastErr     error
	lastFired   *models.Reminder
	lastFiredAt time.Time
	bannerTTL   time.Duration

	// onSessionExpired fires when a refresh dies with an auth error;
	// the owner tears down timers and credentials.
	onSessionExpired func()
}

type Option func(*Coordinator)

func WithBannerTTL(d time.Duration) Option {
	return func(c *Coordinator) { c.bannerTTL = d }
}

func WithSessionExpiredHook(fn func()) Option {
	return func(c *Coordinator) { c.onSessionExpired = fn }
}

func NewCoordinator(userID int64, ledger Ledger, fetch Fetcher, render Renderer, opts ...Option) *Coordinator {
	c := &Coordinator{
		userID:    userID,
		ledger:    ledger,
		fetch:     fetch,
		render:    render,
		bannerTTL: 30 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetSnapshot replaces the working set and keeps it sorted by scheduled
// instant, as after every local mutation.
func (c *Coordinator) SetSnapshot(rs []models.Reminder) {
	cp := make([]models.Reminder, len(rs))
	copy(cp, rs)
	SortByDueTime(cp)

	c.mu.Lock()
	c.snapshot = cp
	c.mu.Unlock()
}

// Snapshot returns a copy of the current working set.
func (c *Coordinator) Snapshot() []models.Reminder {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]models.Reminder, len(c.snapshot))
	copy(cp, c.snapshot)
	return cp
}

// RefreshSnapshot fetches the authoritative list. A failed fetch leaves the
// previous snapshot untouched: an empty list from a transient error must
// never clobber reminders still waiting to fire. An auth failure is the one
// fatal case, triggering the session-expired hook instead of a retry.
func (c *Coordinator) RefreshSnapshot(ctx context.Context) error {
	rs, err := c.fetch.Reminders(ctx)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		if errors.Is(err, api.ErrSessionExpired) && c.onSessionExpired != nil {
			c.onSessionExpired()
		}
		return err
	}

	cp := make([]models.Reminder, len(rs))
	copy(cp, rs)
	SortByDueTime(cp)

	c.mu.Lock()
	c.snapshot = cp
	c.lastErr = nil
	c.mu.Unlock()
	return nil
}

// LastError reports the most recent refresh failure, nil after a success.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// CheckAndFire fires every due-and-unfired reminder once. Reminders missed
// while the agent was down fire immediately on the next call, unthrottled.
// Returns the reminders whose claim this call won.
func (c *Coordinator) CheckAndFire(now time.Time) []models.Reminder {
	c.mu.Lock()
	defer c.mu.Unlock()

	firedSet, err := c.ledger.FiredIDs(c.userID)
	if err != nil {
		log.Println("check-and-fire: ledger read:", err)
		return nil
	}

	var fired []models.Reminder
	for _, r := range Due(c.snapshot, firedSet, now) {
		claimed, err := c.ledger.ClaimFired(c.userID, r.ID)
		if err != nil {
			// Without a committed claim the effect must not run:
			// firing twice is worse than firing on the next tick.
			log.Printf("check-and-fire: claim %d: %v", r.ID, err)
			continue
		}
		if !claimed {
			continue
		}
		c.dispatch(r)
		fired = append(fired, r)
	}
	return fired
}

// Replay forces one reminder's notification regardless of its due time,
// through the same single-claim path: a reminder already fired stays fired.
func (c *Coordinator) Replay(id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var found *models.Reminder
	for i := range c.snapshot {
		if c.snapshot[i].ID == id {
			found = &c.snapshot[i]
			break
		}
	}
	if found == nil {
		return false, fmt.Errorf("reminder %d not in current list", id)
	}

	claimed, err := c.ledger.ClaimFired(c.userID, id)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}
	c.dispatch(*found)
	return true, nil
}

// HandlePush routes a background-delivered reminder into the same dedup
// path. The payload carries its own title/body so delivery works even for
// reminders the snapshot has not caught up with yet.
func (c *Coordinator) HandlePush(p models.PushPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	claimed, err := c.ledger.ClaimFired(c.userID, p.ID)
	if err != nil {
		log.Printf("push: claim %d: %v", p.ID, err)
		return
	}
	if !claimed {
		return
	}
	c.dispatch(models.Reminder{ID: p.ID, Title: p.Title, Body: p.Body})
}

// Reset clears this user's fired history.
func (c *Coordinator) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFired = nil
	return c.ledger.ClearFired(c.userID)
}

// CurrentDue reports the due-and-unfired subset without firing anything.
func (c *Coordinator) CurrentDue(now time.Time) []models.Reminder {
	c.mu.Lock()
	defer c.mu.Unlock()
	firedSet, err := c.ledger.FiredIDs(c.userID)
	if err != nil {
		log.Println("current-due: ledger read:", err)
		return nil
	}
	return Due(c.snapshot, firedSet, now)
}

// LastFired returns the most recently fired reminder for banner display,
// nil once the banner interval has passed.
func (c *Coordinator) LastFired() *models.Reminder {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFired == nil || time.Since(c.lastFiredAt) > c.bannerTTL {
		return nil
	}
	r := *c.lastFired
	return &r
}

// dispatch runs the output effect after the ledger claim has committed.
// Effect failure is logged and swallowed: it must not undo the claim nor
// block sibling reminders. Callers hold c.mu.
func (c *Coordinator) dispatch(r models.Reminder) {
	if err := c.render.Render(r.Title, r.Body); err != nil {
		log.Printf("notify %d (%s): %v", r.ID, r.Title, err)
	}
	lf := r
	c.lastFired = &lf
	c.lastFiredAt = time.Now()
}
