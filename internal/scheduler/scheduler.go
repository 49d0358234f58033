package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"karas-agent/internal/engine"
)

// Scheduler arms the two periodic triggers that drive the coordinator: a
// short due-check tick (the correctness backstop) and a longer server poll.
// Both are mere callers of the coordinator; neither carries dedup logic.
type Scheduler struct {
	mu    sync.Mutex
	coord *engine.Coordinator
	check time.Duration
	poll  time.Duration
	inner gocron.Scheduler
}

func New(coord *engine.Coordinator, checkEvery, pollEvery time.Duration) *Scheduler {
	return &Scheduler{coord: coord, check: checkEvery, poll: pollEvery}
}

// Start arms the jobs. Re-arming is idempotent: an already-armed scheduler
// is shut down first so there is never more than one check loop per purpose.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inner != nil {
		_ = s.inner.Shutdown()
		s.inner = nil
	}

	inner, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = inner.NewJob(
		gocron.DurationJob(s.check),
		gocron.NewTask(func() {
			s.coord.CheckAndFire(time.Now())
		}),
	)
	if err != nil {
		return err
	}

	_, err = inner.NewJob(
		gocron.DurationJob(s.poll),
		gocron.NewTask(func() {
			if err := s.coord.RefreshSnapshot(ctx); err != nil {
				log.Println("poll:", err)
				return
			}
			s.coord.CheckAndFire(time.Now())
		}),
	)
	if err != nil {
		return err
	}

	inner.Start()
	s.inner = inner
	return nil
}

// Stop tears the timers down; the session is over.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inner != nil {
		_ = s.inner.Shutdown()
		s.inner = nil
	}
}
