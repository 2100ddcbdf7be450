package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SlotJobs is the slice of the reservation service the scheduler drives.
type SlotJobs interface {
	CleanupExpiredSlots(ctx context.Context) (int, error)
	GenerateSlots(ctx context.Context, daysAhead int) (int, error)
}

type Config struct {
	DaysAhead  int
	RunTimeout time.Duration
}

// Scheduler runs the sweep-then-generate cycle once at startup and then at
// every local midnight. It is constructed once by the composition root and
// holds no persisted state: a missed cycle is compensated by the next
// startup run, which always catches the store up to the current window.
type Scheduler struct {
	jobs SlotJobs
	log  *slog.Logger
	cfg  Config
	now  func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(jobs SlotJobs, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.DaysAhead <= 0 {
		cfg.DaysAhead = 7
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	return &Scheduler{
		jobs: jobs,
		log:  logger,
		cfg:  cfg,
		now:  time.Now,
	}
}

// Start launches the loop in the background. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Stop cancels any pending timer and waits for the loop goroutine to exit,
// so tests can run a scheduler without leaking timers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Startup catch-up run.
	s.runCycle(ctx)

	timer := time.NewTimer(untilNextMidnight(s.now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.runCycle(ctx)
			// Recompute from the clock rather than resetting by 24h, so the
			// cycle's own duration never drifts the fire time past midnight.
			timer.Reset(untilNextMidnight(s.now()))
		}
	}
}

// runCycle sweeps first so the generator's 7-day window reflects the truly
// current day. A sweep failure never blocks the generate that follows; the
// sweep simply retries on the next cycle.
func (s *Scheduler) runCycle(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	start := time.Now()

	deleted, err := s.jobs.CleanupExpiredSlots(runCtx)
	if err != nil {
		s.log.Error("slot sweep failed", "err", err)
	} else {
		s.log.Info("slot sweep complete", "deleted", deleted)
	}

	generated, err := s.jobs.GenerateSlots(runCtx, s.cfg.DaysAhead)
	if err != nil {
		s.log.Error("slot generation failed", "err", err)
		return
	}
	s.log.Info("slot generation complete", "generated", generated, "took", time.Since(start))
}

// untilNextMidnight returns the delay from now to the next midnight in now's
// location.
func untilNextMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return next.Sub(now)
}
