package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/antonvlasov/chatgate-backend/pkg/config"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
)

type cycleRunner interface {
	AuditAll(ctx context.Context) (CycleReport, error)
}

// SchedulerParams configure the periodic audit loop.
type SchedulerParams struct {
	Auditor cycleRunner
	Lock    Lock
	Logger  *logger.Logger
	Config  config.AuditConfig
}

// Scheduler runs audit cycles on a fixed cadence. Only a cycle that could not
// run at all shortens the next delay to the error backoff; a completed cycle
// keeps the interval regardless of per-channel skips or failures. Stop is
// cooperative: it cancels the loop and waits for any in-flight cycle to
// finish.
type Scheduler struct {
	auditor cycleRunner
	lock    Lock
	logg    *logger.Logger

	interval time.Duration
	backoff  time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewScheduler validates the collaborators and builds the scheduler.
func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Auditor == nil {
		return nil, errors.New("auditor is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	lock := params.Lock
	if lock == nil {
		lock = NewNoopLock()
	}
	interval := params.Config.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	backoff := params.Config.ErrorBackoff
	if backoff <= 0 {
		backoff = 5 * time.Minute
	}
	return &Scheduler{
		auditor:  params.Auditor,
		lock:     lock,
		logg:     params.Logger,
		interval: interval,
		backoff:  backoff,
	}, nil
}

// Start launches the loop. Starting an already-running scheduler is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("audit scheduler already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(loopCtx)
	s.logg.Info(ctx, "audit scheduler started")
	return nil
}

// Stop cancels the loop and blocks until the in-flight cycle (if any) ends.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	delay := s.runCycle(ctx)
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logg.Info(context.Background(), "audit scheduler stopped")
			return
		case <-timer.C:
		}
		delay = s.runCycle(ctx)
	}
}

// runCycle executes one locked cycle and returns the delay until the next.
func (s *Scheduler) runCycle(ctx context.Context) time.Duration {
	if ctx.Err() != nil {
		return s.interval
	}

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		s.logg.Error(ctx, "audit lock acquire failed", err)
		return s.backoff
	}
	if !locked {
		s.logg.Info(ctx, "another instance is auditing; skipping this cycle")
		return s.interval
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release audit lock", relErr)
		}
	}()

	start := time.Now()
	cycle, err := s.auditor.AuditAll(ctx)
	cycleCtx := s.logg.WithField(ctx, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		s.logg.Error(cycleCtx, "audit cycle failed", err)
		return s.backoff
	}
	if cycle.Failed > 0 {
		s.logg.Warn(s.logg.WithField(cycleCtx, "failed", cycle.Failed), "audit cycle completed with failing channels")
	}
	return s.interval
}
