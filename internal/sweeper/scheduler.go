package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vitaly-zn/coupons-project-back-end/internal/metrics"
	"github.com/vitaly-zn/coupons-project-back-end/internal/model"

	"github.com/rs/zerolog"
)

const defaultInterval = 24 * time.Hour

// State is the scheduler's lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
	StateRemoving State = "removing"
	StateSleeping State = "sleeping"
	StateStopped  State = "stopped"
)

var knownStates = []string{
	string(StateIdle),
	string(StateScanning),
	string(StateRemoving),
	string(StateSleeping),
	string(StateStopped),
}

// Policy decides what Run does after a failed cycle.
type Policy int

const (
	// RetryNextTick logs the failure and sweeps again on the next tick.
	RetryNextTick Policy = iota
	// StopOnFailure ends Run with the failure.
	StopOnFailure
)

func (p Policy) String() string {
	if p == StopOnFailure {
		return "stop_on_failure"
	}
	return "retry_next_tick"
}

// ErrSweepInProgress is returned when another cycle holds the run lock.
var ErrSweepInProgress = model.NewDomainError(model.ErrCodeConflict, "an expiration sweep is already running")

// SchedulerParams configure the scheduler.
type SchedulerParams struct {
	Sweeper  *Sweeper
	Lock     Lock
	Logger   zerolog.Logger
	Metrics  *metrics.SweepMetrics
	Interval time.Duration
	Policy   Policy
	Now      func() time.Time
}

// Scheduler runs the sweeper on a fixed cadence.
type Scheduler struct {
	sweeper  *Sweeper
	lock     Lock
	logger   zerolog.Logger
	metrics  *metrics.SweepMetrics
	interval time.Duration
	policy   Policy
	now      func() time.Time

	running sync.Mutex

	mu    sync.RWMutex
	state State
}

// NewScheduler builds a scheduler in the Idle state.
func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	s := &Scheduler{
		sweeper:  params.Sweeper,
		lock:     params.Lock,
		logger:   params.Logger.With().Str("component", "sweeper_scheduler").Logger(),
		metrics:  params.Metrics,
		interval: interval,
		policy:   params.Policy,
		now:      now,
	}
	s.setState(StateIdle)
	return s, nil
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Run sweeps immediately and then once per interval until ctx is cancelled.
// Only the sleep between cycles observes cancellation; a cycle in progress
// always finishes.
func (s *Scheduler) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.logger.Info().
		Dur("interval", s.interval).
		Str("policy", s.policy.String()).
		Msg("expiration sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.runCycle(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
			if s.policy == StopOnFailure {
				s.setState(StateStopped)
				s.logger.Error().Err(err).Msg("expiration sweeper stopped after failure")
				return err
			}
			s.logger.Error().Err(err).Msg("scheduled sweep failed; retrying next tick")
		}

		s.setState(StateSleeping)
		select {
		case <-ctx.Done():
			s.setState(StateStopped)
			s.logger.Info().Msg("expiration sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunNow performs one sweep cycle outside the schedule and returns the number
// of coupons removed.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	prev := s.State()
	removed, err := s.runCycle(ctx)
	if !errors.Is(err, ErrSweepInProgress) {
		s.setState(prev)
	}
	return removed, err
}

func (s *Scheduler) runCycle(ctx context.Context) (int, error) {
	if !s.running.TryLock() {
		return 0, ErrSweepInProgress
	}
	defer s.running.Unlock()

	ctx = context.WithoutCancel(ctx)

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		s.metrics.ObserveRun("failure", 0, 0)
		return 0, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logger.Info().Msg("another instance is sweeping; skipping this cycle")
		s.metrics.ObserveRun("skipped", 0, 0)
		return 0, ErrSweepInProgress
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logger.Error().Err(relErr).Msg("failed to release sweeper lock")
		}
	}()

	asOf := model.DateOf(s.now())
	s.setState(StateScanning)
	s.logger.Info().Str("as_of", asOf.String()).Msg("expiration sweep starting")

	start := time.Now()
	removed, err := s.sweeper.sweep(ctx, asOf, func(int64) {
		s.setState(StateRemoving)
	})
	duration := time.Since(start)

	if err != nil {
		s.metrics.ObserveRun("failure", removed, duration)
		s.logger.Error().Err(err).
			Int("removed", removed).
			Dur("duration", duration).
			Msg("expiration sweep failed")
		return removed, err
	}

	s.metrics.ObserveRun("success", removed, duration)
	s.logger.Info().
		Int("removed", removed).
		Dur("duration", duration).
		Msg("expiration sweep complete")
	return removed, nil
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.metrics.SetState(string(state), knownStates)
}
