package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"basisd/internal/application/port"
	"basisd/internal/application/service"
	"basisd/internal/application/store"

	"github.com/rs/zerolog/log"
)

// State is the scheduler lifecycle.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// snapshotEvery is the periodic snapshot cadence in iterations.
const snapshotEvery = 10

type ServiceDeps struct {
	Detector     *service.Detector
	Dispatcher   *service.Dispatcher
	Store        *store.Store
	Repo         port.Repository
	Symbols      []string
	Interval     time.Duration
	Duration     time.Duration // 0 = run until interrupted
	Simulate     bool
	SnapshotPath string
}

// Service drives detect-then-dispatch cycles at a fixed interval and owns the
// snapshot cadence. One cycle runs to completion before the loop idles; the
// sleep is the only suspension point and is cut short by cancellation.
type Service struct {
	deps  ServiceDeps
	state atomic.Int32
}

func NewService(deps ServiceDeps) *Service {
	return &Service{deps: deps}
}

func (s *Service) State() State {
	return State(s.state.Load())
}

// Run loops until the configured duration elapses or ctx is cancelled.
// Every path out takes a final snapshot: history accumulated since the last
// periodic snapshot survives any termination.
func (s *Service) Run(ctx context.Context) error {
	if len(s.deps.Symbols) == 0 {
		return errors.New("no symbols")
	}
	if s.deps.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return errors.New("scheduler already started")
	}

	if n, err := s.deps.Store.Restore(s.deps.SnapshotPath); err != nil {
		log.Warn().Str("path", s.deps.SnapshotPath).Err(err).Msg("restore failed, starting with empty history")
	} else if n > 0 {
		log.Info().Int("count", n).Msg("restored opportunity history")
	}

	start := time.Now()
	iteration := 0

	for {
		iteration++
		log.Debug().Int("iteration", iteration).Msg("cycle start")

		opportunities := s.deps.Detector.Detect(ctx, s.deps.Symbols)
		for _, opp := range opportunities {
			if s.deps.Simulate {
				log.Info().
					Str("symbol", opp.Symbol).
					Str("strategy", string(opp.Strategy)).
					Float64("premium", opp.PremiumPercent).
					Msg("simulate: dispatch suppressed")
				continue
			}
			// A failed dispatch is logged and left alone; the cycle goes on.
			ok := s.deps.Dispatcher.Dispatch(ctx, opp, s.deps.Simulate)
			log.Info().
				Str("symbol", opp.Symbol).
				Str("strategy", string(opp.Strategy)).
				Bool("dispatched", ok).
				Msg("dispatch result")
		}

		if iteration%snapshotEvery == 0 {
			s.snapshot(ctx)
		}

		if s.deps.Duration > 0 && time.Since(start) >= s.deps.Duration {
			log.Info().Dur("elapsed", time.Since(start)).Msg("run duration reached")
			break
		}

		// Interruptible sleep: cancellation skips straight to the final snapshot.
		timer := time.NewTimer(s.deps.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("interrupted")
			s.shutdown(iteration)
			return nil
		case <-timer.C:
		}
	}

	s.shutdown(iteration)
	return nil
}

func (s *Service) shutdown(iterations int) {
	s.state.Store(int32(StateStopping))
	s.snapshot(context.Background())
	s.state.Store(int32(StateStopped))
	log.Info().Int("iterations", iterations).Int("history", s.deps.Store.Len()).Msg("scheduler stopped")
}

// snapshot persists the full history to the flat file and mirrors the payload
// into the archive. Failures are logged, never fatal.
func (s *Service) snapshot(ctx context.Context) {
	n, err := s.deps.Store.Snapshot(s.deps.SnapshotPath)
	if err != nil {
		log.Error().Str("path", s.deps.SnapshotPath).Err(err).Msg("snapshot failed")
		return
	}
	log.Debug().Int("count", n).Str("path", s.deps.SnapshotPath).Msg("snapshot written")

	payload, err := json.Marshal(s.deps.Store.History())
	if err != nil {
		return
	}
	if err := s.deps.Repo.InsertSnapshot(ctx, time.Now().UnixMilli(), string(payload)); err != nil {
		log.Warn().Err(err).Msg("archive snapshot failed")
	}
}
