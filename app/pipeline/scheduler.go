package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler triggers pipeline runs on a fixed interval. Runs are
// single-flight: a tick arriving while a run is in progress is skipped, so
// overlapping invocations cannot double-publish.
type Scheduler struct {
	orchestrator *Orchestrator
	interval     time.Duration

	mu         sync.Mutex
	running    bool
	lastResult *RunResult

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(orchestrator *Orchestrator, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		orchestrator: orchestrator,
		interval:     interval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (s *Scheduler) Start() {
	if s.interval <= 0 {
		slog.Info("Internal scheduler disabled, runs must be triggered via the API")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if _, ok := s.TriggerRun(); !ok {
					slog.Warn("Scheduled run skipped, previous run still in progress")
				}
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// TriggerRun starts a run unless one is already in progress. The second
// return value reports whether the run actually executed.
func (s *Scheduler) TriggerRun() (*RunResult, bool) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, false
	}
	s.running = true
	s.mu.Unlock()

	result := s.orchestrator.Run(s.ctx)

	s.mu.Lock()
	s.running = false
	s.lastResult = result
	s.mu.Unlock()

	return result, true
}

// LastResult returns the most recent run's result, or nil before any run.
func (s *Scheduler) LastResult() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}
