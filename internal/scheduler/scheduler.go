// Package scheduler bounds how much work hits a translation backend at
// once. It owns the worker permits (parallelism is clamped to 1-2), the
// per-backend warmup guard, batch size validation, and the process-wide
// batch-mode circuit breaker.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/subtran/subtran/internal/backend"
	"github.com/subtran/subtran/internal/config"
	"github.com/subtran/subtran/internal/subtitle"
)

// batchDisableThreshold is how many batch failures with zero successes it
// takes to turn batch mode off for the rest of the run.
const batchDisableThreshold = 3

var (
	validSRTBatchSizes = map[int]bool{0: true, 4: true, 6: true, 8: true, 10: true, 12: true}
	validASSBatchSizes = map[int]bool{1: true, 2: true, 4: true, 6: true, 8: true, 10: true, 12: true}
)

// Scheduler is safe for concurrent use by every worker in the process.
type Scheduler struct {
	sem *semaphore.Weighted

	warmMu sync.Mutex
	warmed map[config.BackendKind]*warmState

	batchSuccesses atomic.Int64
	batchFailures  atomic.Int64
	batchDisabled  atomic.Bool
}

type warmState struct {
	once sync.Once
	err  error
}

// New creates a scheduler with maxParallelism permits, clamped to 1-2.
func New(maxParallelism int) *Scheduler {
	if maxParallelism < 1 {
		maxParallelism = 1
	}
	if maxParallelism > 2 {
		maxParallelism = 2
	}
	return &Scheduler{
		sem:    semaphore.NewWeighted(int64(maxParallelism)),
		warmed: make(map[config.BackendKind]*warmState),
	}
}

// Run executes fn while holding one worker permit. It blocks for a permit,
// honors cancellation while waiting, and guarantees the first contact with
// the backend is a completed warmup before any parallel work starts.
func (s *Scheduler) Run(ctx context.Context, t backend.Translator, fn func(ctx context.Context) error) error {
	if err := s.EnsureWarm(ctx, t); err != nil {
		return err
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return fn(ctx)
}

// EnsureWarm performs the one-time warmup for the backend's kind. Callers
// racing for the first call all wait for the single warmup to finish.
func (s *Scheduler) EnsureWarm(ctx context.Context, t backend.Translator) error {
	s.warmMu.Lock()
	state, ok := s.warmed[t.Kind()]
	if !ok {
		state = &warmState{}
		s.warmed[t.Kind()] = state
	}
	s.warmMu.Unlock()

	state.once.Do(func() {
		state.err = t.Warmup(ctx)
	})
	return state.err
}

// BatchSize decides the chunk size for a file, returning 0 for line-by-line
// work. Invalid configured sizes fall back to line-by-line rather than
// guessing. The circuit breaker and the batch-mode flag both gate it.
func (s *Scheduler) BatchSize(format subtitle.Format, profile *config.Profile) int {
	if !profile.Features.BatchMode || s.batchDisabled.Load() {
		return 0
	}
	switch format {
	case subtitle.FormatSRT:
		if validSRTBatchSizes[profile.SRTBatchSize] {
			return profile.SRTBatchSize
		}
	case subtitle.FormatASS:
		if validASSBatchSizes[profile.ASSBatchSize] && profile.ASSBatchSize > 1 {
			return profile.ASSBatchSize
		}
	}
	return 0
}

// ReportBatch feeds the circuit breaker: after batchDisableThreshold
// failures with no success at all, batch mode turns off for the run.
func (s *Scheduler) ReportBatch(ok bool) {
	if ok {
		s.batchSuccesses.Add(1)
		return
	}
	failures := s.batchFailures.Add(1)
	if s.batchSuccesses.Load() == 0 && failures >= batchDisableThreshold {
		s.batchDisabled.Store(true)
	}
}

// BatchEnabled reports whether the circuit breaker has tripped.
func (s *Scheduler) BatchEnabled() bool {
	return !s.batchDisabled.Load()
}
