package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/subtran/subtran/internal/config"
	"github.com/subtran/subtran/internal/prompt"
	"github.com/subtran/subtran/internal/subtitle"
)

type fakeBackend struct {
	kind    config.BackendKind
	warmups atomic.Int64
}

func (f *fakeBackend) Kind() config.BackendKind { return f.kind }
func (f *fakeBackend) Warmup(ctx context.Context) error {
	f.warmups.Add(1)
	return nil
}
func (f *fakeBackend) Translate(ctx context.Context, r *prompt.Request) (string, error) {
	return "", nil
}

func TestRunBoundsParallelism(t *testing.T) {
	s := New(2)
	fb := &fakeBackend{kind: config.BackendLocalLLM}

	var active, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Run(context.Background(), fb, func(ctx context.Context) error {
				cur := active.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > 2 {
		t.Errorf("peak parallelism = %d", p)
	}
}

func TestWarmupHappensOncePerKind(t *testing.T) {
	s := New(2)
	fb := &fakeBackend{kind: config.BackendLocalLLM}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Run(context.Background(), fb, func(context.Context) error { return nil })
		}()
	}
	wg.Wait()

	if n := fb.warmups.Load(); n != 1 {
		t.Errorf("warmups = %d, want 1", n)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	s := New(1)
	fb := &fakeBackend{kind: config.BackendLocalLLM}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, fb, func(context.Context) error { return nil })
	if err == nil {
		t.Error("cancelled context should fail acquisition")
	}
}

func TestBatchSizeRules(t *testing.T) {
	p := config.Default().Profile()
	p.Features.BatchMode = true

	s := New(1)

	p.SRTBatchSize = 6
	if got := s.BatchSize(subtitle.FormatSRT, p); got != 6 {
		t.Errorf("srt 6 = %d", got)
	}
	p.SRTBatchSize = 5 // not a valid size
	if got := s.BatchSize(subtitle.FormatSRT, p); got != 0 {
		t.Errorf("srt invalid = %d", got)
	}
	p.ASSBatchSize = 2
	if got := s.BatchSize(subtitle.FormatASS, p); got != 2 {
		t.Errorf("ass 2 = %d", got)
	}
	p.ASSBatchSize = 1 // line-by-line
	if got := s.BatchSize(subtitle.FormatASS, p); got != 0 {
		t.Errorf("ass 1 = %d", got)
	}

	p.Features.BatchMode = false
	p.SRTBatchSize = 6
	if got := s.BatchSize(subtitle.FormatSRT, p); got != 0 {
		t.Errorf("flag off = %d", got)
	}
}

func TestBatchCircuitBreaker(t *testing.T) {
	s := New(1)
	p := config.Default().Profile()
	p.Features.BatchMode = true
	p.SRTBatchSize = 6

	s.ReportBatch(false)
	s.ReportBatch(false)
	if !s.BatchEnabled() {
		t.Fatal("tripped after 2 failures")
	}
	s.ReportBatch(false)
	if s.BatchEnabled() {
		t.Fatal("not tripped after 3 failures with zero successes")
	}
	if got := s.BatchSize(subtitle.FormatSRT, p); got != 0 {
		t.Errorf("batch size after trip = %d", got)
	}
}

func TestBatchBreakerIgnoredAfterSuccess(t *testing.T) {
	s := New(1)
	s.ReportBatch(true)
	for i := 0; i < 5; i++ {
		s.ReportBatch(false)
	}
	if !s.BatchEnabled() {
		t.Error("breaker tripped despite a prior success")
	}
}
