package interview

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/intervox/internal/observe"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newTestOrchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithMetrics(testMetrics(t))}, opts...)
	return NewOrchestrator(NewStore(), opts...)
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingSynth records every call and answers according to fn.
type recordingSynth struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, text, hint string) SpeechResult
}

func (r *recordingSynth) Synthesize(ctx context.Context, text, hint string) SpeechResult {
	r.mu.Lock()
	r.calls = append(r.calls, hint)
	r.mu.Unlock()
	if r.fn != nil {
		return r.fn(ctx, text, hint)
	}
	return SpeechResult{Ref: "/storage/audio/" + hint + ".mp3", Valid: true}
}

func (r *recordingSynth) Hints() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func drain(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
