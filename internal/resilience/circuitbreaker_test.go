package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

// fakeClock is a manually advanced clock for breaker timeouts.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
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

// transitions records OnStateChange callbacks.
type transitions struct {
	mu  sync.Mutex
	got []string
}

func (tr *transitions) record(name string, from, to State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.got = append(tr.got, fmt.Sprintf("%s:%s->%s", name, from, to))
}

func (tr *transitions) list() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.got...)
}

func fail() error { return errTest }
func ok() error { return nil }

func tripped(t *testing.T, clock *fakeClock, tr *transitions) *CircuitBreaker {
	t.Helper()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:          "stt/deepgram",
		MaxFailures:   2,
		ResetTimeout:  time.Minute,
		HalfOpenMax:   2,
		Now:           clock.Now,
		OnStateChange: tr.record,
	})
	cb.Execute(fail)
	cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
	return cb
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	if cb.cfg.MaxFailures != 5 || cb.cfg.ResetTimeout != 30*time.Second || cb.cfg.HalfOpenMax != 3 {
		t.Fatalf("defaults = %d/%v/%d, want 5/30s/3", cb.cfg.MaxFailures, cb.cfg.ResetTimeout, cb.cfg.HalfOpenMax)
	}
	if cb.cfg.Now == nil {
		t.Fatal("clock not defaulted")
	}
	if cb.State() != StateClosed {
		t.Fatalf("initial state = %v", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3})

	cb.Execute(fail)
	cb.Execute(fail)
	cb.Execute(ok) // success clears the streak
	cb.Execute(fail)
	cb.Execute(fail)
	if cb.State() != StateClosed {
		t.Fatalf("state = %v after broken streak, want closed", cb.State())
	}

	if err := cb.Execute(fail); !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want the call's own error", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open breaker: err = %v, called = %v", err, called)
	}
}

func TestCircuitBreaker_NeutralErrors(t *testing.T) {
	errSilence := errors.New("no speech")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		Neutral:     func(err error) bool { return errors.Is(err, errSilence) },
	})

	for range 5 {
		if err := cb.Execute(func() error { return errSilence }); !errors.Is(err, errSilence) {
			t.Fatalf("err = %v, want errSilence passed through", err)
		}
		if err := cb.Execute(func() error { return fmt.Errorf("wrap: %w", context.Canceled) }); !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after neutral errors only", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbes(t *testing.T) {
	clock := newFakeClock()
	tr := &transitions{}
	cb := tripped(t, clock, tr)

	clock.Advance(59 * time.Second)
	if err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("before timeout: err = %v, want ErrCircuitOpen", err)
	}

	clock.Advance(time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v after timeout, want half-open", cb.State())
	}
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("first probe: %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v after one probe, want half-open", cb.State())
	}
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("second probe: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}

	want := []string{
		"stt/deepgram:closed->open",
		"stt/deepgram:open->half-open",
		"stt/deepgram:half-open->closed",
	}
	got := tr.list()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	clock := newFakeClock()
	tr := &transitions{}
	cb := tripped(t, clock, tr)

	clock.Advance(time.Minute)
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("probe: %v", err)
	}
	cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want re-opened", cb.State())
	}

	// The reset timeout restarts from the failed probe.
	clock.Advance(30 * time.Second)
	if err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_ProbeBudget(t *testing.T) {
	clock := newFakeClock()
	cb := tripped(t, clock, &transitions{})
	clock.Advance(time.Minute)

	release := make(chan struct{})
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.Execute(func() error { <-release; return nil })
		}()
	}

	// Wait until both probes hold their slots.
	deadline := time.Now().Add(2 * time.Second)
	for {
		cb.mu.Lock()
		probes := cb.probes
		cb.mu.Unlock()
		if probes == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("probes = %d, want 2", probes)
		}
		time.Sleep(time.Millisecond)
	}

	if err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("third probe: err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	wg.Wait()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	clock := newFakeClock()
	tr := &transitions{}
	cb := tripped(t, clock, tr)

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("Execute after reset: %v", err)
	}

	cb.Reset()
	if got := tr.list(); len(got) != 2 || got[1] != "stt/deepgram:open->closed" {
		t.Fatalf("transitions = %v, want exactly one reset notification", got)
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(42):     "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
