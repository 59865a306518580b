// Package resilience provides circuit breaker and provider failover primitives
// for the LLM, STT and TTS backends an interview depends on.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open).
// [FallbackGroup] composes several instances of one provider type, each behind
// its own breaker, so a failing primary is bypassed in favour of the next
// healthy entry. [LLMFallback], [STTFallback] and [TTSFallback] expose a group
// as the matching provider interface.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successful probes close the breaker; any failure re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels log lines and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that opens a closed
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long an open breaker waits before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of probes admitted, and the number of
	// successful probes needed to close again. Default: 3.
	HalfOpenMax int

	// Neutral reports errors that say nothing about the backend's health,
	// for example a clip that holds no speech. They are returned unchanged
	// and count as a successful call. A cancelled context is always neutral:
	// the caller gave up, the backend did not fail.
	Neutral func(error) bool

	// OnStateChange is called after every transition, without the breaker's
	// lock held.
	OnStateChange func(name string, from, to State)

	// Now overrides the clock. Default: time.Now.
	Now func() time.Time
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probes    int
	successes int
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value config fields are
// replaced with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute runs fn if the breaker admits the call and records the outcome.
// It returns [ErrCircuitOpen] without calling fn while the breaker is open or
// its probe budget is spent.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, change, err := cb.admit()
	cb.notify(change)
	if err != nil {
		return err
	}

	err = fn()

	cb.notify(cb.settle(probe, err))
	return err
}

// transition describes a state change to report after unlocking.
type transition struct {
	from, to State
}

func (cb *CircuitBreaker) admit() (probe bool, change *transition, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			return false, nil, ErrCircuitOpen
		}
		change = cb.moveTo(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.HalfOpenMax {
			return false, change, ErrCircuitOpen
		}
		cb.probes++
		return true, change, nil
	}
	return false, change, nil
}

func (cb *CircuitBreaker) settle(probe bool, err error) *transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil || cb.neutral(err) {
		if !probe {
			cb.failures = 0
			return nil
		}
		if cb.state != StateHalfOpen {
			return nil
		}
		cb.successes++
		if cb.successes >= cb.cfg.HalfOpenMax {
			return cb.moveTo(StateClosed)
		}
		return nil
	}

	if probe {
		if cb.state != StateHalfOpen {
			return nil
		}
		return cb.moveTo(StateOpen)
	}
	cb.failures++
	if cb.state == StateClosed && cb.failures >= cb.cfg.MaxFailures {
		return cb.moveTo(StateOpen)
	}
	return nil
}

func (cb *CircuitBreaker) neutral(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	return cb.cfg.Neutral != nil && cb.cfg.Neutral(err)
}

// moveTo changes state and resets the counters of the new state. Must be
// called with cb.mu held.
func (cb *CircuitBreaker) moveTo(to State) *transition {
	from := cb.state
	cb.state = to
	cb.probes, cb.successes = 0, 0
	switch to {
	case StateOpen:
		cb.openedAt = cb.cfg.Now()
	case StateClosed:
		cb.failures = 0
	}
	return &transition{from: from, to: to}
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t == nil {
		return
	}
	level := slog.LevelInfo
	if t.to == StateOpen {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "circuit breaker state changed",
		"name", cb.cfg.Name, "from", t.from.String(), "to", t.to.String())
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, t.from, t.to)
	}
}

// State returns the current [State]. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	change := cb.moveTo(StateClosed)
	cb.mu.Unlock()
	if change.from != StateClosed {
		cb.notify(change)
	}
}
