package interview

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// defaultEvictionInterval is how often the janitor scans when no interval is
// configured.
const defaultEvictionInterval = time.Minute

// Janitor periodically evicts sessions that have seen no candidate activity
// for longer than a TTL. Enrichment writes do not count as activity.
type Janitor struct {
	orch      *Orchestrator
	scheduler *Scheduler
	ttl       atomic.Int64
	interval  time.Duration
	onEvict   func(ids []string)
}

// NewJanitor returns a Janitor. scheduler may be nil; when set, its prefetch
// bookkeeping for evicted sessions is released too. A zero interval uses a
// one-minute default.
func NewJanitor(orch *Orchestrator, scheduler *Scheduler, ttl, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = defaultEvictionInterval
	}
	j := &Janitor{orch: orch, scheduler: scheduler, interval: interval}
	j.ttl.Store(int64(ttl))
	return j
}

// SetTTL changes the idle TTL. Zero disables eviction until changed again.
func (j *Janitor) SetTTL(ttl time.Duration) {
	j.ttl.Store(int64(ttl))
}

// OnEvict registers fn to receive the IDs evicted by each non-empty sweep.
// It must be called before Run.
func (j *Janitor) OnEvict(fn func(ids []string)) {
	j.onEvict = fn
}

// TTL returns the current idle TTL.
func (j *Janitor) TTL() time.Duration {
	return time.Duration(j.ttl.Load())
}

// Sweep runs a single eviction pass and returns the evicted IDs.
func (j *Janitor) Sweep() []string {
	ids := j.orch.EvictIdle(j.TTL())
	if j.scheduler != nil {
		for _, id := range ids {
			j.scheduler.Forget(id)
		}
	}
	if len(ids) > 0 && j.onEvict != nil {
		j.onEvict(ids)
	}
	return ids
}

// Run sweeps every interval until ctx is cancelled. It always returns nil so
// that it can run under an errgroup.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	slog.Debug("session janitor started", "interval", j.interval, "ttl", j.TTL())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Sweep()
		}
	}
}
