package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/intervox/internal/observe"
)

// Default scheduler tuning.
const (
	defaultPrefetchWorkers = 4
	defaultGradingWorkers  = 4
)

// ErrSchedulerClosed is returned by [Scheduler.Go] after [Scheduler.Close].
var ErrSchedulerClosed = errors.New("interview: scheduler closed")

// Scheduler runs enrichment jobs in the background: audio prefetch for
// upcoming questions and grading of submitted answers.
//
// Every job is tracked, so [Scheduler.Drain] can wait for in-flight work on
// shutdown. Concurrency is bounded per job kind with weighted semaphores, and
// a failing job never affects other jobs or the caller. Results are written
// back through the [Orchestrator]; a job whose session has since been evicted
// writes nothing.
type Scheduler struct {
	orch    *Orchestrator
	synth   Synthesizer
	grader  Grader
	metrics *observe.Metrics

	prefetchWorkers int64
	gradingWorkers  int64
	jobTimeout      time.Duration

	prefetchSem *semaphore.Weighted
	gradingSem  *semaphore.Weighted

	// base is the parent of every job context. It is cancelled by
	// Shutdown when the drain deadline passes.
	base   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	prefetched map[string]map[int]struct{}
	wg         sync.WaitGroup
}

// SchedulerOption configures a [Scheduler].
type SchedulerOption func(*Scheduler)

// WithPrefetchWorkers bounds the number of concurrent synthesis jobs.
func WithPrefetchWorkers(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.prefetchWorkers = int64(n)
		}
	}
}

// WithGradingWorkers bounds the number of concurrent grading jobs.
func WithGradingWorkers(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.gradingWorkers = int64(n)
		}
	}
}

// WithJobTimeout caps each job's collaborator call. A prefetch that times out
// writes nothing; a grading job that times out records [DegradedFeedback].
// Zero disables the timeout.
func WithJobTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.jobTimeout = d }
}

// WithSchedulerMetrics sets the metrics sink. Defaults to the orchestrator's.
func WithSchedulerMetrics(m *observe.Metrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler returns a Scheduler that writes results through orch.
func NewScheduler(orch *Orchestrator, synth Synthesizer, grader Grader, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		orch:            orch,
		synth:           synth,
		grader:          grader,
		metrics:         orch.metrics,
		prefetchWorkers: defaultPrefetchWorkers,
		gradingWorkers:  defaultGradingWorkers,
		prefetched:      make(map[string]map[int]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.prefetchSem = semaphore.NewWeighted(s.prefetchWorkers)
	s.gradingSem = semaphore.NewWeighted(s.gradingWorkers)
	s.base, s.cancel = context.WithCancel(context.Background())
	return s
}

// QuestionHint returns the file stem used for question i of a session.
func QuestionHint(sessionID string, i int) string {
	return fmt.Sprintf("q_%s_%d", sessionID, i)
}

// SchedulePrefetch starts one synthesis job for every question after the
// first. Index 0 is always synthesised synchronously by the caller. An index
// already scheduled for this session is skipped. It returns the number of
// jobs started.
func (s *Scheduler) SchedulePrefetch(sessionID string, questions []string) int {
	started := 0
	for i := 1; i < len(questions); i++ {
		if !s.claimPrefetch(sessionID, i) {
			continue
		}
		text := questions[i]
		idx := i
		if !s.track(observe.JobPrefetch, sessionID, func() { s.runPrefetch(sessionID, idx, text) }) {
			break
		}
		started++
	}
	if started > 0 {
		slog.Debug("prefetch scheduled", "session_id", sessionID, "jobs", started)
	}
	return started
}

// ScheduleGrading starts a grading job for the answer at index. The job
// always records feedback: a real evaluation, or [DegradedFeedback] if the
// grader fails, times out, or the scheduler is aborted.
func (s *Scheduler) ScheduleGrading(sessionID string, index int, question, answer string) {
	s.track(observe.JobGrading, sessionID, func() { s.runGrading(sessionID, index, question, answer) })
}

// Go runs fn as a tracked job so that it is drained on shutdown. fn receives
// a context that is cancelled if draining times out.
func (s *Scheduler) Go(kind string, fn func(ctx context.Context)) error {
	if !s.track(kind, "", func() {
		start := time.Now()
		fn(s.base)
		s.metrics.RecordJob(context.Background(), kind, observe.StatusOK, time.Since(start))
	}) {
		return ErrSchedulerClosed
	}
	return nil
}

// Forget drops prefetch bookkeeping for a session, typically after eviction.
func (s *Scheduler) Forget(sessionID string) {
	s.mu.Lock()
	delete(s.prefetched, sessionID)
	s.mu.Unlock()
}

// Close stops the scheduler from accepting new jobs. Jobs already running are
// unaffected. Safe to call more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether [Scheduler.Close] has been called.
func (s *Scheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Drain blocks until every tracked job has finished or ctx is done, in which
// case it returns ctx's error. Call [Scheduler.Close] first, otherwise new
// jobs may keep arriving.
func (s *Scheduler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown closes the scheduler and drains it. If ctx expires first, running
// jobs are cancelled (grading jobs still record degraded feedback) and the
// context error is returned.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.Close()
	if err := s.Drain(ctx); err != nil {
		s.cancel()
		slog.Warn("scheduler drain deadline exceeded, cancelling in-flight jobs", "err", err)
		return fmt.Errorf("interview: drain scheduler: %w", err)
	}
	s.cancel()
	return nil
}

// ── internals ──────────────────────────────────────────────────────────────

// track registers fn with the wait group and runs it on a new goroutine.
// It returns false, without running fn, when the scheduler is closed.
func (s *Scheduler) track(kind, sessionID string, fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		slog.Warn("scheduler closed, dropping job", "kind", kind, "session_id", sessionID)
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("enrichment job panicked", "kind", kind, "session_id", sessionID, "panic", r)
			}
		}()
		fn()
	}()
	return true
}

func (s *Scheduler) claimPrefetch(sessionID string, i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen, ok := s.prefetched[sessionID]
	if !ok {
		seen = make(map[int]struct{})
		s.prefetched[sessionID] = seen
	}
	if _, dup := seen[i]; dup {
		return false
	}
	seen[i] = struct{}{}
	return true
}

// jobContext derives the context of one job from the scheduler's base
// context: bounded by the job timeout and scoped to the session.
func (s *Scheduler) jobContext(sessionID string) (context.Context, context.CancelFunc) {
	ctx := observe.WithSession(s.base, sessionID)
	if s.jobTimeout > 0 {
		return context.WithTimeout(ctx, s.jobTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Scheduler) runPrefetch(sessionID string, i int, text string) {
	start := time.Now()
	if err := s.prefetchSem.Acquire(s.base, 1); err != nil {
		s.metrics.RecordJob(context.Background(), observe.JobPrefetch, observe.StatusSkipped, time.Since(start))
		return
	}
	defer s.prefetchSem.Release(1)

	ctx, cancel := s.jobContext(sessionID)
	defer cancel()
	ctx, span := observe.StartSpan(ctx, "prefetch question audio")
	defer span.End()
	log := observe.Logger(ctx)

	res := s.synth.Synthesize(ctx, text, QuestionHint(sessionID, i))
	switch {
	case ctx.Err() != nil:
		log.Warn("prefetch timed out", "index", i, "err", ctx.Err())
		s.metrics.RecordJob(context.Background(), observe.JobPrefetch, observe.StatusTimeout, time.Since(start))
	case !res.Valid:
		log.Warn("prefetch synthesis failed", "index", i)
		s.metrics.RecordJob(context.Background(), observe.JobPrefetch, observe.StatusDegraded, time.Since(start))
	default:
		s.orch.RecordAudio(sessionID, i, res.Ref)
		log.Debug("prefetch cached", "index", i, "ref", res.Ref)
		s.metrics.RecordJob(context.Background(), observe.JobPrefetch, observe.StatusOK, time.Since(start))
	}
}

func (s *Scheduler) runGrading(sessionID string, i int, question, answer string) {
	start := time.Now()
	fb, status := s.grade(sessionID, i, question, answer)
	s.orch.RecordFeedback(sessionID, i, fb)
	slog.Debug("answer graded", "session_id", sessionID, "index", i, "rating", fb.Rating, "status", status)
	s.metrics.RecordJob(context.Background(), observe.JobGrading, status, time.Since(start))
}

// grade calls the grader under the semaphore. It converts every failure mode,
// including a panicking grader, into degraded feedback.
func (s *Scheduler) grade(sessionID string, i int, question, answer string) (fb Feedback, status string) {
	if err := s.gradingSem.Acquire(s.base, 1); err != nil {
		return DegradedFeedback(), observe.StatusSkipped
	}
	defer s.gradingSem.Release(1)

	ctx, cancel := s.jobContext(sessionID)
	defer cancel()
	ctx, span := observe.StartSpan(ctx, "grade answer")
	defer span.End()
	log := observe.Logger(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("grader panicked", "index", i, "panic", r)
			fb, status = DegradedFeedback(), observe.StatusDegraded
		}
	}()

	fb = s.grader.Grade(ctx, question, answer)
	switch {
	case ctx.Err() != nil:
		log.Warn("grading timed out", "index", i, "err", ctx.Err())
		return DegradedFeedback(), observe.StatusTimeout
	case fb.IsDegraded():
		return fb, observe.StatusDegraded
	}
	return fb, observe.StatusOK
}
