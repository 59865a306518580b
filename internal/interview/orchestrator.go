// Package interview implements the session orchestrator: the in-memory state
// of every running mock interview and the background enrichment that
// accompanies it.
//
// The candidate-facing path ([Orchestrator.CreateSession],
// [Orchestrator.CurrentQuestion], [Orchestrator.SubmitAnswer]) is fully
// synchronous and never waits on enrichment. Enrichment (pre-synthesised
// question audio and answer grading) is produced by a [Scheduler] and written
// back through [Orchestrator.RecordAudio] and [Orchestrator.RecordFeedback],
// which may arrive in any order and at any time, including after the session
// is complete.
//
// Each session carries two locks: one for progress, one for enrichment.
// Sessions never share a lock, so work on one session never blocks another.
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/intervox/internal/observe"
)

// Orchestrator is the single entry point for the request-handling layer. It
// owns no state of its own beyond configuration; sessions live in the
// [Store].
type Orchestrator struct {
	store    *Store
	metrics  *observe.Metrics
	onReport func(Snapshot)
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithReportHook registers fn to be called exactly once per session, as soon
// as the session is complete and every question has feedback. fn runs on the
// goroutine that made the final write and must not block for long.
func WithReportHook(fn func(Snapshot)) Option {
	return func(o *Orchestrator) { o.onReport = fn }
}

// NewOrchestrator returns an Orchestrator over store.
func NewOrchestrator(store *Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{store: store}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Store returns the underlying session store.
func (o *Orchestrator) Store() *Store { return o.store }

// CreateSession registers a new session over questions and returns its ID.
// Returns [ErrInvalidInput] when questions is empty.
func (o *Orchestrator) CreateSession(questions []string) (string, error) {
	sess, err := o.store.Create(questions)
	if err != nil {
		return "", err
	}
	o.metrics.RecordSessionCreated(context.Background())
	slog.Info("interview session created", "session_id", sess.ID(), "questions", sess.Len())
	return sess.ID(), nil
}

// CurrentQuestion returns the question the candidate should answer next.
// Returns [ErrNotFound] for unknown sessions and for completed sessions.
func (o *Orchestrator) CurrentQuestion(id string) (string, error) {
	sess, ok := o.store.Get(id)
	if !ok {
		slog.Debug("current question: unknown session", "session_id", id)
		return "", fmt.Errorf("interview: current question for %q: %w", id, ErrNotFound)
	}
	idx, q, ok := sess.current()
	if !ok {
		slog.Debug("current question: session completed", "session_id", id, "index", idx)
		return "", fmt.Errorf("interview: current question for %q: session completed: %w", id, ErrNotFound)
	}
	sess.touch(o.store.now())
	return q, nil
}

// SubmitAnswer records answer against the current question, advances the
// session, and returns the index that was answered (the pre-increment
// value). The returned index is what grading should be keyed by.
//
// Returns [ErrNotFound] for unknown sessions and [ErrAlreadyCompleted] when
// every question has been answered. On error the session is unchanged.
func (o *Orchestrator) SubmitAnswer(id, answer string) (int, error) {
	sess, ok := o.store.Get(id)
	if !ok {
		return 0, fmt.Errorf("interview: submit answer to %q: %w", id, ErrNotFound)
	}
	idx, completed, err := sess.submit(answer, o.store.now())
	if err != nil {
		return 0, err
	}
	o.metrics.AnswersSubmitted.Add(context.Background(), 1)
	slog.Debug("answer submitted", "session_id", id, "index", idx, "completed", completed)
	if completed {
		slog.Info("interview session completed", "session_id", id, "questions", sess.Len())
		o.maybeReport(sess)
	}
	return idx, nil
}

// RecordFeedback stores fb for question i, replacing any earlier value. It is
// a no-op when the session does not exist (for example because it was
// evicted) or when i is out of range.
func (o *Orchestrator) RecordFeedback(id string, i int, fb Feedback) {
	sess, ok := o.lookupForWrite(id, i, "feedback")
	if !ok {
		return
	}
	sess.setFeedback(i, fb)
	o.maybeReport(sess)
}

// RecordAudio caches ref as the audio for question i, replacing any earlier
// value. Same no-op rules as [Orchestrator.RecordFeedback].
func (o *Orchestrator) RecordAudio(id string, i int, ref string) {
	sess, ok := o.lookupForWrite(id, i, "audio")
	if !ok {
		return
	}
	sess.setAudio(i, ref)
}

// CachedAudio returns the pre-synthesised audio for question i, if present.
// It never waits for or triggers synthesis.
func (o *Orchestrator) CachedAudio(id string, i int) (string, bool) {
	sess, ok := o.store.Get(id)
	if !ok {
		return "", false
	}
	ref, hit := sess.audioAt(i)
	o.metrics.RecordCacheLookup(context.Background(), hit)
	return ref, hit
}

// FeedbackReport returns every recorded feedback entry ordered by question
// index. Indices without feedback are omitted, so the report may be partial
// while grading is still running. Returns [ErrNotFound] for unknown sessions.
func (o *Orchestrator) FeedbackReport(id string) ([]IndexedFeedback, error) {
	sess, ok := o.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("interview: feedback report for %q: %w", id, ErrNotFound)
	}
	return sess.feedbackReport(), nil
}

// Progress returns how far the session has advanced.
func (o *Orchestrator) Progress(id string) (Progress, error) {
	sess, ok := o.store.Get(id)
	if !ok {
		return Progress{}, fmt.Errorf("interview: progress of %q: %w", id, ErrNotFound)
	}
	return sess.progress(), nil
}

// Question returns question i of the session.
func (o *Orchestrator) Question(id string, i int) (string, error) {
	sess, ok := o.store.Get(id)
	if !ok {
		return "", fmt.Errorf("interview: question %d of %q: %w", i, id, ErrNotFound)
	}
	q, ok := sess.Question(i)
	if !ok {
		return "", fmt.Errorf("interview: question %d of %q: index out of range: %w", i, id, ErrInvalidInput)
	}
	return q, nil
}

// Snapshot returns a copy of the session's full state.
func (o *Orchestrator) Snapshot(id string) (Snapshot, error) {
	sess, ok := o.store.Get(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("interview: snapshot of %q: %w", id, ErrNotFound)
	}
	return sess.snapshot(), nil
}

// Discard removes a session that could not be started. It reports whether
// the session existed.
func (o *Orchestrator) Discard(id string) bool {
	ok := o.store.Delete(id)
	if ok {
		o.metrics.ActiveSessions.Add(context.Background(), -1)
		slog.Info("interview session discarded", "session_id", id)
	}
	return ok
}

// EvictIdle removes sessions idle for longer than ttl and returns their IDs.
func (o *Orchestrator) EvictIdle(ttl time.Duration) []string {
	ids := o.store.EvictIdle(ttl)
	if len(ids) > 0 {
		o.metrics.RecordSessionsEvicted(context.Background(), len(ids))
		slog.Info("evicted idle interview sessions", "count", len(ids), "ttl", ttl)
	}
	return ids
}

func (o *Orchestrator) lookupForWrite(id string, i int, what string) (*Session, bool) {
	sess, ok := o.store.Get(id)
	if !ok {
		slog.Debug("dropping enrichment for unknown session", "session_id", id, "index", i, "kind", what)
		return nil, false
	}
	if !sess.validIndex(i) {
		slog.Warn("dropping enrichment for out-of-range index", "session_id", id, "index", i, "kind", what, "questions", sess.Len())
		return nil, false
	}
	return sess, true
}

// maybeReport fires the report hook once the session is complete and fully
// graded. Both the final answer and the final feedback call it; whichever
// lands last sees both conditions true.
func (o *Orchestrator) maybeReport(sess *Session) {
	if o.onReport == nil {
		return
	}
	if !sess.isCompleted() || sess.feedbackCount() < sess.Len() {
		return
	}
	if !sess.reported.CompareAndSwap(false, true) {
		return
	}
	o.onReport(sess.snapshot())
}
