package interview

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Session is a single candidate's pass through an ordered question list.
//
// Progress state (index, answers, completion) and enrichment state (cached
// audio, feedback) are guarded by separate locks so that background writers
// never contend with the candidate-facing path. No method holds both locks at
// once.
//
// Sessions are owned by a [Store] and mutated only through an [Orchestrator].
type Session struct {
	id        string
	questions []string
	createdAt time.Time

	mu           sync.Mutex
	index        int
	answers      []string
	completedAt  time.Time
	lastActivity time.Time

	enrichMu sync.RWMutex
	audio    map[int]string
	feedback map[int]Feedback

	// reported is set once the completion hook has fired.
	reported atomic.Bool
}

func newSession(id string, questions []string, now time.Time) *Session {
	return &Session{
		id:           id,
		questions:    slices.Clone(questions),
		createdAt:    now,
		lastActivity: now,
		answers:      make([]string, 0, len(questions)),
		audio:        make(map[int]string),
		feedback:     make(map[int]Feedback),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Len returns the number of questions.
func (s *Session) Len() int { return len(s.questions) }

// Question returns the question at index i.
func (s *Session) Question(i int) (string, bool) {
	if i < 0 || i >= len(s.questions) {
		return "", false
	}
	return s.questions[i], true
}

// Questions returns a copy of the question list.
func (s *Session) Questions() []string { return slices.Clone(s.questions) }

// validIndex reports whether i addresses a question of this session.
func (s *Session) validIndex(i int) bool {
	return i >= 0 && i < len(s.questions)
}

// ── Progress state ─────────────────────────────────────────────────────────

func (s *Session) current() (int, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.questions) {
		return s.index, "", false
	}
	return s.index, s.questions[s.index], true
}

// submit appends answer and advances the index. It returns the index that was
// answered and whether the session is now complete.
func (s *Session) submit(answer string, now time.Time) (idx int, completed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.questions) {
		return s.index, true, fmt.Errorf("interview: submit to %s: %w", s.id, ErrAlreadyCompleted)
	}
	idx = s.index
	s.answers = append(s.answers, answer)
	s.index++
	s.lastActivity = now
	completed = s.index == len(s.questions)
	if completed {
		s.completedAt = now
	}
	return idx, completed, nil
}

func (s *Session) progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Progress{
		Index:     s.index,
		Total:     len(s.questions),
		Completed: s.index == len(s.questions),
	}
}

func (s *Session) isCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index == len(s.questions)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// ── Enrichment state ───────────────────────────────────────────────────────

func (s *Session) setAudio(i int, ref string) {
	s.enrichMu.Lock()
	s.audio[i] = ref
	s.enrichMu.Unlock()
}

func (s *Session) audioAt(i int) (string, bool) {
	s.enrichMu.RLock()
	defer s.enrichMu.RUnlock()
	ref, ok := s.audio[i]
	return ref, ok
}

// setFeedback upserts fb and returns the number of indices with feedback.
func (s *Session) setFeedback(i int, fb Feedback) int {
	s.enrichMu.Lock()
	defer s.enrichMu.Unlock()
	s.feedback[i] = fb
	return len(s.feedback)
}

func (s *Session) feedbackCount() int {
	s.enrichMu.RLock()
	defer s.enrichMu.RUnlock()
	return len(s.feedback)
}

func (s *Session) feedbackReport() []IndexedFeedback {
	s.enrichMu.RLock()
	out := make([]IndexedFeedback, 0, len(s.feedback))
	for i, fb := range s.feedback {
		out = append(out, IndexedFeedback{Index: i, Feedback: fb})
	}
	s.enrichMu.RUnlock()

	slices.SortFunc(out, func(a, b IndexedFeedback) int { return a.Index - b.Index })
	return out
}

// snapshot copies the full session state. The two locks are taken one after
// the other, so a snapshot of a session still receiving writes may mix
// progress and enrichment from slightly different instants.
func (s *Session) snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		ID:          s.id,
		Questions:   slices.Clone(s.questions),
		Answers:     slices.Clone(s.answers),
		Index:       s.index,
		Completed:   s.index == len(s.questions),
		CreatedAt:   s.createdAt,
		CompletedAt: s.completedAt,
	}
	s.mu.Unlock()

	s.enrichMu.RLock()
	snap.Audio = make(map[int]string, len(s.audio))
	for i, ref := range s.audio {
		snap.Audio[i] = ref
	}
	s.enrichMu.RUnlock()

	snap.Feedback = s.feedbackReport()
	return snap
}

// Progress describes how far a session has advanced.
type Progress struct {
	Index     int  `json:"index"`
	Total     int  `json:"total"`
	Completed bool `json:"completed"`
}

// Snapshot is an immutable copy of a session's state.
type Snapshot struct {
	ID          string            `json:"session_id"`
	Questions   []string          `json:"questions"`
	Answers     []string          `json:"answers"`
	Index       int               `json:"current_index"`
	Completed   bool              `json:"completed"`
	Audio       map[int]string    `json:"audio,omitempty"`
	Feedback    []IndexedFeedback `json:"feedback"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt time.Time         `json:"completed_at,omitzero"`
}

// FeedbackFor returns the feedback recorded for index i.
func (s Snapshot) FeedbackFor(i int) (Feedback, bool) {
	for _, f := range s.Feedback {
		if f.Index == i {
			return f.Feedback, true
		}
	}
	return Feedback{}, false
}
