package interview

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// idLength is the number of hex characters kept from a random UUID.
const idLength = 8

// maxIDAttempts bounds collision retries when generating session IDs.
const maxIDAttempts = 16

// Store owns every in-flight [Session], keyed by ID.
//
// The map lock is held only for lookups, inserts and removals; it is never
// held while per-session work runs. All methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	now   func() time.Time
	newID func() string
}

// StoreOption configures a [Store].
type StoreOption func(*Store)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides session ID generation. Intended for tests.
func WithIDGenerator(gen func() string) StoreOption {
	return func(s *Store) { s.newID = gen }
}

// NewStore returns an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
		newID:    shortUUID,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func shortUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}

// Create registers a new session over questions and returns it.
// Returns [ErrInvalidInput] when questions is empty.
func (s *Store) Create(questions []string) (*Session, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("interview: create session: no questions: %w", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for range maxIDAttempts {
		id := s.newID()
		if _, taken := s.sessions[id]; taken {
			continue
		}
		sess := newSession(id, questions, s.now())
		s.sessions[id] = sess
		return sess, nil
	}
	return nil, fmt.Errorf("interview: create session: could not allocate a unique id after %d attempts", maxIDAttempts)
}

// Get returns the session with the given ID.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	return sess, ok
}

// Len returns the number of sessions held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Delete removes the session with the given ID. It reports whether a session
// was removed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// EvictIdle removes every session whose last candidate activity is older than
// ttl and returns their IDs. A non-positive ttl evicts nothing.
//
// Candidates are collected under the read lock and re-checked under the write
// lock before removal. Lock order is always map, then session.
func (s *Store) EvictIdle(ttl time.Duration) []string {
	if ttl <= 0 {
		return nil
	}
	cutoff := s.now().Add(-ttl)

	s.mu.RLock()
	candidates := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		candidates = append(candidates, sess)
	}
	s.mu.RUnlock()

	var evicted []string
	for _, sess := range candidates {
		if !sess.idleSince().Before(cutoff) {
			continue
		}
		s.mu.Lock()
		if cur, ok := s.sessions[sess.id]; ok && cur == sess && sess.idleSince().Before(cutoff) {
			delete(s.sessions, sess.id)
			evicted = append(evicted, sess.id)
		}
		s.mu.Unlock()
	}
	return evicted
}
