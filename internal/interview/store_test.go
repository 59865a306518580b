package interview

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

func TestStoreCreate_RejectsEmptyQuestions(t *testing.T) {
	s := NewStore()
	if _, err := s.Create(nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Create(nil) error = %v, want ErrInvalidInput", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

func TestStoreCreate_ShortHexIDs(t *testing.T) {
	s := NewStore()
	re := regexp.MustCompile(`^[0-9a-f]{8}$`)
	seen := map[string]bool{}
	for range 50 {
		sess, err := s.Create([]string{"q"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if !re.MatchString(sess.ID()) {
			t.Fatalf("id %q is not 8 hex characters", sess.ID())
		}
		if seen[sess.ID()] {
			t.Fatalf("duplicate id %q", sess.ID())
		}
		seen[sess.ID()] = true
	}
}

func TestStoreCreate_RetriesOnCollision(t *testing.T) {
	ids := []string{"aaaa0000", "aaaa0000", "bbbb1111"}
	n := 0
	s := NewStore(WithIDGenerator(func() string {
		id := ids[n]
		n++
		return id
	}))

	first, err := s.Create([]string{"q"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := s.Create([]string{"q"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.ID() != "aaaa0000" || second.ID() != "bbbb1111" {
		t.Fatalf("ids = %q, %q; want aaaa0000, bbbb1111", first.ID(), second.ID())
	}
}

func TestStoreCreate_CopiesQuestions(t *testing.T) {
	s := NewStore()
	qs := []string{"a", "b"}
	sess, err := s.Create(qs)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	qs[0] = "mutated"
	if q, _ := sess.Question(0); q != "a" {
		t.Fatalf("Question(0) = %q, want %q", q, "a")
	}
}

func TestStoreEvictIdle(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now))

	old, _ := s.Create([]string{"q"})
	clock.Advance(10 * time.Minute)
	fresh, _ := s.Create([]string{"q"})

	if got := s.EvictIdle(0); got != nil {
		t.Fatalf("EvictIdle(0) = %v, want nil", got)
	}

	evicted := s.EvictIdle(5 * time.Minute)
	if len(evicted) != 1 || evicted[0] != old.ID() {
		t.Fatalf("evicted = %v, want [%s]", evicted, old.ID())
	}
	if _, ok := s.Get(old.ID()); ok {
		t.Fatal("old session still present")
	}
	if _, ok := s.Get(fresh.ID()); !ok {
		t.Fatal("fresh session evicted")
	}
}

func TestStoreEvictIdle_ActivityKeepsSessionAlive(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now))
	sess, _ := s.Create([]string{"q1", "q2"})

	clock.Advance(4 * time.Minute)
	if _, _, err := sess.submit("a", clock.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	clock.Advance(4 * time.Minute)

	if got := s.EvictIdle(5 * time.Minute); len(got) != 0 {
		t.Fatalf("evicted active session: %v", got)
	}
}
