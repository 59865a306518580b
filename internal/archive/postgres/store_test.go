package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/intervox/internal/archive"
	"github.com/MrWong99/intervox/internal/interview"
)

func TestScore(t *testing.T) {
	tests := []struct {
		rating string
		want   int
		ok     bool
	}{
		{"7/10", 7, true},
		{" 10 / 10 ", 10, true},
		{"0/10", 0, true},
		{"N/A", 0, false},
		{"11/10", 0, false},
		{"7/5", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		got := Score(tc.rating)
		if (got != nil) != tc.ok {
			t.Errorf("Score(%q) = %v, want ok=%v", tc.rating, got, tc.ok)
			continue
		}
		if got != nil && *got != tc.want {
			t.Errorf("Score(%q) = %d, want %d", tc.rating, *got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	var perm *backoff.PermanentError
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"network", errors.New("dial tcp: connection refused"), false},
		{"connection exception", &pgconn.PgError{Code: "08006"}, false},
		{"serialization", fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40001"}), false},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, false},
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"syntax", &pgconn.PgError{Code: "42601"}, true},
		{"cancelled", context.Canceled, true},
		{"deadline", fmt.Errorf("ping: %w", context.DeadlineExceeded), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			if errors.As(got, &perm) != tc.permanent {
				t.Fatalf("classify(%v) permanent = %v, want %v", tc.err, !tc.permanent, tc.permanent)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("classify lost the original error")
			}
		})
	}
	if classify(nil) != nil {
		t.Fatal("classify(nil) != nil")
	}
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	s := &Store{maxRetries: 5, initialInterval: time.Millisecond}
	calls := 0
	err := s.retry(context.Background(), "test", func() error {
		calls++
		return classify(&pgconn.PgError{Code: "23505"})
	})
	if err == nil || calls != 1 {
		t.Fatalf("retry = %v after %d calls, want error after 1", err, calls)
	}

	calls = 0
	err = s.retry(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("retry = %v after %d calls, want nil after 3", err, calls)
	}
}

// testDSN returns the test database DSN from the environment, or skips the
// test if INTERVOX_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("INTERVOX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INTERVOX_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := New(ctx, testDSN(t), WithMaxRetries(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, stmt := range []string{
		"DELETE FROM interview_sessions WHERE id LIKE 'test-%'",
	} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("cleanup: %v", err)
		}
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Now().UTC().Truncate(time.Second)

	rec := archive.Record{
		SessionID:   "test-0001",
		CreatedAt:   created,
		CompletedAt: created.Add(time.Minute),
		ArchivedAt:  created.Add(2 * time.Minute),
		Items: []archive.Item{
			{Index: 0, Question: "Q1", Answer: "A1", Graded: true,
				Feedback: interview.Feedback{Text: "ok", Rating: "6/10", Satisfactory: true}},
			{Index: 1, Question: "Q2", Answer: "A2", Graded: true, Feedback: interview.DegradedFeedback()},
		},
	}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	var questions, scored int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*), count(a.score)
		FROM interview_questions q JOIN interview_answers a ON a.question_id = q.id
		WHERE q.session_id = $1`, rec.SessionID).Scan(&questions, &scored)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if questions != 2 || scored != 1 {
		t.Fatalf("questions = %d, scored = %d; want 2, 1", questions, scored)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
