// Package postgres archives finished interviews in PostgreSQL.
//
// Each record becomes one row in interview_sessions, one row per question in
// interview_questions and one graded answer per question in
// interview_answers. Saving the same session again replaces its rows.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//	_ = store.Save(ctx, rec)
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/intervox/internal/archive"
)

const (
	defaultMaxRetries      = 5
	defaultInitialInterval = 200 * time.Millisecond
)

// Option configures a [Store].
type Option func(*Store)

// WithMaxRetries bounds the retries on connect and on transient save errors.
// Zero disables retrying.
func WithMaxRetries(n uint64) Option {
	return func(s *Store) { s.maxRetries = n }
}

// WithInitialInterval sets the first backoff delay.
func WithInitialInterval(d time.Duration) Option {
	return func(s *Store) { s.initialInterval = d }
}

// Store is a PostgreSQL-backed [archive.Store]. It is safe for concurrent
// use.
type Store struct {
	pool            *pgxpool.Pool
	maxRetries      uint64
	initialInterval time.Duration
}

// New connects to dsn, retrying with exponential backoff until the database
// answers a ping, and runs [Migrate].
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{maxRetries: defaultMaxRetries, initialInterval: defaultInitialInterval}
	for _, o := range opts {
		o(s)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres archive: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres archive: create pool: %w", err)
	}

	err = s.retry(ctx, "connect", func() error {
		if err := pool.Ping(ctx); err != nil {
			return classify(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres archive: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// Save writes rec in a single transaction, retrying transient failures.
func (s *Store) Save(ctx context.Context, rec archive.Record) error {
	err := s.retry(ctx, "save", func() error {
		return classify(s.save(ctx, rec))
	})
	if err != nil {
		return fmt.Errorf("postgres archive: save %s: %w", rec.SessionID, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, rec archive.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO interview_sessions (id, created_at, completed_at, archived_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET created_at = EXCLUDED.created_at,
		    completed_at = EXCLUDED.completed_at,
		    archived_at = EXCLUDED.archived_at`,
		rec.SessionID, rec.CreatedAt, nullTime(rec.CompletedAt), rec.ArchivedAt)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM interview_questions WHERE session_id = $1`, rec.SessionID); err != nil {
		return err
	}

	for _, it := range rec.Items {
		var questionID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO interview_questions (session_id, position, question)
			VALUES ($1, $2, $3)
			RETURNING id`,
			rec.SessionID, it.Index, it.Question).Scan(&questionID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO interview_answers
			    (question_id, answer_text, score, rating, feedback, is_satisfactory, graded)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			questionID, it.Answer, Score(it.Feedback.Rating), it.Feedback.Rating,
			it.Feedback.Text, it.Feedback.Satisfactory, it.Graded)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres archive: ping: %w", err)
	}
	return nil
}

// Close releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) retry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff(backoff.WithInitialInterval(s.initialInterval))
	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.maxRetries), ctx)
	return backoff.RetryNotify(fn, policy, func(err error, next time.Duration) {
		slog.Warn("postgres archive: retrying", "op", op, "err", err, "backoff", next)
	})
}

// classify marks errors that retrying cannot fix as permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && !transientCode(pgErr.Code) {
		return backoff.Permanent(err)
	}
	return err
}

// transientCode reports whether a SQLSTATE is worth retrying: connection
// exceptions, serialization failures, deadlocks and server shutdown.
func transientCode(code string) bool {
	switch {
	case len(code) >= 2 && code[:2] == "08":
		return true
	case code == "40001", code == "40P01", code == "57P01", code == "57P03":
		return true
	}
	return false
}

var scorePattern = regexp.MustCompile(`^\s*(\d{1,2})\s*/\s*10\s*$`)

// Score extracts the numeric score from a rating like "7/10". It returns nil
// for ratings without a score, such as "N/A".
func Score(rating string) *int {
	m := scorePattern.FindStringSubmatch(rating)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > 10 {
		return nil
	}
	return &n
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ archive.Store = (*Store)(nil)
