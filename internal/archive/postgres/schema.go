package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS interview_sessions (
    id           TEXT        PRIMARY KEY,
    created_at   TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ,
    archived_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_interview_sessions_completed_at
    ON interview_sessions (completed_at);
`

const ddlQuestions = `
CREATE TABLE IF NOT EXISTS interview_questions (
    id         BIGSERIAL PRIMARY KEY,
    session_id TEXT      NOT NULL REFERENCES interview_sessions (id) ON DELETE CASCADE,
    position   INTEGER   NOT NULL,
    question   TEXT      NOT NULL,
    UNIQUE (session_id, position)
);
`

const ddlAnswers = `
CREATE TABLE IF NOT EXISTS interview_answers (
    question_id     BIGINT  PRIMARY KEY REFERENCES interview_questions (id) ON DELETE CASCADE,
    answer_text     TEXT    NOT NULL DEFAULT '',
    score           INTEGER,
    rating          TEXT    NOT NULL DEFAULT '',
    feedback        TEXT    NOT NULL DEFAULT '',
    is_satisfactory BOOLEAN NOT NULL DEFAULT false,
    graded          BOOLEAN NOT NULL DEFAULT false
);
`

// Migrate creates the archive tables if they do not exist. It is idempotent
// and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlSessions, ddlQuestions, ddlAnswers} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres archive: migrate: %w", err)
		}
	}
	return nil
}
