// Package archive exports finished interviews to durable storage.
//
// Archives are write-only: nothing is ever read back into the live session
// store. A [Record] is built from an [interview.Snapshot] once every answer
// has been graded and handed to a [Store]. [FileStore] appends JSON lines to a
// local file; the postgres sub-package writes relational rows; [Multi] fans
// out to several stores.
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/intervox/internal/interview"
)

// Record is a finished interview as written to an archive.
type Record struct {
	SessionID   string    `json:"session_id"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
	ArchivedAt  time.Time `json:"archived_at"`
	Items       []Item    `json:"items"`
}

// Item is one question of an archived interview with its answer and grade.
type Item struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
	Answer   string `json:"answer"`

	// Feedback is the zero value when the answer was never graded.
	Feedback interview.Feedback `json:"grade"`
	Graded   bool               `json:"graded"`
}

// Store persists archive records. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save writes rec. Saving the same session twice replaces or duplicates
	// the earlier record, depending on the backend.
	Save(ctx context.Context, rec Record) error

	// Ping reports whether the store can accept writes.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// FromSnapshot builds a Record from snap. Unanswered questions are included
// with an empty answer.
func FromSnapshot(snap interview.Snapshot, now time.Time) Record {
	rec := Record{
		SessionID:   snap.ID,
		CreatedAt:   snap.CreatedAt,
		CompletedAt: snap.CompletedAt,
		ArchivedAt:  now.UTC(),
		Items:       make([]Item, len(snap.Questions)),
	}
	for i, q := range snap.Questions {
		item := Item{Index: i, Question: q}
		if i < len(snap.Answers) {
			item.Answer = snap.Answers[i]
		}
		item.Feedback, item.Graded = snap.FeedbackFor(i)
		rec.Items[i] = item
	}
	return rec
}

// Multi writes to every store in order. An empty Multi discards records.
type Multi []Store

// Save calls Save on every store and joins the errors.
func (m Multi) Save(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ping fails if any store fails.
func (m Multi) Ping(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Ping(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every store.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Store = Multi(nil)
