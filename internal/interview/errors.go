package interview

import "errors"

// Sentinel errors returned by [Orchestrator] and [Store]. Callers should test
// for them with [errors.Is]; returned errors may wrap them with context.
var (
	// ErrInvalidInput is returned when a session is created without questions.
	ErrInvalidInput = errors.New("interview: invalid input")

	// ErrNotFound is returned for unknown session IDs. CurrentQuestion also
	// returns it for completed sessions, which have no current question.
	ErrNotFound = errors.New("interview: session not found")

	// ErrAlreadyCompleted is returned when an answer is submitted to a session
	// that has already answered every question.
	ErrAlreadyCompleted = errors.New("interview: session already completed")
)
