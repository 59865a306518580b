package interview

import (
	"context"
	"time"
)

// DegradedFeedbackText is the feedback text recorded when grading fails.
const DegradedFeedbackText = "Could not evaluate answer due to system error."

// Feedback is the grading result for a single answer.
type Feedback struct {
	// Text is the human-readable critique.
	Text string `json:"feedback"`

	// Rating is a free-form score, conventionally "X/10". "N/A" when grading
	// failed.
	Rating string `json:"rating"`

	// Satisfactory reports whether the answer was judged acceptable.
	Satisfactory bool `json:"is_satisfactory"`
}

// DegradedFeedback returns the placeholder recorded when the grader cannot
// produce a real evaluation.
func DegradedFeedback() Feedback {
	return Feedback{Text: DegradedFeedbackText, Rating: "N/A", Satisfactory: false}
}

// IsDegraded reports whether f is the placeholder returned by
// [DegradedFeedback].
func (f Feedback) IsDegraded() bool {
	return f == DegradedFeedback()
}

// IndexedFeedback pairs a [Feedback] with the question index it belongs to.
type IndexedFeedback struct {
	Index int `json:"index"`
	Feedback
}

// SpeechResult is the outcome of a synthesis call. A result with Valid false
// carries no usable reference and must not be cached.
type SpeechResult struct {
	// Ref is the public reference to the audio, typically a URL path.
	Ref string

	// Valid reports whether Ref points at usable audio.
	Valid bool

	// Duration is how long synthesis took.
	Duration time.Duration
}

// Synthesizer turns question text into playable audio. Implementations never
// return errors; failures are reported as a [SpeechResult] with Valid false.
//
// hint is a stable, filesystem-safe stem the implementation may use to name
// the output (for example "q_ab12cd34_3").
type Synthesizer interface {
	Synthesize(ctx context.Context, text, hint string) SpeechResult
}

// Grader evaluates an answer to a question. Implementations never fail; on any
// error they return [DegradedFeedback].
type Grader interface {
	Grade(ctx context.Context, question, answer string) Feedback
}

// SynthesizerFunc adapts an ordinary function to the [Synthesizer] interface.
type SynthesizerFunc func(ctx context.Context, text, hint string) SpeechResult

// Synthesize calls f(ctx, text, hint).
func (f SynthesizerFunc) Synthesize(ctx context.Context, text, hint string) SpeechResult {
	return f(ctx, text, hint)
}

// GraderFunc adapts an ordinary function to the [Grader] interface.
type GraderFunc func(ctx context.Context, question, answer string) Feedback

// Grade calls f(ctx, question, answer).
func (f GraderFunc) Grade(ctx context.Context, question, answer string) Feedback {
	return f(ctx, question, answer)
}
