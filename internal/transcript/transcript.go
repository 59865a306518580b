// Package transcript fixes speech-to-text errors in the technical vocabulary
// of an interview answer.
//
// Recognisers are good at everyday speech and poor at proper nouns and
// jargon. The [Corrector] aligns spans of a transcript with the candidate's
// own vocabulary (skills and employers from the résumé) using a
// [PhoneticMatcher], so "I deployed it on cooper netties with postgres sql"
// becomes "I deployed it on Kubernetes with PostgreSQL" before grading.
//
// Each [Correction] records the substitution and its confidence so callers
// can log or audit what changed.
package transcript

import (
	"github.com/MrWong99/intervox/pkg/provider/stt"
)

// Correction captures a single substitution.
type Correction struct {
	// Original is the span as produced by the STT provider, without
	// surrounding punctuation.
	Original string

	// Corrected is the vocabulary term that replaced it.
	Corrected string

	// Confidence is the matcher's similarity score (0.0-1.0).
	Confidence float64
}

// Result pairs the raw transcript with the corrected text.
type Result struct {
	// Original is the transcript as received from the STT provider.
	Original stt.Transcript

	// Text is the transcript with all substitutions applied.
	Text string

	// Corrections lists substitutions in transcript order. Empty when the
	// text was left unchanged.
	Corrections []Correction
}

// PhoneticMatcher resolves a word or phrase to a vocabulary term by
// pronunciation similarity.
//
// When matched is false, corrected must equal word and confidence must be 0.
// Implementations must be safe for concurrent use.
type PhoneticMatcher interface {
	Match(word string, terms []string) (corrected string, confidence float64, matched bool)
}
