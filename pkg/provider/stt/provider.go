// Package stt defines the Provider interface for Speech-to-Text backends.
//
// Intervox transcribes one recorded answer at a time, so providers work in
// batch mode: a complete encoded clip goes in, a final Transcript comes out.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/intervox/pkg/audio"
)

// ErrNoSpeech is returned when the provider recognised no words in the clip.
var ErrNoSpeech = errors.New("stt: no speech recognised")

// Config carries per-request recognition hints.
type Config struct {
	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider auto-detect the language, if supported.
	Language string

	// Keywords is a list of vocabulary hints that increase recognition
	// probability for uncommon words such as library names from the candidate's
	// resume. Providers that do not support hints ignore them.
	Keywords []KeywordBoost
}

// KeywordBoost represents a keyword to boost in STT recognition.
type KeywordBoost struct {
	// Keyword is the text to boost (e.g., "Kubernetes").
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}

// Transcript represents a final speech-to-text result.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the
	// provider does not report confidence.
	Confidence float64

	// Words contains per-word detail when available.
	Words []WordDetail

	// Language is the detected or requested language, when reported.
	Language string

	// Duration is the length of the recognised audio, when reported.
	Duration time.Duration
}

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognises the speech in clip. Returns ErrNoSpeech (possibly
	// wrapped) when the clip is decodable but contains no words, and another
	// error if the provider fails or ctx is cancelled.
	Transcribe(ctx context.Context, clip audio.Clip, cfg Config) (Transcript, error)
}

// Func adapts an ordinary function to the [Provider] interface.
type Func func(ctx context.Context, clip audio.Clip, cfg Config) (Transcript, error)

// Transcribe calls f(ctx, clip, cfg).
func (f Func) Transcribe(ctx context.Context, clip audio.Clip, cfg Config) (Transcript, error) {
	return f(ctx, clip, cfg)
}
