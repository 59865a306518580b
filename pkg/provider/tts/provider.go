// Package tts defines the Provider interface for text-to-speech backends.
//
// Intervox speaks one interview question at a time, so providers work in batch
// mode: a complete text goes in, a complete encoded audio clip comes out.
// Streaming backends (for example the ElevenLabs WebSocket API) collect their
// chunks before returning.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/intervox/pkg/audio"
)

// Provider synthesises speech.
type Provider interface {
	// Synthesize converts text into an encoded audio clip using the given
	// voice. voice is provider-specific (a voice ID, speaker name or preset);
	// an empty voice selects the provider's default.
	//
	// Returns an error if synthesis fails, produces no audio, or ctx is
	// cancelled.
	Synthesize(ctx context.Context, text, voice string) (audio.Clip, error)
}

// Func adapts an ordinary function to the [Provider] interface.
type Func func(ctx context.Context, text, voice string) (audio.Clip, error)

// Synthesize calls f(ctx, text, voice).
func (f Func) Synthesize(ctx context.Context, text, voice string) (audio.Clip, error) {
	return f(ctx, text, voice)
}
