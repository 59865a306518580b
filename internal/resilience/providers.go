package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/intervox/pkg/audio"
	"github.com/MrWong99/intervox/pkg/provider/llm"
	"github.com/MrWong99/intervox/pkg/provider/stt"
	"github.com/MrWong99/intervox/pkg/provider/tts"
)

// The typed groups below embed a [FallbackGroup], so AddFallback, Names,
// Status and Available come with it.

var (
	_ llm.Provider = (*LLMFallback)(nil)
	_ stt.Provider = (*STTFallback)(nil)
	_ tts.Provider = (*TTSFallback)(nil)
)

func withKind(cfg FallbackConfig, kind string) FallbackConfig {
	if cfg.Kind == "" {
		cfg.Kind = kind
	}
	return cfg
}

// LLMFallback is an [llm.Provider] that fails over between LLM backends.
type LLMFallback struct {
	*FallbackGroup[llm.Provider]
}

// NewLLMFallback creates an [LLMFallback] with primary tried first.
func NewLLMFallback(primary llm.Provider, name string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{NewFallbackGroup(primary, name, withKind(cfg, "llm"))}
}

// Complete implements [llm.Provider].
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.FallbackGroup, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// STTFallback is an [stt.Provider] that fails over between recognisers.
// [stt.ErrNoSpeech] is an answer about the clip, so by default it is
// returned as is: no other backend is asked and no breaker counts it.
type STTFallback struct {
	*FallbackGroup[stt.Provider]
}

// NewSTTFallback creates an [STTFallback] with primary tried first.
func NewSTTFallback(primary stt.Provider, name string, cfg FallbackConfig) *STTFallback {
	cfg = withKind(cfg, "stt")
	if cfg.Permanent == nil {
		cfg.Permanent = func(err error) bool { return errors.Is(err, stt.ErrNoSpeech) }
	}
	return &STTFallback{NewFallbackGroup(primary, name, cfg)}
}

// Transcribe implements [stt.Provider].
func (f *STTFallback) Transcribe(ctx context.Context, clip audio.Clip, cfg stt.Config) (stt.Transcript, error) {
	return ExecuteWithResult(ctx, f.FallbackGroup, func(p stt.Provider) (stt.Transcript, error) {
		return p.Transcribe(ctx, clip, cfg)
	})
}

// TTSFallback is a [tts.Provider] that fails over between synthesisers.
// Voice IDs are backend specific; every backend receives the same voice and
// is expected to use its own default when it does not know it.
type TTSFallback struct {
	*FallbackGroup[tts.Provider]
}

// NewTTSFallback creates a [TTSFallback] with primary tried first.
func NewTTSFallback(primary tts.Provider, name string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{NewFallbackGroup(primary, name, withKind(cfg, "tts"))}
}

// Synthesize implements [tts.Provider].
func (f *TTSFallback) Synthesize(ctx context.Context, text, voice string) (audio.Clip, error) {
	return ExecuteWithResult(ctx, f.FallbackGroup, func(p tts.Provider) (audio.Clip, error) {
		return p.Synthesize(ctx, text, voice)
	})
}
