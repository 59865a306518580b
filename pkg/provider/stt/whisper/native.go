// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/intervox/pkg/audio"
	"github.com/MrWong99/intervox/pkg/provider/stt"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// ErrUnsupportedFormat is returned by NativeProvider for clips that are not
// WAV. The native bindings take raw samples and perform no decoding.
var ErrUnsupportedFormat = errors.New("whisper: native provider only accepts WAV audio")

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO). The model is loaded once at startup and shared across requests;
// each request gets its own whisper context.
type NativeProvider struct {
	model    whisperlib.Model
	language string
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// silenceRMS is the amplitude below which a clip is treated as silence and
// never reaches the model.
const silenceRMS = 50.0

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements stt.Provider. The clip is downmixed and resampled to
// 16 kHz mono before inference.
func (p *NativeProvider) Transcribe(ctx context.Context, clip audio.Clip, cfg stt.Config) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	if clip.Format != audio.FormatWAV {
		return stt.Transcript{}, ErrUnsupportedFormat
	}
	pcm, info, err := audio.DecodeWAV(clip.Data)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	if info.BitsPerSample != 16 {
		return stt.Transcript{}, fmt.Errorf("whisper: unsupported bit depth %d", info.BitsPerSample)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	mono := audio.ToMono16k(pcm, info.SampleRate, info.Channels)
	if audio.RMS(mono) < silenceRMS {
		return stt.Transcript{}, stt.ErrNoSpeech
	}
	samples := audio.PCMToFloat32(mono)

	text, end, err := p.infer(samples, lang)
	if err != nil {
		return stt.Transcript{}, err
	}
	if text == "" {
		return stt.Transcript{}, stt.ErrNoSpeech
	}
	return stt.Transcript{Text: text, Language: lang, Duration: end}, nil
}

// infer runs whisper.cpp on 16 kHz mono samples and returns the joined
// segment text and the end offset of the last segment.
func (p *NativeProvider) infer(samples []float32, lang string) (string, time.Duration, error) {
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", 0, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", 0, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		parts []string
		end   time.Duration
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("whisper: read segment: %w", err)
		}
		end = segment.End
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), end, nil
}
