// Package speech adapts the TTS and STT providers to the interview core.
//
// [Speaker] implements [interview.Synthesizer]: it synthesises a question,
// stores the clip under the audio directory and hands back the public URL.
// [Transcriber] turns a recorded answer into text and fixes technical terms
// against the candidate's vocabulary. Neither returns errors across the
// boundary; failures are logged and reported as an invalid result or an
// empty string.
package speech

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/intervox/internal/interview"
	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/pkg/provider/tts"
)

// DefaultURLPrefix is the path under which synthesised audio is served.
const DefaultURLPrefix = "/storage/audio"

// SpeakerOption configures a [Speaker].
type SpeakerOption func(*Speaker)

// WithVoice selects the provider voice. Empty uses the provider default.
func WithVoice(voice string) SpeakerOption {
	return func(s *Speaker) { s.voice = voice }
}

// WithURLPrefix sets the URL path prepended to stored file names.
func WithURLPrefix(prefix string) SpeakerOption {
	return func(s *Speaker) { s.urlPrefix = prefix }
}

// WithSpeakerMetrics records synthesis latency to m.
func WithSpeakerMetrics(m *observe.Metrics) SpeakerOption {
	return func(s *Speaker) { s.metrics = m }
}

// Speaker synthesises questions to files in a directory. It is safe for
// concurrent use as long as hints are distinct.
type Speaker struct {
	tts       tts.Provider
	dir       string
	voice     string
	urlPrefix string
	metrics   *observe.Metrics
}

// NewSpeaker returns a Speaker writing into dir. The directory is created on
// first use.
func NewSpeaker(provider tts.Provider, dir string, opts ...SpeakerOption) *Speaker {
	s := &Speaker{tts: provider, dir: dir, urlPrefix: DefaultURLPrefix}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Synthesize implements [interview.Synthesizer]. The clip is written to
// <dir>/<hint>_tts.<ext> and the result references <prefix>/<file>.
func (s *Speaker) Synthesize(ctx context.Context, text, hint string) interview.SpeechResult {
	start := time.Now()
	ref, err := s.synthesize(ctx, text, hint)
	elapsed := time.Since(start)
	s.metrics.TTSDuration.Record(ctx, elapsed.Seconds())
	if err != nil {
		observe.Logger(ctx).Warn("speech synthesis failed", "hint", hint, "err", err)
		return interview.SpeechResult{Duration: elapsed}
	}
	return interview.SpeechResult{Ref: ref, Valid: true, Duration: elapsed}
}

func (s *Speaker) synthesize(ctx context.Context, text, hint string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("speech: empty text")
	}
	if hint == "" || hint != filepath.Base(hint) {
		return "", fmt.Errorf("speech: invalid file hint %q", hint)
	}
	clip, err := s.tts.Synthesize(ctx, text, s.voice)
	if err != nil {
		return "", fmt.Errorf("speech: synthesize: %w", err)
	}
	if len(clip.Data) == 0 {
		return "", fmt.Errorf("speech: provider returned no audio")
	}

	name := fmt.Sprintf("%s_tts.%s", hint, clip.Ext())
	if err := writeFile(filepath.Join(s.dir, name), clip.Data); err != nil {
		return "", err
	}
	return path.Join(s.urlPrefix, name), nil
}

// writeFile writes data atomically so a concurrent reader never sees a
// partial clip.
func writeFile(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("speech: create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(name), ".tmp-*")
	if err != nil {
		return fmt.Errorf("speech: create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("speech: write %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("speech: close %q: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("speech: chmod %q: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("speech: rename %q: %w", name, err)
	}
	return nil
}

var _ interview.Synthesizer = (*Speaker)(nil)
