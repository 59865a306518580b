package speech

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/internal/transcript"
	"github.com/MrWong99/intervox/pkg/audio"
	"github.com/MrWong99/intervox/pkg/provider/stt"
)

// defaultKeywordBoost is the boost sent with every vocabulary hint.
const defaultKeywordBoost = 2.0

// TranscriberOption configures a [Transcriber].
type TranscriberOption func(*Transcriber)

// WithLanguage sets the recognition language. Empty lets the provider detect
// it.
func WithLanguage(lang string) TranscriberOption {
	return func(t *Transcriber) { t.language = lang }
}

// WithCorrector replaces the default phonetic corrector. A nil corrector
// disables correction.
func WithCorrector(c *transcript.Corrector) TranscriberOption {
	return func(t *Transcriber) { t.corrector = c }
}

// WithTranscriberMetrics records recognition latency to m.
func WithTranscriberMetrics(m *observe.Metrics) TranscriberOption {
	return func(t *Transcriber) { t.metrics = m }
}

// Transcriber turns recorded answers into corrected text.
type Transcriber struct {
	stt       stt.Provider
	language  string
	corrector *transcript.Corrector
	metrics   *observe.Metrics
}

// NewTranscriber returns a Transcriber backed by provider.
func NewTranscriber(provider stt.Provider, opts ...TranscriberOption) *Transcriber {
	t := &Transcriber{stt: provider, corrector: transcript.NewCorrector()}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	return t
}

// Transcribe recognises clip, boosting and then correcting the terms in
// vocabulary. It returns "" when the clip is empty, holds no speech, or the
// provider fails.
func (t *Transcriber) Transcribe(ctx context.Context, clip audio.Clip, vocabulary []string) string {
	if len(clip.Data) == 0 {
		return ""
	}
	log := observe.Logger(ctx)

	cfg := stt.Config{Language: t.language}
	for _, term := range vocabulary {
		cfg.Keywords = append(cfg.Keywords, stt.KeywordBoost{Keyword: term, Boost: defaultKeywordBoost})
	}

	start := time.Now()
	tr, err := t.stt.Transcribe(ctx, clip, cfg)
	t.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	switch {
	case errors.Is(err, stt.ErrNoSpeech):
		log.Info("no speech in answer")
		return ""
	case err != nil:
		log.Warn("transcription failed", "err", err)
		return ""
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" || t.corrector == nil || len(vocabulary) == 0 {
		return text
	}
	tr.Text = text
	res := t.corrector.Correct(tr, vocabulary)
	for _, c := range res.Corrections {
		log.Debug("transcript corrected", "original", c.Original, "corrected", c.Corrected, "confidence", c.Confidence)
	}
	return res.Text
}
