package config

import (
	"fmt"
	"time"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// needs a restart and is reported in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	QuestionCountChanged bool
	NewQuestionCount     int

	UnintelligibleChanged   bool
	NewUnintelligibleAnswer string

	IdleTTLChanged bool
	NewIdleTTL     time.Duration

	// RestartRequired lists the top-level sections whose changes are not
	// applied until the process restarts.
	RestartRequired []string
}

// Changed reports whether any hot-reloadable value differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.QuestionCountChanged || d.UnintelligibleChanged || d.IdleTTLChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Interview.QuestionCount != new.Interview.QuestionCount {
		d.QuestionCountChanged = true
		d.NewQuestionCount = new.Interview.QuestionCount
	}
	if old.Interview.UnintelligibleAnswer != new.Interview.UnintelligibleAnswer {
		d.UnintelligibleChanged = true
		d.NewUnintelligibleAnswer = new.Interview.UnintelligibleAnswer
	}
	if old.Interview.IdleTTL != new.Interview.IdleTTL {
		d.IdleTTLChanged = true
		d.NewIdleTTL = new.Interview.IdleTTL
	}

	if !serverEqual(old.Server, new.Server) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if !interviewRestartEqual(old.Interview, new.Interview) {
		d.RestartRequired = append(d.RestartRequired, "interview")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	if old.Archive != new.Archive {
		d.RestartRequired = append(d.RestartRequired, "archive")
	}
	if old.Observe != new.Observe {
		d.RestartRequired = append(d.RestartRequired, "observe")
	}
	return d
}

// serverEqual ignores the log level, which is hot-reloadable.
func serverEqual(a, b ServerConfig) bool {
	if a.ListenAddr != b.ListenAddr || a.MaxUploadBytes != b.MaxUploadBytes {
		return false
	}
	if len(a.CORSOrigins) != len(b.CORSOrigins) {
		return false
	}
	for i := range a.CORSOrigins {
		if a.CORSOrigins[i] != b.CORSOrigins[i] {
			return false
		}
	}
	switch {
	case a.TLS == nil && b.TLS == nil:
		return true
	case a.TLS == nil || b.TLS == nil:
		return false
	default:
		return *a.TLS == *b.TLS
	}
}

func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.LLM, b.LLM) && entryEqual(a.STT, b.STT) && entryEqual(a.TTS, b.TTS) &&
		entriesEqual(a.LLMFallbacks, b.LLMFallbacks) &&
		entriesEqual(a.STTFallbacks, b.STTFallbacks) &&
		entriesEqual(a.TTSFallbacks, b.TTSFallbacks)
}

func entriesEqual(a, b []ProviderEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !entryEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// entryEqual compares the fixed fields and only the key set of Options.
func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, v := range a.Options {
		w, ok := b.Options[k]
		if !ok || fmtValue(v) != fmtValue(w) {
			return false
		}
	}
	return true
}

// interviewRestartEqual ignores the hot-reloadable interview fields.
func interviewRestartEqual(a, b InterviewConfig) bool {
	a.QuestionCount, b.QuestionCount = 0, 0
	a.UnintelligibleAnswer, b.UnintelligibleAnswer = "", ""
	a.IdleTTL, b.IdleTTL = 0, 0
	return a == b
}

func fmtValue(v any) string { return fmt.Sprint(v) }
