package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram", "whisper", "whisper-native", "openai"},
	"tts": {"elevenlabs", "coqui", "openai"},
}

// maxQuestionCount bounds interview.question_count.
const maxQuestionCount = 50

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [Default] and validates
// the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive, got %d", cfg.Server.MaxUploadBytes))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	errs = append(errs, validateFallbacks("llm", cfg.Providers.LLM, cfg.Providers.LLMFallbacks)...)
	errs = append(errs, validateFallbacks("stt", cfg.Providers.STT, cfg.Providers.STTFallbacks)...)
	errs = append(errs, validateFallbacks("tts", cfg.Providers.TTS, cfg.Providers.TTSFallbacks)...)

	// Interview
	iv := cfg.Interview
	if iv.QuestionCount < 1 || iv.QuestionCount > maxQuestionCount {
		errs = append(errs, fmt.Errorf("interview.question_count %d is out of range [1, %d]", iv.QuestionCount, maxQuestionCount))
	}
	if iv.PrefetchWorkers < 1 {
		errs = append(errs, fmt.Errorf("interview.prefetch_workers must be at least 1, got %d", iv.PrefetchWorkers))
	}
	if iv.GradingWorkers < 1 {
		errs = append(errs, fmt.Errorf("interview.grading_workers must be at least 1, got %d", iv.GradingWorkers))
	}
	if iv.JobTimeout <= 0 {
		errs = append(errs, fmt.Errorf("interview.job_timeout must be positive, got %s", iv.JobTimeout))
	}
	if iv.IdleTTL < 0 {
		errs = append(errs, fmt.Errorf("interview.idle_ttl must not be negative, got %s", iv.IdleTTL))
	}
	if iv.IdleTTL > 0 && iv.EvictionInterval <= 0 {
		errs = append(errs, errors.New("interview.eviction_interval must be positive when idle_ttl is set"))
	}
	if strings.TrimSpace(iv.UnintelligibleAnswer) == "" {
		errs = append(errs, errors.New("interview.unintelligible_answer must not be empty"))
	}

	// Storage
	if cfg.Storage.AudioDir == "" {
		errs = append(errs, errors.New("storage.audio_dir is required"))
	}
	if cfg.Storage.AnswersDir == "" {
		errs = append(errs, errors.New("storage.answers_dir is required"))
	}
	if !strings.HasPrefix(cfg.Storage.AudioURLPrefix, "/") {
		errs = append(errs, fmt.Errorf("storage.audio_url_prefix %q must start with /", cfg.Storage.AudioURLPrefix))
	}

	// Observe
	if p := cfg.Observe.MetricsPath; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("observe.metrics_path %q must start with /", p))
	}

	// Provider availability warnings
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; résumé parsing, question generation and grading will fail")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; every answer will be recorded as unintelligible")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; interviews cannot be started")
	}
	if cfg.Archive.PostgresDSN == "" && cfg.Archive.JSONLPath == "" {
		slog.Debug("no archive configured; finished interviews are kept in memory only")
	}

	return errors.Join(errs...)
}

// validateFallbacks checks a fallback list: every entry needs a name, and a
// fallback list without a primary is a mistake.
func validateFallbacks(kind string, primary ProviderEntry, fallbacks []ProviderEntry) []error {
	var errs []error
	if len(fallbacks) > 0 && primary.Name == "" {
		errs = append(errs, fmt.Errorf("providers.%s_fallbacks is set but providers.%s is not configured", kind, kind))
	}
	for i, fb := range fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s_fallbacks[%d].name is required", kind, i))
			continue
		}
		validateProviderName(kind, fb.Name)
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
