package resume

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/intervox/internal/llmjson"
	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/pkg/provider/llm"
)

const extractSystemPrompt = "You are an ATS resume parser. Return ONLY valid JSON. No markdown. No explanation."

const extractPromptTemplate = `Extract ONLY the following sections from the resume:
- Skills
- Experience
- Education

Return STRICTLY valid JSON. Do NOT include markdown, comments, or explanations.

Output format MUST be exactly:

{
  "skills": ["skill1", "skill2"],
  "experience": [{"title": "NA", "company": "NA", "description": "NA"}],
  "education": [{"degree": "NA", "institution": "NA"}]
}

Rules:
- Extract ALL experience entries (do NOT merge them)
- Extract ALL education entries
- Skills must be deduplicated
- Preserve original wording
- If a value is missing, use "NA"
- Do NOT add extra fields

Resume:
%s`

const repairSystemPrompt = "You fix invalid JSON."

const repairPromptTemplate = `Fix the following JSON so that it becomes STRICTLY valid JSON.
Escape quotes correctly, remove trailing commas, and output no markdown and no explanation.

Broken JSON:
%s`

// defaultMaxChars bounds how much résumé text is sent to the model.
const defaultMaxChars = 24000

// Extractor builds a [Profile] from résumé text with an LLM.
type Extractor struct {
	llm      llm.Provider
	maxChars int
	metrics  *observe.Metrics
}

// ExtractorOption configures an [Extractor].
type ExtractorOption func(*Extractor)

// WithMaxChars truncates résumé text to n runes before prompting.
func WithMaxChars(n int) ExtractorOption {
	return func(e *Extractor) { e.maxChars = n }
}

// WithMetrics records LLM latency to m.
func WithMetrics(m *observe.Metrics) ExtractorOption {
	return func(e *Extractor) { e.metrics = m }
}

// NewExtractor returns an Extractor backed by provider.
func NewExtractor(provider llm.Provider, opts ...ExtractorOption) *Extractor {
	e := &Extractor{llm: provider, maxChars: defaultMaxChars}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Extract asks the model for a JSON profile of text. If the reply does not
// parse, the model is asked once to repair it; a second failure is returned.
func (e *Extractor) Extract(ctx context.Context, text string) (Profile, error) {
	if r := []rune(text); e.maxChars > 0 && len(r) > e.maxChars {
		text = string(r[:e.maxChars])
	}

	raw, err := e.complete(ctx, extractSystemPrompt, fmt.Sprintf(extractPromptTemplate, text), 0.1)
	if err != nil {
		return Profile{}, fmt.Errorf("resume: extract profile: %w", err)
	}

	var p Profile
	parseErr := llmjson.Parse(raw, &p)
	if parseErr != nil {
		observe.Logger(ctx).Warn("profile reply is not valid JSON, asking for repair", "err", parseErr)
		fixed, err := e.complete(ctx, repairSystemPrompt, fmt.Sprintf(repairPromptTemplate, raw), 0)
		if err != nil {
			return Profile{}, fmt.Errorf("resume: repair profile json: %w", err)
		}
		p = Profile{}
		if err := llmjson.Parse(fixed, &p); err != nil {
			return Profile{}, fmt.Errorf("resume: parse repaired profile: %w", err)
		}
	}

	p = p.normalize()
	slog.Debug("extracted resume profile",
		"skills", len(p.Skills), "experience", len(p.Experience), "education", len(p.Education))
	return p, nil
}

func (e *Extractor) complete(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	start := time.Now()
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{llm.UserMessage(prompt)},
		Temperature:  temperature,
		MaxTokens:    1200,
		JSON:         true,
	})
	e.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
