// Package grading evaluates interview answers with an LLM.
package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/intervox/internal/interview"
	"github.com/MrWong99/intervox/internal/llmjson"
	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/pkg/provider/llm"
)

const systemPrompt = "You are a strict technical evaluator. Output only JSON."

const promptTemplate = `You are an expert technical interviewer.

Question: %q
Candidate's Answer: %q

Evaluate the answer.
1. Is it correct?
2. Specific feedback on what was good or missing.
3. Rating (1-10).

Output strictly in this JSON format:
{
  "feedback": "Your feedback here...",
  "rating": "X/10",
  "is_satisfactory": true
}`

// reply is the JSON object the model is asked for. Rating and
// is_satisfactory are decoded leniently: models return 7, "7", "7/10",
// true and "true" interchangeably.
type reply struct {
	Feedback     string          `json:"feedback"`
	Rating       json.RawMessage `json:"rating"`
	Satisfactory json.RawMessage `json:"is_satisfactory"`
}

var errEmptyFeedback = errors.New("grading: empty feedback")

// LLMGrader implements [interview.Grader] with an LLM.
type LLMGrader struct {
	llm     llm.Provider
	metrics *observe.Metrics
}

// Option configures an [LLMGrader].
type Option func(*LLMGrader)

// WithMetrics records LLM latency to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *LLMGrader) { g.metrics = m }
}

// NewLLMGrader returns a grader backed by provider.
func NewLLMGrader(provider llm.Provider, opts ...Option) *LLMGrader {
	g := &LLMGrader{llm: provider}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Grade implements [interview.Grader]. Any failure, including a
// cancelled ctx, yields [interview.DegradedFeedback].
func (g *LLMGrader) Grade(ctx context.Context, question, answer string) interview.Feedback {
	fb, err := g.Evaluate(ctx, question, answer)
	if err != nil {
		observe.Logger(ctx).Warn("grading failed, recording degraded feedback", "err", err)
		return interview.DegradedFeedback()
	}
	return fb
}

// Evaluate is Grade with the error surfaced, for callers such as the CLI
// that want to report it.
func (g *LLMGrader) Evaluate(ctx context.Context, question, answer string) (interview.Feedback, error) {
	start := time.Now()
	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{llm.UserMessage(fmt.Sprintf(promptTemplate, question, answer))},
		Temperature:  0.1,
		MaxTokens:    300,
		JSON:         true,
	})
	g.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return interview.Feedback{}, fmt.Errorf("grading: complete: %w", err)
	}

	var r reply
	if err := llmjson.Parse(resp.Content, &r); err != nil {
		return interview.Feedback{}, fmt.Errorf("grading: %w", err)
	}
	text := strings.TrimSpace(r.Feedback)
	if text == "" {
		return interview.Feedback{}, errEmptyFeedback
	}
	return interview.Feedback{
		Text:         text,
		Rating:       parseRating(r.Rating),
		Satisfactory: parseBool(r.Satisfactory),
	}, nil
}

// parseRating normalises a rating to "X/10". Unrecognised values are kept
// verbatim; a missing rating becomes "N/A".
func parseRating(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "N/A"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "N/A"
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64) + "/10"
	}
	return s
}

func parseBool(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		b, _ = strconv.ParseBool(strings.TrimSpace(s))
		return b || strings.EqualFold(strings.TrimSpace(s), "yes")
	}
	return false
}

var _ interview.Grader = (*LLMGrader)(nil)
