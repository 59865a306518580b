// Package questions generates interview questions from a résumé profile.
package questions

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/internal/resume"
	"github.com/MrWong99/intervox/pkg/provider/llm"
)

// DefaultCount is the number of questions asked when no count is set.
const DefaultCount = 10

const systemPrompt = "You generate interview questions. Output only plain text questions."

const promptTemplate = `You are an expert technical interviewer.
Based on the candidate's resume information below, generate exactly %[1]d clear, professional interview questions.
IMPORTANT:
- You must output %[1]d questions.
- The questions should be relevant to the candidate's skills, experience, and education.
- Each question must be on its own line.

Resume Information:
Skills: %[2]s
Experience: %[3]s
Education: %[4]s

Rules:
- Output ONLY the questions
- One question per line
- No numbering
- No extra text`

// listMarker matches leading bullets and numbering such as "1.", "2)", "-", "*" or "Q3:".
var listMarker = regexp.MustCompile(`^\s*(?:[-*•]+|(?:Q(?:uestion)?\s*)?\d+\s*[.):-])\s*`)

// Generator asks an LLM for interview questions. The zero value is not
// usable; construct with [New].
type Generator struct {
	llm     llm.Provider
	count   func() int
	metrics *observe.Metrics
}

// Option configures a [Generator].
type Option func(*Generator)

// WithCount sets a fixed question count.
func WithCount(n int) Option {
	return func(g *Generator) { g.count = func() int { return n } }
}

// WithCountFunc reads the question count on every call, so a hot-reloaded
// setting takes effect for the next interview.
func WithCountFunc(fn func() int) Option {
	return func(g *Generator) { g.count = fn }
}

// WithMetrics records LLM latency to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// New returns a Generator backed by provider.
func New(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{llm: provider, count: func() int { return DefaultCount }}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Generate returns up to the configured number of questions for p. It never
// fails: any error is logged and reported as an empty list, which callers
// treat as "no questions available".
func (g *Generator) Generate(ctx context.Context, p resume.Profile) []string {
	n := g.count()
	if n <= 0 {
		n = DefaultCount
	}

	start := time.Now()
	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{llm.UserMessage(Prompt(p, n))},
		Temperature:  0.2,
		MaxTokens:    500,
	})
	g.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		observe.Logger(ctx).Error("question generation failed", "err", err)
		return nil
	}

	qs := ParseQuestions(resp.Content, n)
	if len(qs) == 0 {
		observe.Logger(ctx).Warn("question generation returned no usable lines", "reply_len", len(resp.Content))
	}
	return qs
}

// Prompt renders the question-generation prompt for p asking for n
// questions.
func Prompt(p resume.Profile, n int) string {
	skills := strings.Join(p.Skills, ", ")
	if skills == "" {
		skills = "NA"
	}

	exp := make([]string, 0, len(p.Experience))
	for _, e := range p.Experience {
		exp = append(exp, fmt.Sprintf("%s at %s", orNA(e.Title), orNA(e.Company)))
	}
	edu := make([]string, 0, len(p.Education))
	for _, e := range p.Education {
		edu = append(edu, fmt.Sprintf("%s from %s", orNA(e.Degree), orNA(e.Institution)))
	}
	return fmt.Sprintf(promptTemplate, n, skills, joinOrNA(exp), joinOrNA(edu))
}

// ParseQuestions splits a model reply into questions. Lines containing a
// question mark are preferred; if there are none, every non-empty line is
// used. List markers are stripped and the result is capped at n.
func ParseQuestions(raw string, n int) []string {
	var all, asked []string
	for line := range strings.SplitSeq(raw, "\n") {
		line = stripMarkers(line)
		if line == "" {
			continue
		}
		all = append(all, line)
		if strings.Contains(line, "?") {
			asked = append(asked, line)
		}
	}
	out := asked
	if len(out) == 0 {
		out = all
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// stripMarkers removes list markers until none remain, so "* Q4: text"
// becomes "text".
func stripMarkers(line string) string {
	line = strings.TrimSpace(line)
	for {
		next := strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if next == line {
			return line
		}
		line = next
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "NA"
	}
	return s
}

func joinOrNA(parts []string) string {
	if len(parts) == 0 {
		return "NA"
	}
	return strings.Join(parts, "; ")
}
