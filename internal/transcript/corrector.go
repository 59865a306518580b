package transcript

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/intervox/internal/transcript/phonetic"
	"github.com/MrWong99/intervox/pkg/provider/stt"
)

const (
	defaultMinLength      = 4
	defaultTrustedScore   = 0.90
	defaultSpanSimilarity = 0.80
)

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithMatcher replaces the default [phonetic.Matcher].
func WithMatcher(m PhoneticMatcher) Option {
	return func(c *Corrector) { c.matcher = m }
}

// WithMinLength sets the shortest span, in letters, that may be corrected.
// Short words ("go", "it", "as") match too many terms. Default: 4.
func WithMinLength(n int) Option {
	return func(c *Corrector) { c.minLength = n }
}

// WithTrustedConfidence leaves words alone whose STT word confidence is at
// or above score. Default: 0.90. Transcripts without word details are never
// trusted.
func WithTrustedConfidence(score float64) Option {
	return func(c *Corrector) { c.trusted = score }
}

// WithSpanSimilarity sets the minimum Jaro-Winkler similarity between a
// whole span (spaces removed) and the term replacing it. It stops a window
// like "I used spring" from matching "Spring Boot" on one shared word.
// Default: 0.80.
func WithSpanSimilarity(score float64) Option {
	return func(c *Corrector) { c.spanSimilarity = score }
}

// Corrector rewrites transcript spans that sound like vocabulary terms. It
// is safe for concurrent use.
type Corrector struct {
	matcher        PhoneticMatcher
	minLength      int
	trusted        float64
	spanSimilarity float64
}

// NewCorrector returns a Corrector using a default [phonetic.Matcher].
func NewCorrector(opts ...Option) *Corrector {
	c := &Corrector{
		matcher:        phonetic.New(),
		minLength:      defaultMinLength,
		trusted:        defaultTrustedScore,
		spanSimilarity: defaultSpanSimilarity,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct aligns t.Text against vocabulary.
//
// At every token position, windows from one more than the longest term's
// word count down to one token are tried and the longest accepted window
// wins. A window is accepted when the matcher finds a term with no more words
// than the window, the span resembles the term as a whole, and the
// recogniser did not trust every word in it.
// Punctuation around the span is preserved.
func (c *Corrector) Correct(t stt.Transcript, vocabulary []string) Result {
	res := Result{Original: t, Text: t.Text}
	tokens := strings.Fields(t.Text)
	if len(tokens) == 0 || len(vocabulary) == 0 {
		return res
	}

	var (
		maxWords int
		match    func(string) (string, float64, bool)
	)
	if pm, ok := c.matcher.(*phonetic.Matcher); ok {
		v := phonetic.Prepare(vocabulary)
		maxWords = v.MaxWords()
		match = func(span string) (string, float64, bool) { return pm.MatchVocabulary(span, v) }
	} else {
		maxWords = maxWordCount(vocabulary)
		match = func(span string) (string, float64, bool) { return c.matcher.Match(span, vocabulary) }
	}
	if maxWords == 0 {
		return res
	}
	// Recognisers often split a single term ("postgres sql").
	window := maxWords + 1

	confidence := wordConfidence(t.Words)
	out := make([]string, 0, len(tokens))
	changed := false

	for i := 0; i < len(tokens); {
		n, repl, corr, ok := c.bestWindow(tokens[i:], window, confidence, match)
		if !ok {
			out = append(out, tokens[i])
			i++
			continue
		}
		out = append(out, repl)
		if corr.Original != corr.Corrected {
			res.Corrections = append(res.Corrections, corr)
			changed = true
		}
		i += n
	}

	if changed {
		res.Text = strings.Join(out, " ")
	}
	return res
}

// bestWindow tries windows over tokens from the longest down and returns the
// number of tokens consumed, the replacement text and the correction.
func (c *Corrector) bestWindow(
	tokens []string,
	maxWords int,
	confidence map[string]float64,
	match func(string) (string, float64, bool),
) (int, string, Correction, bool) {
	for n := min(maxWords, len(tokens)); n >= 1; n-- {
		window := tokens[:n]
		if crossesClause(window) {
			continue
		}
		prefix, core, suffix := splitPunct(strings.Join(window, " "))
		if letterCount(core) < c.minLength {
			continue
		}
		words := strings.Fields(core)
		if c.allTrusted(words, confidence) {
			continue
		}
		term, score, ok := match(core)
		if !ok || len(strings.Fields(term)) > n {
			continue
		}
		span := spanScore(words, term)
		if span < c.spanSimilarity {
			continue
		}
		// A longer window must fit the term better than either of its
		// shorter neighbours, otherwise a stray word is swallowed.
		if n > 1 && (spanScore(words[1:], term) >= span || spanScore(words[:n-1], term) >= span) {
			continue
		}
		return n, prefix + term + suffix, Correction{Original: core, Corrected: term, Confidence: score}, true
	}
	return 0, "", Correction{}, false
}

// spanScore is the Jaro-Winkler similarity of words and term with spaces
// removed.
func spanScore(words []string, term string) float64 {
	return matchr.JaroWinkler(strings.ToLower(strings.Join(words, "")), squash(term), false)
}

// crossesClause reports whether punctuation ends any token but the last.
func crossesClause(window []string) bool {
	for _, w := range window[:len(window)-1] {
		if _, _, suffix := splitPunct(w); suffix != "" {
			return true
		}
	}
	return false
}

func (c *Corrector) allTrusted(words []string, confidence map[string]float64) bool {
	if len(confidence) == 0 {
		return false
	}
	for _, w := range words {
		conf, ok := confidence[normalizeWord(w)]
		if !ok || conf < c.trusted {
			return false
		}
	}
	return true
}

// wordConfidence maps each normalised word to the lowest confidence the
// recogniser reported for it.
func wordConfidence(words []stt.WordDetail) map[string]float64 {
	if len(words) == 0 {
		return nil
	}
	m := make(map[string]float64, len(words))
	for _, w := range words {
		key := normalizeWord(w.Word)
		if prev, ok := m[key]; !ok || w.Confidence < prev {
			m[key] = w.Confidence
		}
	}
	return m
}

// splitPunct separates leading and trailing punctuation from s.
func splitPunct(s string) (prefix, core, suffix string) {
	isPunct := func(r rune) bool { return unicode.IsPunct(r) && r != '+' && r != '#' }
	core = strings.TrimLeftFunc(s, isPunct)
	prefix = s[:len(s)-len(core)]
	trimmed := strings.TrimRightFunc(core, isPunct)
	suffix = core[len(trimmed):]
	return prefix, trimmed, suffix
}

func normalizeWord(w string) string {
	_, core, _ := splitPunct(w)
	return strings.ToLower(core)
}

func squash(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// maxWordCount returns the word count of the longest term.
func maxWordCount(terms []string) int {
	n := 0
	for _, t := range terms {
		n = max(n, len(strings.Fields(t)))
	}
	return n
}

