package transcript

import (
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/intervox/pkg/provider/stt"
)

var vocabulary = []string{"Kubernetes", "PostgreSQL", "Spring Boot", "Terraform"}

func TestCorrect_Phonetic(t *testing.T) {
	c := NewCorrector()
	res := c.Correct(stt.Transcript{Text: "I deployed it on kubernetis, with postgres sql."}, vocabulary)

	want := "I deployed it on Kubernetes, with PostgreSQL."
	if res.Text != want {
		t.Fatalf("Text = %q, want %q", res.Text, want)
	}
	if len(res.Corrections) != 2 {
		t.Fatalf("corrections = %+v, want 2", res.Corrections)
	}
	if res.Corrections[0].Original != "kubernetis" || res.Corrections[0].Corrected != "Kubernetes" {
		t.Errorf("corrections[0] = %+v", res.Corrections[0])
	}
	if res.Corrections[1].Original != "postgres sql" || res.Corrections[1].Corrected != "PostgreSQL" {
		t.Errorf("corrections[1] = %+v", res.Corrections[1])
	}
	if res.Original.Text != "I deployed it on kubernetis, with postgres sql." {
		t.Errorf("Original mutated: %q", res.Original.Text)
	}
}

func TestCorrect_MultiWordTerm(t *testing.T) {
	c := NewCorrector()
	res := c.Correct(stt.Transcript{Text: "we migrated to spring boots last year"}, vocabulary)
	if !strings.Contains(res.Text, "Spring Boot") {
		t.Fatalf("Text = %q, want Spring Boot", res.Text)
	}
	if strings.Contains(res.Text, "boots") {
		t.Fatalf("Text = %q still has the raw span", res.Text)
	}
}

func TestCorrect_NoChange(t *testing.T) {
	c := NewCorrector()
	in := "I enjoy hiking with my family."
	res := c.Correct(stt.Transcript{Text: in}, vocabulary)
	if res.Text != in || len(res.Corrections) != 0 {
		t.Fatalf("Correct = %q %+v, want unchanged", res.Text, res.Corrections)
	}
}

func TestCorrect_AlreadyCanonical(t *testing.T) {
	c := NewCorrector()
	in := "Kubernetes and Terraform."
	res := c.Correct(stt.Transcript{Text: in}, vocabulary)
	if res.Text != in {
		t.Fatalf("Text = %q, want %q", res.Text, in)
	}
	if len(res.Corrections) != 0 {
		t.Fatalf("corrections = %+v, want none", res.Corrections)
	}
}

func TestCorrect_EmptyInputs(t *testing.T) {
	c := NewCorrector()
	if res := c.Correct(stt.Transcript{}, vocabulary); res.Text != "" {
		t.Errorf("empty transcript: %q", res.Text)
	}
	if res := c.Correct(stt.Transcript{Text: "kubernetis"}, nil); res.Text != "kubernetis" {
		t.Errorf("nil vocabulary: %q", res.Text)
	}
}

func TestCorrect_TrustedWordsUntouched(t *testing.T) {
	c := NewCorrector()
	tr := stt.Transcript{
		Text: "kubernetis",
		Words: []stt.WordDetail{
			{Word: "kubernetis", Confidence: 0.97},
		},
	}
	if res := c.Correct(tr, vocabulary); res.Text != "kubernetis" {
		t.Fatalf("trusted word was rewritten to %q", res.Text)
	}

	tr.Words[0].Confidence = 0.4
	if res := c.Correct(tr, vocabulary); res.Text != "Kubernetes" {
		t.Fatalf("low-confidence word = %q, want Kubernetes", res.Text)
	}
}

// stubMatcher matches exact lower-case keys and records its calls.
type stubMatcher struct {
	mu    sync.Mutex
	table map[string]string
	calls []string
}

func (m *stubMatcher) Match(word string, _ []string) (string, float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, word)
	if term, ok := m.table[strings.ToLower(word)]; ok {
		return term, 0.9, true
	}
	return word, 0, false
}

func TestCorrect_CustomMatcher(t *testing.T) {
	m := &stubMatcher{table: map[string]string{"graf ana": "Grafana", "helm": "Helm"}}
	c := NewCorrector(WithMatcher(m))

	res := c.Correct(stt.Transcript{Text: "dashboards in graf ana!"}, []string{"Grafana", "Helm"})
	if res.Text != "dashboards in Grafana!" {
		t.Fatalf("Text = %q", res.Text)
	}
	if len(res.Corrections) != 1 || res.Corrections[0].Confidence != 0.9 {
		t.Fatalf("corrections = %+v", res.Corrections)
	}
}

func TestCorrect_MinLength(t *testing.T) {
	m := &stubMatcher{table: map[string]string{"helm": "Helm"}}

	c := NewCorrector(WithMatcher(m), WithMinLength(5))
	if res := c.Correct(stt.Transcript{Text: "helm"}, []string{"Helm"}); res.Text != "helm" {
		t.Fatalf("span below min length rewritten to %q", res.Text)
	}
	if len(m.calls) != 0 {
		t.Fatalf("matcher called for short span: %v", m.calls)
	}

	c = NewCorrector(WithMatcher(m), WithMinLength(4))
	if res := c.Correct(stt.Transcript{Text: "helm"}, []string{"Helm"}); res.Text != "Helm" {
		t.Fatalf("Text = %q, want Helm", res.Text)
	}
}

func TestCorrect_DoesNotSpanClauses(t *testing.T) {
	m := &stubMatcher{table: map[string]string{"graf. ana": "Grafana", "graf ana": "Grafana"}}
	c := NewCorrector(WithMatcher(m))
	in := "I used graf. ana helped."
	if res := c.Correct(stt.Transcript{Text: in}, []string{"Grafana"}); res.Text != in {
		t.Fatalf("Text = %q, want %q", res.Text, in)
	}
}

func TestSplitPunct(t *testing.T) {
	tests := []struct {
		in, prefix, core, suffix string
	}{
		{"word", "", "word", ""},
		{"(word),", "(", "word", "),"},
		{"C++.", "", "C++", "."},
		{"C#", "", "C#", ""},
		{"...", "...", "", ""},
	}
	for _, tc := range tests {
		p, c, s := splitPunct(tc.in)
		if p != tc.prefix || c != tc.core || s != tc.suffix {
			t.Errorf("splitPunct(%q) = %q,%q,%q; want %q,%q,%q", tc.in, p, c, s, tc.prefix, tc.core, tc.suffix)
		}
	}
}
