package phonetic_test

import (
	"testing"

	"github.com/MrWong99/intervox/internal/transcript/phonetic"
)

var vocabulary = []string{"Kubernetes", "PostgreSQL", "Spring Boot", "Terraform"}

func TestMatcher_SingleWordMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, conf, matched := m.Match("kubernetis", vocabulary)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "kubernetis")
	}
	if corrected != "Kubernetes" {
		t.Errorf("corrected=%q, want %q", corrected, "Kubernetes")
	}
	if conf < 0.9 {
		t.Errorf("confidence=%f, want >= 0.9", conf)
	}
}

func TestMatcher_SplitWordMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, _, matched := m.Match("postgres sql", vocabulary)
	if !matched || corrected != "PostgreSQL" {
		t.Fatalf("Match(%q) = %q, %v; want PostgreSQL, true", "postgres sql", corrected, matched)
	}
}

func TestMatcher_MultiWordTermMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, conf, matched := m.Match("spring boots", vocabulary)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "spring boots")
	}
	if corrected != "Spring Boot" {
		t.Errorf("corrected=%q, want %q", corrected, "Spring Boot")
	}
	if conf < 0.7 {
		t.Errorf("confidence=%f, want >= 0.7", conf)
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, conf, matched := m.Match("hello", vocabulary)
	if matched {
		t.Fatalf("Match(%q): matched=true (%q), want false", "hello", corrected)
	}
	if corrected != "hello" || conf != 0 {
		t.Errorf("corrected=%q conf=%f, want original and 0", corrected, conf)
	}
}

func TestMatcher_CaseInsensitivity(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	for _, in := range []string{"TERRAFORM", "terraform", "TerraForm"} {
		corrected, conf, matched := m.Match(in, vocabulary)
		if !matched || corrected != "Terraform" {
			t.Errorf("Match(%q) = %q, %v; want Terraform", in, corrected, matched)
		}
		if conf < 0.99 {
			t.Errorf("Match(%q) confidence=%f, want ~1", in, conf)
		}
	}
}

func TestMatcher_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)
	if _, _, matched := m.Match("kubernetis", vocabulary); matched {
		t.Fatal("Match with threshold=0.99 should reject near-matches")
	}
}

func TestMatcher_EmptyInputs(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	if corrected, conf, matched := m.Match("kubernetes", nil); matched || corrected != "kubernetes" || conf != 0 {
		t.Errorf("nil vocabulary: got %q, %f, %v", corrected, conf, matched)
	}
	if corrected, conf, matched := m.Match("  ", vocabulary); matched || corrected != "  " || conf != 0 {
		t.Errorf("blank word: got %q, %f, %v", corrected, conf, matched)
	}
	if _, _, matched := m.MatchVocabulary("kubernetes", nil); matched {
		t.Error("nil prepared vocabulary matched")
	}
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	v := phonetic.Prepare([]string{"Go", "go", " ", "Spring Boot", "Amazon Web Services"})
	if v.Len() != 3 {
		t.Errorf("Len = %d, want 3 (duplicates and blanks dropped)", v.Len())
	}
	if v.MaxWords() != 3 {
		t.Errorf("MaxWords = %d, want 3", v.MaxWords())
	}

	// First spelling wins.
	corrected, _, matched := phonetic.New().MatchVocabulary("GO", v)
	if !matched || corrected != "Go" {
		t.Errorf("MatchVocabulary(GO) = %q, %v", corrected, matched)
	}
}
