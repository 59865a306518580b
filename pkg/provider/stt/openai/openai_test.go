package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/intervox/pkg/audio"
	"github.com/MrWong99/intervox/pkg/provider/stt"
)

func TestNew_EmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

func TestKeywordPrompt(t *testing.T) {
	got := keywordPrompt([]stt.KeywordBoost{{Keyword: "gRPC"}, {Keyword: ""}, {Keyword: "Kafka"}})
	if got != "gRPC, Kafka" {
		t.Errorf("keywordPrompt = %q", got)
	}
	if keywordPrompt(nil) != "" {
		t.Error("expected empty prompt for no keywords")
	}
}

func TestTranscribe_AgainstFakeServer(t *testing.T) {
	fields := map[string]string{}
	var filename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		if _, hdr, err := r.FormFile("file"); err == nil {
			filename = hdr.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":" I would use a worker pool. "}`)
	}))
	defer srv.Close()

	p, err := New("key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clip := audio.Clip{Data: []byte("\x1aE\xdf\xa3webm"), Format: audio.FormatWebM}
	tr, err := p.Transcribe(context.Background(), clip, stt.Config{
		Language: "en-US",
		Keywords: []stt.KeywordBoost{{Keyword: "errgroup"}},
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "I would use a worker pool." {
		t.Errorf("Text = %q", tr.Text)
	}
	if fields["model"] != "whisper-1" || fields["language"] != "en" || fields["prompt"] != "errgroup" {
		t.Errorf("fields = %v", fields)
	}
	if filename != "answer.webm" {
		t.Errorf("filename = %q", filename)
	}
}

func TestTranscribe_NoSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":""}`)
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL))
	_, err := p.Transcribe(context.Background(), audio.Clip{Data: []byte("x"), Format: audio.FormatWAV}, stt.Config{})
	if !errors.Is(err, stt.ErrNoSpeech) {
		t.Fatalf("error = %v, want ErrNoSpeech", err)
	}
}
