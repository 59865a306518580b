package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/intervox/internal/interview"
)

func sampleSnapshot() interview.Snapshot {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return interview.Snapshot{
		ID:        "ab12cd34",
		Questions: []string{"What is Go?", "What is a channel?", "Why Kubernetes?"},
		Answers:   []string{"A language.", "A pipe."},
		Index:     2,
		Feedback: []interview.IndexedFeedback{
			{Index: 0, Feedback: interview.Feedback{Text: "Good", Rating: "8/10", Satisfactory: true}},
		},
		CreatedAt:   created,
		CompletedAt: created.Add(10 * time.Minute),
	}
}

func TestFromSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	rec := FromSnapshot(sampleSnapshot(), now)

	if rec.SessionID != "ab12cd34" || len(rec.Items) != 3 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.ArchivedAt.Location() != time.UTC {
		t.Errorf("ArchivedAt not UTC: %v", rec.ArchivedAt)
	}
	if it := rec.Items[0]; !it.Graded || it.Feedback.Rating != "8/10" || it.Answer != "A language." {
		t.Errorf("items[0] = %+v", it)
	}
	if it := rec.Items[1]; it.Graded || it.Answer != "A pipe." {
		t.Errorf("items[1] = %+v", it)
	}
	if it := rec.Items[2]; it.Answer != "" || it.Question != "Why Kubernetes?" || it.Index != 2 {
		t.Errorf("items[2] = %+v", it)
	}
}

func TestFileStore_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "archive.jsonl")
	fs := NewFileStore(path)
	if err := fs.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fs.Save(context.Background(), FromSnapshot(sampleSnapshot(), time.Now())); err != nil {
				t.Errorf("Save: %v", err)
			}
		}()
	}
	wg.Wait()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		if rec.SessionID != "ab12cd34" || len(rec.Items) != 3 {
			t.Fatalf("line %d = %+v", lines, rec)
		}
		lines++
	}
	if lines != 10 {
		t.Fatalf("lines = %d, want 10", lines)
	}
}

func TestFileStore_CancelledContext(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "a.jsonl"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := fs.Save(ctx, Record{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Save error = %v, want context.Canceled", err)
	}
}

type fakeStore struct {
	mu     sync.Mutex
	saved  []Record
	err    error
	closed bool
}

func (f *fakeStore) Save(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, rec)
	return f.err
}

func (f *fakeStore) Ping(context.Context) error { return f.err }

func (f *fakeStore) Close() error {
	f.closed = true
	return f.err
}

func TestMulti(t *testing.T) {
	ok := &fakeStore{}
	bad := &fakeStore{err: errors.New("disk full")}
	m := Multi{bad, ok}

	err := m.Save(context.Background(), Record{SessionID: "x"})
	if err == nil || !errors.Is(err, bad.err) {
		t.Fatalf("Save error = %v, want disk full", err)
	}
	if len(ok.saved) != 1 {
		t.Fatal("healthy store skipped after a failure")
	}
	if err := m.Ping(context.Background()); err == nil {
		t.Fatal("Ping succeeded with a failing store")
	}
	m.Close()
	if !ok.closed || !bad.closed {
		t.Fatal("Close did not reach every store")
	}

	if err := (Multi{}).Save(context.Background(), Record{}); err != nil {
		t.Fatalf("empty Multi Save: %v", err)
	}
}
