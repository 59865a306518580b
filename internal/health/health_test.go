package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
)

func probe(t *testing.T, h *Handler, path string) (int, report) {
	t.Helper()
	r := mux.NewRouter()
	h.Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var rep report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec.Code, rep
}

func pass(context.Context) error { return nil }

func TestHealthz(t *testing.T) {
	h := New(Checker{Name: "archive", Check: func(context.Context) error { return errors.New("down") }})
	code, rep := probe(t, h, "/healthz")
	if code != http.StatusOK || rep.Status != "ok" || rep.Uptime == "" {
		t.Fatalf("healthz = %d %+v", code, rep)
	}
	if len(rep.Checks) != 0 {
		t.Errorf("liveness ran checks: %v", rep.Checks)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "llm", Check: pass},
				{Name: "archive", Check: pass},
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"llm": "ok", "archive": "ok"},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "llm", Check: pass},
				{Name: "archive", Check: func(context.Context) error { return errors.New("connection refused") }},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"llm": "ok", "archive": "fail: connection refused"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, rep := probe(t, New(tt.checkers...), "/readyz")
			if code != tt.wantCode || rep.Status != tt.wantStatus {
				t.Fatalf("readyz = %d %q, want %d %q", code, rep.Status, tt.wantCode, tt.wantStatus)
			}
			for name, want := range tt.wantChecks {
				if got := rep.Checks[name]; got != want {
					t.Errorf("check %s = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestReadyz_Draining(t *testing.T) {
	var calls atomic.Int32
	h := New(Checker{Name: "llm", Check: func(context.Context) error {
		calls.Add(1)
		return nil
	}})

	h.SetDraining()
	code, rep := probe(t, h, "/readyz")
	if code != http.StatusServiceUnavailable || rep.Status != "draining" {
		t.Fatalf("readyz = %d %+v, want 503 draining", code, rep)
	}
	if calls.Load() != 0 {
		t.Error("checks ran while draining")
	}
	if code, _ := probe(t, h, "/healthz"); code != http.StatusOK {
		t.Errorf("healthz while draining = %d, want 200", code)
	}
}

func TestReadyz_CancelledRequest(t *testing.T) {
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil).WithContext(ctx))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestAvailable(t *testing.T) {
	up := true
	h := New(Available("tts", "all tts providers unavailable", func() bool { return up }))

	if code, _ := probe(t, h, "/readyz"); code != http.StatusOK {
		t.Fatalf("status = %d, want 200 while available", code)
	}
	up = false
	code, rep := probe(t, h, "/readyz")
	if code != http.StatusServiceUnavailable || rep.Checks["tts"] != "fail: all tts providers unavailable" {
		t.Fatalf("readyz = %d %v", code, rep.Checks)
	}
}

func TestRegister_Methods(t *testing.T) {
	r := mux.NewRouter()
	New().Register(r)

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodHead, "/healthz", http.StatusOK},
		{http.MethodPost, "/healthz", http.StatusMethodNotAllowed},
		{http.MethodGet, "/livez", http.StatusNotFound},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.want {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, rec.Code, tc.want)
		}
	}
}
