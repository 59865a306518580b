// Package health serves the liveness and readiness probes of the interview
// service.
//
// GET /healthz answers 200 as long as the process can serve HTTP. GET /readyz
// runs every registered [Checker] in parallel and answers 200 only when all of
// them pass and the service is not draining. Both reply with a JSON body:
//
//	{"status":"ok","uptime":"1h2m3s","checks":{"llm":"ok","archive":"fail: ..."}}
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

const (
	statusOK       = "ok"
	statusFail     = "fail"
	statusDraining = "draining"
)

// Checker probes one dependency. Check returns nil when it is usable.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Available adapts a component that tracks its own state, such as a
// provider failover group whose breakers are all open.
func Available(name, msg string, available func() bool) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if !available() {
			return errors.New(msg)
		}
		return nil
	}}
}

type report struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probes. The checker list is fixed at construction.
type Handler struct {
	checkers []Checker
	started  time.Time
	draining atomic.Bool
}

// New returns a Handler evaluating checkers on every readiness request.
func New(checkers ...Checker) *Handler {
	return &Handler{
		checkers: append([]Checker(nil), checkers...),
		started:  time.Now(),
	}
}

// SetDraining marks the service as shutting down. Readiness then fails
// without running any checks, so load balancers stop sending new
// interviews while in-flight ones finish.
func (h *Handler) SetDraining() { h.draining.Store(true) }

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{
		Status: statusOK,
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

// Readyz is the readiness probe.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, report{Status: statusDraining})
		return
	}

	checks, ok := h.run(r.Context())
	rep := report{Status: statusOK, Checks: checks}
	code := http.StatusOK
	if !ok {
		rep.Status, code = statusFail, http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

// run evaluates every checker concurrently and reports whether all passed.
func (h *Handler) run(ctx context.Context) (map[string]string, bool) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		ok     = true
		g      errgroup.Group
	)
	for _, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			err := c.Check(cctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = statusFail + ": " + err.Error()
				ok = false
				return nil
			}
			checks[c.Name] = statusOK
			return nil
		})
	}
	_ = g.Wait()
	return checks, ok
}

// Register mounts both probes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet, http.MethodHead)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
