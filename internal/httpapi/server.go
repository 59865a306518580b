// Package httpapi exposes the interview flow over HTTP.
//
// Routes:
//
//	POST /interview/start             multipart "file" (résumé)
//	POST /interview/next              multipart "session_id", "file" (answer audio)
//	GET  /interview/feedback?session_id=
//	GET  /interview/{id}/current
//	GET  <audio prefix>/{file}        synthesised question audio
//
// Errors are JSON objects of the form {"detail": "..."}.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/MrWong99/intervox/internal/health"
	"github.com/MrWong99/intervox/internal/interview"
	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/internal/pipeline"
	"github.com/MrWong99/intervox/internal/resume"
)

const (
	defaultMaxUploadBytes = 20 << 20
	multipartMemory       = 8 << 20
)

// Pipeline is the interview flow served by the API.
type Pipeline interface {
	Start(ctx context.Context, filename string, data []byte) (pipeline.StartResult, error)
	Next(ctx context.Context, sessionID, filename string, data []byte) (pipeline.NextResult, error)
	Report(sessionID string) ([]interview.IndexedFeedback, error)
	Current(sessionID string) (string, interview.Progress, error)
}

// Config wires the HTTP handler. Only Pipeline is required.
type Config struct {
	Pipeline Pipeline

	// Health registers /healthz and /readyz when set.
	Health *health.Handler

	// MetricsHandler is served at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string

	// AudioDir is served under AudioURLPrefix when both are set.
	AudioDir       string
	AudioURLPrefix string

	// MaxUploadBytes bounds multipart bodies. Zero uses 20 MiB.
	MaxUploadBytes int64

	// CORSOrigins lists allowed origins. Empty allows all.
	CORSOrigins []string

	Metrics *observe.Metrics
}

type api struct {
	pipeline  Pipeline
	maxUpload int64
}

// NewHandler builds the router and wraps it in CORS handling.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("httpapi: pipeline is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	a := &api{pipeline: cfg.Pipeline, maxUpload: cfg.MaxUploadBytes}
	r := mux.NewRouter()
	r.Use(observe.Middleware(cfg.Metrics))

	iv := r.PathPrefix("/interview").Subrouter()
	iv.HandleFunc("/start", a.start).Methods(http.MethodPost)
	iv.HandleFunc("/next", a.next).Methods(http.MethodPost)
	iv.HandleFunc("/feedback", a.feedback).Methods(http.MethodGet)
	iv.HandleFunc("/{id}/current", a.current).Methods(http.MethodGet)

	if cfg.AudioDir != "" && cfg.AudioURLPrefix != "" {
		prefix := "/" + strings.Trim(cfg.AudioURLPrefix, "/")
		r.HandleFunc(prefix+"/{file}", serveAudio(cfg.AudioDir)).Methods(http.MethodGet, http.MethodHead)
	}
	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsHandler).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Correlation-ID"},
	})
	return c.Handler(r), nil
}

func (a *api) start(w http.ResponseWriter, r *http.Request) {
	name, data, ok := a.readUpload(w, r)
	if !ok {
		return
	}
	res, err := a.pipeline.Start(r.Context(), name, data)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) next(w http.ResponseWriter, r *http.Request) {
	name, data, ok := a.readUpload(w, r)
	if !ok {
		return
	}
	sessionID := strings.TrimSpace(r.FormValue("session_id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	res, err := a.pipeline.Next(r.Context(), sessionID, name, data)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type feedbackResponse struct {
	SessionID string                      `json:"session_id"`
	Feedbacks []interview.IndexedFeedback `json:"feedbacks"`
}

func (a *api) feedback(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	report, err := a.pipeline.Report(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if report == nil {
		report = []interview.IndexedFeedback{}
	}
	writeJSON(w, http.StatusOK, feedbackResponse{SessionID: id, Feedbacks: report})
}

type currentResponse struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
}

func (a *api) current(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q, p, err := a.pipeline.Current(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, currentResponse{SessionID: id, Question: q, Index: p.Index, Total: p.Total})
}

// readUpload reads the multipart "file" field. On failure it has already
// written the error response.
func (a *api) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if r.ContentLength > a.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", a.maxUpload))
		return "", nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return "", nil, false
		}
		writeError(w, http.StatusBadRequest, "expected multipart form data")
		return "", nil, false
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return "", nil, false
	}
	return hdr.Filename, data, true
}

// fail maps err to a status code and writes it.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	log := observe.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		log.Info("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeError(w, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case resume.IsUserError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, pipeline.ErrEmptyAnswer), errors.Is(err, interview.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, interview.ErrNotFound):
		return http.StatusNotFound, "Session not found or finished"
	case errors.Is(err, interview.ErrAlreadyCompleted):
		return http.StatusConflict, "Session already completed"
	case errors.Is(err, pipeline.ErrNoQuestions):
		return http.StatusInternalServerError, "Failed to generate questions"
	case errors.Is(err, pipeline.ErrSpeechUnavailable):
		return http.StatusInternalServerError, "TTS Error: could not synthesize question"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// serveAudio serves files directly inside dir. Directory listings and paths
// that leave dir are rejected.
func serveAudio(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["file"]
		if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, name))
	}
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Detail: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
