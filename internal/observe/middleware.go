package observe

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// HeaderCorrelationID is the response header that echoes the trace ID.
const HeaderCorrelationID = "X-Correlation-ID"

// statusWriter remembers the status code the handler wrote.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets [http.ResponseController] reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// route describes the matched endpoint: the path template used as metric
// label and span name, and the session ID named by the URL, if any.
type route struct {
	path    string
	session string
}

// matchRoute prefers the gorilla/mux template so a label series exists per
// endpoint, not per session. The session ID comes from the {id} path
// variable or the session_id query parameter. Form bodies are left alone;
// reading them here would bypass the handler's upload limit.
func matchRoute(r *http.Request) route {
	rt := route{path: r.URL.Path, session: r.URL.Query().Get("session_id")}
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			rt.path = tpl
		}
		if id := mux.Vars(r)["id"]; id != "" {
			rt.session = id
		}
	}
	return rt
}

// Middleware traces, times and logs every request.
//
// Incoming W3C trace context is honoured. The trace ID is returned in
// [HeaderCorrelationID], and a session ID found in the URL is attached to the
// request context with [WithSession]. Register it with router.Use so the mux
// route is known; wrapping a plain handler falls back to the raw path.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rt := matchRoute(r)

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx = WithSession(ctx, rt.session)
			ctx, span := StartSpan(ctx, r.Method+" "+rt.path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRoute(rt.path),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if cid := CorrelationID(ctx); cid != "" {
				w.Header().Set(HeaderCorrelationID, cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))
			elapsed := time.Since(start)

			span.SetAttributes(semconv.HTTPResponseStatusCode(sw.status))
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("path", rt.path),
				attribute.Int("status", sw.status),
			))

			level := slog.LevelInfo
			switch {
			case sw.status >= http.StatusInternalServerError:
				level = slog.LevelWarn
			case rt.path == "/healthz" || rt.path == "/readyz" || rt.path == "/metrics":
				level = slog.LevelDebug
			}
			Logger(ctx).Log(ctx, level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", elapsed,
			)
		})
	}
}
