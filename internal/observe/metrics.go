// Package observe provides application-wide observability primitives for
// Intervox: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus via [InitProvider]. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a manual reader to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Intervox metrics.
const meterName = "github.com/MrWong99/intervox"

// Job kinds used as the "kind" attribute on job metrics.
const (
	JobPrefetch = "prefetch"
	JobGrading  = "grading"
	JobArchive  = "archive"
)

// Job outcomes used as the "status" attribute on job metrics.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusTimeout  = "timeout"
	StatusSkipped  = "skipped"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks LLM completion latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// JobDuration tracks background job latency. Use with attribute:
	//   attribute.String("kind", ...)
	JobDuration metric.Float64Histogram

	// --- Counters ---

	// SessionsCreated counts interview sessions created.
	SessionsCreated metric.Int64Counter

	// SessionsEvicted counts sessions removed by idle eviction.
	SessionsEvicted metric.Int64Counter

	// AnswersSubmitted counts accepted answers.
	AnswersSubmitted metric.Int64Counter

	// Jobs counts finished background jobs. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	Jobs metric.Int64Counter

	// AudioCacheLookups counts audio cache reads. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	AudioCacheLookups metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of sessions held in memory.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Synthesis
// and grading routinely take several seconds, so the tail is wide.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}

	// Histograms.
	if met.STTDuration, err = histogram("intervox.stt.duration", "Latency of speech-to-text transcription."); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = histogram("intervox.llm.duration", "Latency of LLM completions."); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = histogram("intervox.tts.duration", "Latency of text-to-speech synthesis."); err != nil {
		return nil, err
	}
	if met.JobDuration, err = histogram("intervox.job.duration", "Latency of background enrichment jobs by kind."); err != nil {
		return nil, err
	}

	// Counters.
	if met.SessionsCreated, err = m.Int64Counter("intervox.sessions.created",
		metric.WithDescription("Total interview sessions created."),
	); err != nil {
		return nil, err
	}
	if met.SessionsEvicted, err = m.Int64Counter("intervox.sessions.evicted",
		metric.WithDescription("Total sessions removed by idle eviction."),
	); err != nil {
		return nil, err
	}
	if met.AnswersSubmitted, err = m.Int64Counter("intervox.answers.submitted",
		metric.WithDescription("Total answers accepted."),
	); err != nil {
		return nil, err
	}
	if met.Jobs, err = m.Int64Counter("intervox.jobs",
		metric.WithDescription("Total background jobs by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.AudioCacheLookups, err = m.Int64Counter("intervox.audio_cache.lookups",
		metric.WithDescription("Audio cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("intervox.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("intervox.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("intervox.sessions.active",
		metric.WithDescription("Number of interview sessions held in memory."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("intervox.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordJob records the outcome and latency of a background job.
func (m *Metrics) RecordJob(ctx context.Context, kind, status string, elapsed time.Duration) {
	m.Jobs.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
	m.JobDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordCacheLookup records an audio cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.AudioCacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordSessionCreated increments the created counter and the active gauge.
func (m *Metrics) RecordSessionCreated(ctx context.Context) {
	m.SessionsCreated.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
}

// RecordSessionsEvicted accounts for n sessions removed from memory.
func (m *Metrics) RecordSessionsEvicted(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.SessionsEvicted.Add(ctx, int64(n))
	m.ActiveSessions.Add(ctx, -int64(n))
}
