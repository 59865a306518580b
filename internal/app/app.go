// Package app wires all Intervox subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and supervises the background loops, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithArchive,
// WithListener, WithMetrics, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/intervox/internal/archive"
	"github.com/MrWong99/intervox/internal/archive/postgres"
	"github.com/MrWong99/intervox/internal/config"
	"github.com/MrWong99/intervox/internal/grading"
	"github.com/MrWong99/intervox/internal/health"
	"github.com/MrWong99/intervox/internal/httpapi"
	"github.com/MrWong99/intervox/internal/interview"
	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/internal/pipeline"
	"github.com/MrWong99/intervox/internal/questions"
	"github.com/MrWong99/intervox/internal/resume"
	"github.com/MrWong99/intervox/internal/speech"
	"github.com/MrWong99/intervox/pkg/provider/llm"
	"github.com/MrWong99/intervox/pkg/provider/stt"
	"github.com/MrWong99/intervox/pkg/provider/tts"
)

// serverStopTimeout bounds the HTTP shutdown triggered by Run's context
// being cancelled. [App.Shutdown] uses the caller's deadline instead.
const serverStopTimeout = 5 * time.Second

// Providers holds one interface value per provider slot. All three are
// required. Populated by main.go via the config registry, possibly wrapped
// in resilience fallback groups.
type Providers struct {
	LLM llm.Provider
	STT stt.Provider
	TTS tts.Provider
}

// availability is implemented by providers that track their own health,
// such as the resilience fallback groups.
type availability interface {
	Available() bool
}

// App owns all subsystem lifetimes and serves the interview API.
type App struct {
	cfg       *config.Config
	providers *Providers

	telemetry *observe.Telemetry
	metrics   *observe.Metrics
	levels    *slog.LevelVar

	orch      *interview.Orchestrator
	scheduler *interview.Scheduler
	janitor   *interview.Janitor
	archive   archive.Store
	service   *pipeline.Service
	health    *health.Handler
	handler   http.Handler
	server    *http.Server
	listener  net.Listener

	configPath string
	watcher    *config.Watcher

	questionCount  atomic.Int64
	unintelligible atomic.Pointer[string]

	// closers are called in order during Shutdown, after the scheduler has
	// drained.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithTelemetry uses t for metrics and the scrape endpoint instead of
// initialising the OTel SDK. The caller keeps ownership of t.
func WithTelemetry(t *observe.Telemetry) Option {
	return func(a *App) { a.telemetry = t }
}

// WithMetrics injects the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithArchive injects an archive store instead of building one from
// config. The App closes it on Shutdown.
func WithArchive(s archive.Store) Option {
	return func(a *App) { a.archive = s }
}

// WithListener serves on l instead of listening on cfg.Server.ListenAddr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// WithLevelVar lets config reloads change the log level of the handler
// that reads lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.levels = lv }
}

// WithConfigWatch hot-reloads the YAML file at path while Run is active.
func WithConfigWatch(path string) Option {
	return func(a *App) { a.configPath = path }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles.
//
// New performs all initialisation synchronously, including the archive
// database connection and schema migration.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	switch {
	case providers == nil || providers.LLM == nil:
		return nil, errors.New("app: llm provider is required")
	case providers.STT == nil:
		return nil, errors.New("app: stt provider is required")
	case providers.TTS == nil:
		return nil, errors.New("app: tts provider is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	a.questionCount.Store(int64(cfg.Interview.QuestionCount))
	a.setUnintelligible(cfg.Interview.UnintelligibleAnswer)

	// ── 1. Metrics ──────────────────────────────────────────────────────
	if err := a.initMetrics(ctx); err != nil {
		return nil, fmt.Errorf("app: init metrics: %w", err)
	}

	// ── 2. Store and orchestrator ───────────────────────────────────────
	// The report hook needs the pipeline, which is built in step 6.
	var svc *pipeline.Service
	a.orch = interview.NewOrchestrator(
		interview.NewStore(),
		interview.WithMetrics(a.metrics),
		interview.WithReportHook(func(snap interview.Snapshot) {
			if svc != nil {
				svc.Archive(snap)
			}
		}),
	)

	// ── 3. Speech stack ─────────────────────────────────────────────────
	speaker := speech.NewSpeaker(providers.TTS, cfg.Storage.AudioDir,
		speech.WithVoice(cfg.Interview.VoiceID),
		speech.WithURLPrefix(cfg.Storage.AudioURLPrefix),
		speech.WithSpeakerMetrics(a.metrics),
	)
	transcriber := speech.NewTranscriber(providers.STT,
		speech.WithLanguage(cfg.Interview.Language),
		speech.WithTranscriberMetrics(a.metrics),
	)

	// ── 4. Scheduler ────────────────────────────────────────────────────
	a.scheduler = interview.NewScheduler(a.orch, speaker,
		grading.NewLLMGrader(providers.LLM, grading.WithMetrics(a.metrics)),
		interview.WithPrefetchWorkers(cfg.Interview.PrefetchWorkers),
		interview.WithGradingWorkers(cfg.Interview.GradingWorkers),
		interview.WithJobTimeout(cfg.Interview.JobTimeout),
		interview.WithSchedulerMetrics(a.metrics),
	)

	// ── 5. Archive ──────────────────────────────────────────────────────
	if err := a.initArchive(ctx); err != nil {
		a.closeAll(ctx)
		return nil, fmt.Errorf("app: init archive: %w", err)
	}

	// ── 6. Pipeline ─────────────────────────────────────────────────────
	var err error
	svc, err = pipeline.New(pipeline.Config{
		Orchestrator: a.orch,
		Scheduler:    a.scheduler,
		Extractor:    resume.NewExtractor(providers.LLM, resume.WithMetrics(a.metrics)),
		Questions: questions.New(providers.LLM,
			questions.WithCountFunc(func() int { return int(a.questionCount.Load()) }),
			questions.WithMetrics(a.metrics),
		),
		Speaker:        speaker,
		Transcriber:    transcriber,
		Archive:        a.archive,
		AnswersDir:     cfg.Storage.AnswersDir,
		Unintelligible: a.unintelligibleAnswer,
	})
	if err != nil {
		a.closeAll(ctx)
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}
	a.service = svc

	// ── 7. HTTP handler ─────────────────────────────────────────────────
	if err := a.initHTTP(); err != nil {
		a.closeAll(ctx)
		return nil, fmt.Errorf("app: init http: %w", err)
	}

	// ── 8. Janitor and config watcher ───────────────────────────────────
	a.janitor = interview.NewJanitor(a.orch, a.scheduler, cfg.Interview.IdleTTL, cfg.Interview.EvictionInterval)
	a.janitor.OnEvict(func(ids []string) { svc.Forget(ids...) })

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, func(old, new *config.Config) {
			a.ApplyConfig(config.Diff(old, new))
		})
		if err != nil {
			a.closeAll(ctx)
			return nil, fmt.Errorf("app: init config watcher: %w", err)
		}
		a.watcher = w
	}

	slog.Info("app initialised",
		"audio_dir", cfg.Storage.AudioDir,
		"answers_dir", cfg.Storage.AnswersDir,
		"archive", a.archive != nil,
		"idle_ttl", cfg.Interview.IdleTTL,
	)
	return a, nil
}

// initMetrics creates the OTel SDK providers unless telemetry or metrics
// were injected.
func (a *App) initMetrics(ctx context.Context) error {
	if a.metrics != nil {
		return nil
	}
	if a.telemetry == nil {
		t, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: a.cfg.Observe.ServiceName})
		if err != nil {
			return err
		}
		a.telemetry = t
		a.closers = append(a.closers, t.Shutdown)
	}
	m, err := observe.NewMetrics(a.telemetry.MeterProvider)
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

// initArchive builds the configured archive sinks. With none configured,
// finished interviews are not exported.
func (a *App) initArchive(ctx context.Context) error {
	if a.archive != nil {
		a.closers = append(a.closers, closeFunc(a.archive.Close))
		return nil
	}

	var sinks archive.Multi
	if path := a.cfg.Archive.JSONLPath; path != "" {
		sinks = append(sinks, archive.NewFileStore(path))
		slog.Info("archive enabled", "kind", "jsonl", "path", path)
	}
	if dsn := a.cfg.Archive.PostgresDSN; dsn != "" {
		pg, err := postgres.New(ctx, dsn)
		if err != nil {
			return err
		}
		sinks = append(sinks, pg)
		slog.Info("archive enabled", "kind", "postgres")
	}
	if len(sinks) == 0 {
		return nil
	}
	a.archive = sinks
	a.closers = append(a.closers, closeFunc(sinks.Close))
	return nil
}

// initHTTP assembles the readiness checks and the API router.
func (a *App) initHTTP() error {
	checkers := []health.Checker{
		providerChecker("llm", a.providers.LLM),
		providerChecker("stt", a.providers.STT),
		providerChecker("tts", a.providers.TTS),
		health.Available("scheduler", "scheduler closed", func() bool { return !a.scheduler.Closed() }),
	}
	if a.archive != nil {
		checkers = append(checkers, health.Checker{Name: "archive", Check: a.archive.Ping})
	}

	var metricsHandler http.Handler
	if a.telemetry != nil && a.cfg.Observe.MetricsPath != "" {
		metricsHandler = a.telemetry.Handler()
	}

	a.health = health.New(checkers...)
	h, err := httpapi.NewHandler(httpapi.Config{
		Pipeline:       a.service,
		Health:         a.health,
		MetricsHandler: metricsHandler,
		MetricsPath:    a.cfg.Observe.MetricsPath,
		AudioDir:       a.cfg.Storage.AudioDir,
		AudioURLPrefix: a.cfg.Storage.AudioURLPrefix,
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		Metrics:        a.metrics,
	})
	if err != nil {
		return err
	}
	a.handler = h
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// providerChecker reports a provider as ready when it is configured and, for
// fallback groups, when at least one backend would accept a call.
func providerChecker(name string, p any) health.Checker {
	return health.Available(name, name+" provider unavailable", func() bool {
		if p == nil {
			return false
		}
		if av, ok := p.(availability); ok {
			return av.Available()
		}
		return true
	})
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the HTTP handler served by Run.
func (a *App) Handler() http.Handler { return a.handler }

// Pipeline returns the interview flow service.
func (a *App) Pipeline() *pipeline.Service { return a.service }

// Janitor returns the idle-session janitor.
func (a *App) Janitor() *interview.Janitor { return a.janitor }

func (a *App) unintelligibleAnswer() string {
	return *a.unintelligible.Load()
}

func (a *App) setUnintelligible(s string) {
	if s == "" {
		s = pipeline.DefaultUnintelligibleAnswer
	}
	a.unintelligible.Store(&s)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and runs the janitor and, when enabled, the config watcher
// until ctx is cancelled or one of them fails. It returns ctx.Err() after a
// clean stop.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.health.SetDraining()
		stopCtx, cancel := context.WithTimeout(context.Background(), serverStopTimeout)
		defer cancel()
		if err := a.server.Shutdown(stopCtx); err != nil {
			slog.Warn("http server stop error", "err", err)
		}
		return nil
	})

	g.Go(func() error { return a.janitor.Run(gctx) })

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	slog.Info("app running", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ApplyConfig applies the hot-reloadable parts of a config change. Changes
// that need a restart are logged and otherwise ignored.
func (a *App) ApplyConfig(d config.ConfigDiff) {
	if d.LogLevelChanged && a.levels != nil {
		a.levels.Set(d.NewLogLevel.Level())
		slog.Info("config reload: log level changed", "level", d.NewLogLevel)
	}
	if d.QuestionCountChanged {
		a.questionCount.Store(int64(d.NewQuestionCount))
		slog.Info("config reload: question count changed", "count", d.NewQuestionCount)
	}
	if d.UnintelligibleChanged {
		a.setUnintelligible(d.NewUnintelligibleAnswer)
		slog.Info("config reload: unintelligible answer changed", "text", d.NewUnintelligibleAnswer)
	}
	if d.IdleTTLChanged {
		a.janitor.SetTTL(d.NewIdleTTL)
		slog.Info("config reload: idle ttl changed", "ttl", d.NewIdleTTL)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config reload: changes need a restart", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops accepting requests, drains the scheduler so in-flight
// grading can still reach the archive, and then runs the closers. It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		a.health.SetDraining()

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}

		if err := a.scheduler.Shutdown(ctx); err != nil {
			slog.Warn("scheduler drain incomplete", "err", err)
		}

		shutdownErr = a.closeAll(ctx)
		if shutdownErr == nil {
			slog.Info("shutdown complete")
		}
	})
	return shutdownErr
}

// closeAll runs the closers in order, stopping early when ctx expires.
func (a *App) closeAll(ctx context.Context) error {
	for i, closer := range a.closers {
		select {
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
			return ctx.Err()
		default:
		}
		if err := closer(ctx); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
		}
	}
	a.closers = nil
	return nil
}

func closeFunc(fn func() error) func(context.Context) error {
	return func(context.Context) error { return fn() }
}
