// Package app wires all Barista Buddy subsystems into a running application.
//
// The App struct owns the full lifecycle: New loads datasets, connects the
// query history store, builds the fallback handler stack, assembles the
// answer pipeline, and prepares the HTTP surface. Run executes the configured
// session surface until the context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithHistoryStore,
// WithFallbackHandler, WithConsoleIO). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/baristabuddy/baristabuddy/internal/config"
	"github.com/baristabuddy/baristabuddy/internal/fallback"
	"github.com/baristabuddy/baristabuddy/internal/history"
	historypg "github.com/baristabuddy/baristabuddy/internal/history/postgres"
	"github.com/baristabuddy/baristabuddy/internal/knowledge"
	"github.com/baristabuddy/baristabuddy/internal/lexicon"
	"github.com/baristabuddy/baristabuddy/internal/lexicon/phonetic"
	"github.com/baristabuddy/baristabuddy/internal/mcptools"
	"github.com/baristabuddy/baristabuddy/internal/observe"
	"github.com/baristabuddy/baristabuddy/internal/pipeline"
	"github.com/baristabuddy/baristabuddy/internal/resilience"
	"github.com/baristabuddy/baristabuddy/internal/session"
	"github.com/baristabuddy/baristabuddy/internal/topic"
	"github.com/baristabuddy/baristabuddy/pkg/provider/tts"
)

// serverShutdownTimeout bounds the graceful drain of the HTTP server once
// Run begins stopping.
const serverShutdownTimeout = 10 * time.Second

// Providers holds the provider failover chains built from the config
// registry in main. A nil chain means that kind is not configured; the app
// degrades accordingly (static fallback handler, no voice surface).
type Providers struct {
	LLM *resilience.LLMFallback
	STT *resilience.STTFallback
	TTS *resilience.TTSFallback
}

// App owns all subsystem lifetimes and serves the configured surfaces.
type App struct {
	cfg       *config.Config
	providers *Providers
	version   string

	// Subsystems, initialised in New and torn down in Shutdown.
	metrics   *observe.Metrics
	lex       *lexicon.Lexicon
	keywords  topic.KeywordSet
	base      *knowledge.Base
	filter    *topic.Filter
	retriever *knowledge.Retriever
	store     history.Store
	handler   fallback.Handler
	pipeline  *pipeline.Pipeline
	voices    *VoiceSessions
	mcp       *mcptools.Server
	server    *http.Server

	// Console streams, swappable for tests.
	consoleIn  io.Reader
	consoleOut io.Writer

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithHistoryStore injects a query log store instead of connecting one from
// config.
func WithHistoryStore(s history.Store) Option {
	return func(a *App) { a.store = s }
}

// WithFallbackHandler injects a fallback handler instead of building the
// stack from config.
func WithFallbackHandler(h fallback.Handler) Option {
	return func(a *App) { a.handler = h }
}

// WithMetrics injects a metrics set instead of the default instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithConsoleIO redirects the console session streams, which default to
// stdin and stdout.
func WithConsoleIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.consoleIn = in
		a.consoleOut = out
	}
}

// WithVersion sets the version string reported to MCP clients.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main (populated via the config registry); nil is treated as no
// providers configured. Use Option functions to inject test doubles.
//
// New performs all initialisation synchronously: dataset loading, history
// store connection, fallback handler assembly, pipeline construction, and
// HTTP surface preparation.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	a := &App{
		cfg:        cfg,
		providers:  providers,
		consoleIn:  os.Stdin,
		consoleOut: os.Stdout,
	}
	if a.providers == nil {
		a.providers = &Providers{}
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Datasets ──────────────────────────────────────────────────────
	if err := a.initDatasets(); err != nil {
		return nil, fmt.Errorf("app: init datasets: %w", err)
	}

	// ── 2. Query history ─────────────────────────────────────────────────
	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	// ── 3. Fallback handler ──────────────────────────────────────────────
	if err := a.initFallback(); err != nil {
		return nil, fmt.Errorf("app: init fallback: %w", err)
	}

	// ── 4. Pipeline ──────────────────────────────────────────────────────
	if err := a.initPipeline(); err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}

	// ── 5. Sessions + HTTP server ────────────────────────────────────────
	if err := a.initServer(); err != nil {
		return nil, fmt.Errorf("app: init server: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initDatasets loads the lexicon, keyword set, and answer base, falling back
// to the embedded defaults for any path left empty.
func (a *App) initDatasets() error {
	var err error

	if path := a.cfg.Datasets.Lexicon; path != "" {
		a.lex, err = lexicon.Load(path)
		if err != nil {
			return err
		}
	} else {
		a.lex = lexicon.Default()
	}

	if path := a.cfg.Datasets.Keywords; path != "" {
		a.keywords, err = topic.LoadKeywords(path)
		if err != nil {
			return err
		}
	} else {
		a.keywords = topic.Default()
	}

	if path := a.cfg.Datasets.Knowledge; path != "" {
		a.base, err = knowledge.Load(path)
		if err != nil {
			return err
		}
	} else {
		a.base = knowledge.Default()
	}

	slog.Info("datasets loaded",
		"lexicon_entries", a.lex.Len(),
		"keywords", a.keywords.Len(),
		"knowledge_entries", a.base.Len(),
	)
	return nil
}

// initHistory connects the PostgreSQL query log or falls back to the no-op
// store when no DSN is configured.
func (a *App) initHistory(ctx context.Context) error {
	if a.store != nil {
		return nil // injected
	}

	dsn := a.cfg.History.PostgresDSN
	if dsn == "" {
		a.store = history.Noop{}
		return nil
	}

	store, err := historypg.New(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	slog.Info("query history connected")
	return nil
}

// initFallback builds the handler stack for questions the answer base cannot
// serve: cache → rate limiter → LLM, or a static message when no LLM chain
// is configured.
func (a *App) initFallback() error {
	if a.handler != nil {
		return nil // injected
	}

	fc := a.cfg.Fallback
	if a.providers.LLM == nil {
		a.handler = fallback.NewStatic(fc.StaticMessage)
		slog.Info("fallback handler ready", "kind", "static")
		return nil
	}

	opts := []fallback.LLMOption{
		fallback.WithName(a.cfg.Providers.LLM.Primary.Name),
		fallback.WithMetrics(a.metrics),
	}
	if fc.SystemPrompt != "" {
		opts = append(opts, fallback.WithSystemPrompt(fc.SystemPrompt))
	}
	if fc.Temperature != 0 {
		opts = append(opts, fallback.WithTemperature(fc.Temperature))
	}
	if fc.MaxTokens != 0 {
		opts = append(opts, fallback.WithMaxTokens(fc.MaxTokens))
	}

	llmHandler, err := fallback.NewLLM(a.providers.LLM, opts...)
	if err != nil {
		return err
	}
	limited, err := fallback.NewRateLimited(llmHandler, fc.RatePerSecond, fc.RateBurst)
	if err != nil {
		return err
	}
	// Cache outermost: remembered answers cost no rate budget.
	cached, err := fallback.NewCached(limited, fc.CacheTTLDuration(), fallback.WithCacheMetrics(a.metrics))
	if err != nil {
		return err
	}
	a.handler = cached
	slog.Info("fallback handler ready", "kind", "llm", "provider", a.cfg.Providers.LLM.Primary.Name)
	return nil
}

// initPipeline assembles the normalizer, admission filter, retriever, and
// orchestrator from the loaded datasets and config tuning.
func (a *App) initPipeline() error {
	normOpts := []lexicon.Option{lexicon.WithMode(a.cfg.Pipeline.NormalizerMode)}
	if a.cfg.Pipeline.FuzzyCutoff != 0 {
		normOpts = append(normOpts, lexicon.WithFuzzyCutoff(a.cfg.Pipeline.FuzzyCutoff))
	}
	if a.cfg.Pipeline.NormalizerMode == lexicon.ModePhonetic {
		normOpts = append(normOpts, lexicon.WithPhoneticMatcher(phonetic.New()))
	}
	norm, err := lexicon.NewNormalizer(a.lex, normOpts...)
	if err != nil {
		return err
	}

	a.filter = topic.NewFilter(a.keywords)

	var retrOpts []knowledge.RetrieverOption
	if a.cfg.Pipeline.RetrievalCutoff != 0 {
		retrOpts = append(retrOpts, knowledge.WithCutoff(a.cfg.Pipeline.RetrievalCutoff))
	}
	a.retriever, err = knowledge.NewRetriever(a.base, retrOpts...)
	if err != nil {
		return err
	}

	a.pipeline, err = pipeline.New(norm, a.filter, a.retriever, a.handler,
		pipeline.WithMetrics(a.metrics),
		pipeline.WithHistory(a.store),
	)
	return err
}

// initServer prepares the voice session manager and the HTTP server. The
// server carries the ops endpoints, the ask API, the voice endpoints in
// voice mode, and the MCP handler when enabled.
func (a *App) initServer() error {
	if a.cfg.Session.Mode == config.SessionVoice {
		if a.providers.STT == nil || a.providers.TTS == nil {
			return errors.New("voice mode requires STT and TTS providers")
		}
		voices, err := NewVoiceSessions(VoiceSessionsConfig{
			Pipeline: a.pipeline,
			STT:      a.providers.STT,
			TTS:      a.providers.TTS,
			Voice: tts.VoiceProfile{
				ID:       a.cfg.Session.Voice.VoiceID,
				Provider: a.cfg.Session.Voice.Provider,
			},
			Language: a.cfg.Session.Voice.Language,
			Metrics:  a.metrics,
		})
		if err != nil {
			return err
		}
		a.voices = voices
	}

	if a.cfg.Server.ListenAddr == "" {
		return nil
	}

	if a.cfg.MCP.Enabled {
		srv, err := mcptools.New(mcptools.Config{
			Pipeline:  a.pipeline,
			Retriever: a.retriever,
			Filter:    a.filter,
			Metrics:   a.metrics,
			Version:   a.version,
		})
		if err != nil {
			return err
		}
		a.mcp = srv
	}

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.buildMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the configured surfaces and blocks until the session ends, the
// context is cancelled, or a server fails. In console mode a finished
// conversation stops the whole app; in voice and headless mode the HTTP
// surface serves until cancellation.
func (a *App) Run(parent context.Context) error {
	runCtx, cancel := context.WithCancel(parent)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	if a.server != nil {
		g.Go(func() error {
			slog.Info("http server listening", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sdCtx, sdCancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
			defer sdCancel()
			if err := a.server.Shutdown(sdCtx); err != nil {
				slog.Warn("http server shutdown", "err", err)
			}
			return nil
		})
	}

	if a.cfg.Session.Mode == config.SessionConsole {
		// The REPL blocks on its reader, which cancellation cannot unblock,
		// so it runs outside the group; a signal still exits promptly.
		done := make(chan error, 1)
		go func() { done <- a.runConsole(gctx) }()

		var sessionErr error
		select {
		case sessionErr = <-done:
		case <-gctx.Done():
		}
		cancel()
		waitErr := g.Wait()
		switch {
		case sessionErr != nil && !errors.Is(sessionErr, context.Canceled):
			return sessionErr
		case waitErr != nil:
			return waitErr
		default:
			return parent.Err()
		}
	}

	// Voice and headless surfaces are HTTP-served; block until a signal or
	// a server failure stops the group.
	if a.server == nil {
		<-gctx.Done()
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return parent.Err()
}

// runConsole drives one console conversation over the configured streams.
func (a *App) runConsole(ctx context.Context) error {
	console, err := session.NewConsole(session.ConsoleConfig{
		Pipeline: a.pipeline,
		Input:    a.consoleIn,
		Output:   a.consoleOut,
		Metrics:  a.metrics,
	})
	if err != nil {
		return err
	}
	return console.Run(ctx)
}

// Ask runs a single question through the answer pipeline, outside any
// session. It backs the one-shot command line mode.
func (a *App) Ask(ctx context.Context, question string) (pipeline.Result, error) {
	return a.pipeline.Process(ctx, question)
}

// Handler returns the HTTP handler carrying the ops and API endpoints, or
// nil when no listen address is configured. Useful for serving through a
// custom listener and for tests.
func (a *App) Handler() http.Handler {
	if a.server == nil {
		return nil
	}
	return a.server.Handler
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// End live voice conversations first so their session gauge drains.
		if a.voices != nil {
			a.voices.CloseAll()
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
