// Command baristabuddy is the main entry point for the Barista Buddy server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/baristabuddy/baristabuddy/internal/app"
	"github.com/baristabuddy/baristabuddy/internal/config"
	"github.com/baristabuddy/baristabuddy/internal/observe"
	"github.com/baristabuddy/baristabuddy/pkg/provider/llm"
	"github.com/baristabuddy/baristabuddy/pkg/provider/llm/anyllm"
	oallm "github.com/baristabuddy/baristabuddy/pkg/provider/llm/openai"
	"github.com/baristabuddy/baristabuddy/pkg/provider/stt"
	"github.com/baristabuddy/baristabuddy/pkg/provider/stt/deepgram"
	"github.com/baristabuddy/baristabuddy/pkg/provider/stt/whisper"
	"github.com/baristabuddy/baristabuddy/pkg/provider/tts"
	"github.com/baristabuddy/baristabuddy/pkg/provider/tts/coqui"
	"github.com/baristabuddy/baristabuddy/pkg/provider/tts/elevenlabs"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	askQuestion := flag.String("ask", "", "answer a single question on stdout and exit")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("baristabuddy " + version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "baristabuddy: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "baristabuddy: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so the config watcher can adjust it on a
	// running process.
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("barista buddy starting",
		"version", version,
		"config", *configPath,
		"session_mode", cfg.Session.Mode,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "baristabuddy",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate provider chains ───────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── One-shot question ─────────────────────────────────────────────────────
	if *askQuestion != "" {
		return runAsk(ctx, cfg, providers, *askQuestion)
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers, app.WithVersion(version))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(_, _ *config.Config, d config.Diff) {
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level applied", "level", d.NewLogLevel)
		}
		if d.RequiresRestart() {
			slog.Warn("configuration changed on disk; restart to apply the remaining changes")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("ready — press Ctrl+C to shut down", "mode", cfg.Session.Mode)

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// runAsk answers a single question on stdout and exits. It reuses the full
// application wiring so normalization, admission, retrieval, and history
// behave exactly as they do in a session.
func runAsk(ctx context.Context, cfg *config.Config, providers *app.Providers, question string) int {
	application, err := app.New(ctx, cfg, providers, app.WithVersion(version))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Shutdown(sdCtx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}()

	res, err := application.Ask(ctx, question)
	if err != nil {
		slog.Error("could not answer", "err", err)
		return 1
	}
	fmt.Println(res.Answer)
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps provider kinds to the implementations that ship with
// Barista Buddy. Used for startup logging.
var builtinProviders = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"whisper", "whisper-native", "deepgram"},
	"tts": {"elevenlabs", "coqui"},
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai goes through the native client. The remaining hosted providers
	// share the any-llm adapter with the same optional APIKey + BaseURL shape.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// Debug log of all registered providers.
	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildProviders instantiates the provider chains named in cfg using the
// registry and returns them in an [app.Providers] struct for the application
// to consume. An unconfigured chain stays nil: the app then degrades to its
// static fallback handler, and voice mode refuses to start.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if chain := cfg.Providers.LLM; chain.Configured() {
		group, err := reg.CreateLLMChain(chain, cfg.Providers.Breaker)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("llm chain disabled, provider not registered", "primary", chain.Primary.Name, "err", err)
		} else if err != nil {
			return nil, fmt.Errorf("build llm chain: %w", err)
		} else {
			ps.LLM = group
			slog.Info("provider chain ready", "kind", "llm", "primary", chain.Primary.Name, "fallbacks", len(chain.Fallbacks))
		}
	}

	if chain := cfg.Providers.STT; chain.Configured() {
		group, err := reg.CreateSTTChain(chain, cfg.Providers.Breaker)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("stt chain disabled, provider not registered", "primary", chain.Primary.Name, "err", err)
		} else if err != nil {
			return nil, fmt.Errorf("build stt chain: %w", err)
		} else {
			ps.STT = group
			slog.Info("provider chain ready", "kind", "stt", "primary", chain.Primary.Name, "fallbacks", len(chain.Fallbacks))
		}
	}

	if chain := cfg.Providers.TTS; chain.Configured() {
		group, err := reg.CreateTTSChain(chain, cfg.Providers.Breaker)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("tts chain disabled, provider not registered", "primary", chain.Primary.Name, "err", err)
		} else if err != nil {
			return nil, fmt.Errorf("build tts chain: %w", err)
		} else {
			ps.TTS = group
			slog.Info("provider chain ready", "kind", "tts", "primary", chain.Primary.Name, "fallbacks", len(chain.Fallbacks))
		}
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║     Barista Buddy — startup summary   ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Primary.Name, cfg.Providers.LLM.Primary.Model)
	printProvider("STT", cfg.Providers.STT.Primary.Name, cfg.Providers.STT.Primary.Model)
	printProvider("TTS", cfg.Providers.TTS.Primary.Name, cfg.Providers.TTS.Primary.Model)
	fmt.Printf("║  Session mode    : %-19s ║\n", string(cfg.Session.Mode))
	fmt.Printf("║  Normalizer      : %-19s ║\n", string(cfg.Pipeline.NormalizerMode))
	fmt.Printf("║  Datasets        : %-19s ║\n", datasetsSummary(cfg.Datasets))
	if cfg.History.PostgresDSN != "" {
		fmt.Printf("║  Query history   : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Query history   : %-19s ║\n", "(disabled)")
	}
	if cfg.MCP.Enabled {
		fmt.Printf("║  MCP tools       : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  MCP tools       : %-19s ║\n", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// datasetsSummary describes which answer datasets come from files and which
// from the embedded defaults.
func datasetsSummary(d config.DatasetsConfig) string {
	custom := 0
	for _, path := range []string{d.Lexicon, d.Keywords, d.Knowledge} {
		if path != "" {
			custom++
		}
	}
	if custom == 0 {
		return "embedded"
	}
	return fmt.Sprintf("%d custom, %d embedded", custom, 3-custom)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
