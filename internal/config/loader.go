package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/baristabuddy/baristabuddy/internal/lexicon"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"whisper", "whisper-native", "deepgram"},
	"tts": {"elevenlabs", "coqui"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and validates
// the result. Useful in tests where configs are constructed from string
// literals. Unknown YAML fields are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills the fields the file left unset. Numeric tuning knobs
// stay zero here; their consumers substitute the package defaults so that a
// config snapshot never disagrees with the code constants.
func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Session.Mode == "" {
		cfg.Session.Mode = SessionConsole
	}
	if cfg.Pipeline.NormalizerMode == "" {
		cfg.Pipeline.NormalizerMode = lexicon.ModeLiteral
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Session
	if cfg.Session.Mode != "" && !cfg.Session.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("session.mode %q is invalid; valid values: console, voice, headless", cfg.Session.Mode))
	}

	// Session mode ↔ provider cross-validation
	if cfg.Session.Mode == SessionVoice {
		if !cfg.Providers.STT.Configured() {
			errs = append(errs, fmt.Errorf("session.mode %q requires an STT provider but providers.stt.primary is not configured", cfg.Session.Mode))
		}
		if !cfg.Providers.TTS.Configured() {
			errs = append(errs, fmt.Errorf("session.mode %q requires a TTS provider but providers.tts.primary is not configured", cfg.Session.Mode))
		}
		if cfg.Server.ListenAddr == "" {
			errs = append(errs, fmt.Errorf("session.mode %q requires server.listen_addr; utterances are served over HTTP", cfg.Session.Mode))
		}
	}

	// Voice provider ↔ TTS provider cross-validation
	if v := cfg.Session.Voice.Provider; v != "" && cfg.Providers.TTS.Configured() && v != cfg.Providers.TTS.Primary.Name {
		slog.Warn("session voice provider does not match the configured TTS provider",
			"voice_provider", v,
			"tts_provider", cfg.Providers.TTS.Primary.Name,
		)
	}

	// Pipeline tuning
	if m := cfg.Pipeline.NormalizerMode; m != "" && !m.IsValid() {
		errs = append(errs, fmt.Errorf("pipeline.normalizer_mode %q is invalid; valid values: literal, fuzzy, phonetic", m))
	}
	if c := cfg.Pipeline.FuzzyCutoff; c != 0 && (c < 0 || c > 1) {
		errs = append(errs, fmt.Errorf("pipeline.fuzzy_cutoff %.2f is out of range (0, 1]", c))
	}
	if c := cfg.Pipeline.RetrievalCutoff; c != 0 && (c < 0 || c > 1) {
		errs = append(errs, fmt.Errorf("pipeline.retrieval_cutoff %.2f is out of range (0, 1]", c))
	}

	// Provider chains
	errs = append(errs, validateChain("llm", cfg.Providers.LLM)...)
	errs = append(errs, validateChain("stt", cfg.Providers.STT)...)
	errs = append(errs, validateChain("tts", cfg.Providers.TTS)...)

	if cfg.Providers.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("providers.breaker.max_failures must not be negative, got %d", cfg.Providers.Breaker.MaxFailures))
	}
	if cfg.Providers.Breaker.HalfOpenMax < 0 {
		errs = append(errs, fmt.Errorf("providers.breaker.half_open_max must not be negative, got %d", cfg.Providers.Breaker.HalfOpenMax))
	}
	errs = append(errs, validateDuration("providers.breaker.reset_timeout", cfg.Providers.Breaker.ResetTimeout)...)

	// Fallback handler tuning
	if t := cfg.Fallback.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("fallback.temperature %.2f is out of range [0, 2]", t))
	}
	if cfg.Fallback.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("fallback.max_tokens must not be negative, got %d", cfg.Fallback.MaxTokens))
	}
	if cfg.Fallback.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("fallback.rate_per_second must not be negative, got %.2f", cfg.Fallback.RatePerSecond))
	}
	if cfg.Fallback.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("fallback.rate_burst must not be negative, got %d", cfg.Fallback.RateBurst))
	}
	errs = append(errs, validateDuration("fallback.cache_ttl", cfg.Fallback.CacheTTL)...)

	// Provider availability warnings
	if !cfg.Providers.LLM.Configured() {
		slog.Warn("no LLM provider configured; unmatched coffee questions will get the static fallback message")
	}
	if cfg.History.PostgresDSN == "" {
		slog.Warn("history.postgres_dsn is empty; answered questions will not be logged")
	}

	// MCP
	if cfg.MCP.Enabled && cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("mcp.enabled requires server.listen_addr to be set"))
	}

	return errors.Join(errs...)
}

// validateChain checks one provider chain for structural problems. Breaker
// state is tracked per provider name, so names within a chain must be unique.
// Unknown names only warn; a third-party registry may add names this package
// does not know about.
func validateChain(kind string, chain ProviderChain) []error {
	var errs []error

	validateProviderName(kind, chain.Primary.Name)
	if !chain.Configured() && len(chain.Fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("providers.%s.fallbacks are configured without a primary", kind))
	}

	seen := make(map[string]int, len(chain.Fallbacks))
	for i, entry := range chain.Fallbacks {
		prefix := fmt.Sprintf("providers.%s.fallbacks[%d]", kind, i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName(kind, entry.Name)
		if entry.Name == chain.Primary.Name {
			errs = append(errs, fmt.Errorf("%s.name %q duplicates the primary", prefix, entry.Name))
		} else if prev, ok := seen[entry.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of fallbacks[%d]", prefix, entry.Name, prev))
		}
		seen[entry.Name] = i
	}
	return errs
}

// validateDuration checks that value, when set, parses as a non-negative Go
// duration.
func validateDuration(field, value string) []error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s %q is not a valid duration (want e.g. \"30s\", \"15m\")", field, value)}
	}
	if d < 0 {
		return []error{fmt.Errorf("%s must not be negative, got %q", field, value)}
	}
	return nil
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
