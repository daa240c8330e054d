package config

import "reflect"

// Diff describes what changed between two configurations, grouped by how the
// change can be applied. Only the log level can be applied to a running
// process; everything else needs a restart.
type Diff struct {
	// LogLevelChanged reports that server.log_level changed. The new level
	// can be applied live through the process slog level var.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DatasetsChanged reports that a dataset file path changed. Applying it
	// means reloading the datasets and rebuilding the pipeline.
	DatasetsChanged bool

	// TuningChanged reports that pipeline or fallback tuning changed.
	TuningChanged bool

	// ProvidersChanged reports a change anywhere in the provider chains or
	// the breaker settings. Applying it means reconstructing providers.
	ProvidersChanged bool

	// ServerChanged reports that the listen address, session surface,
	// history, or MCP settings changed.
	ServerChanged bool
}

// Any reports whether the diff contains at least one change.
func (d Diff) Any() bool {
	return d.LogLevelChanged || d.RequiresRestart()
}

// RequiresRestart reports whether the diff contains a change that cannot be
// applied to the running process.
func (d Diff) RequiresRestart() bool {
	return d.DatasetsChanged || d.TuningChanged || d.ProvidersChanged || d.ServerChanged
}

// Compare returns the differences between old and new.
func Compare(old, new *Config) Diff {
	d := Diff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Datasets != new.Datasets {
		d.DatasetsChanged = true
	}

	if old.Pipeline != new.Pipeline || old.Fallback != new.Fallback {
		d.TuningChanged = true
	}

	if !providersEqual(old.Providers, new.Providers) {
		d.ProvidersChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Session != new.Session ||
		old.History != new.History ||
		old.MCP != new.MCP {
		d.ServerChanged = true
	}

	return d
}

// providersEqual reports whether two provider configurations select the same
// chains with the same breaker settings.
func providersEqual(a, b ProvidersConfig) bool {
	return a.Breaker == b.Breaker &&
		chainEqual(a.LLM, b.LLM) &&
		chainEqual(a.STT, b.STT) &&
		chainEqual(a.TTS, b.TTS)
}

func chainEqual(a, b ProviderChain) bool {
	if !entryEqual(a.Primary, b.Primary) || len(a.Fallbacks) != len(b.Fallbacks) {
		return false
	}
	for i := range a.Fallbacks {
		if !entryEqual(a.Fallbacks[i], b.Fallbacks[i]) {
			return false
		}
	}
	return true
}

// entryEqual compares two provider entries. The Options map holds arbitrary
// YAML values, so it needs a deep comparison.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name &&
		a.APIKey == b.APIKey &&
		a.BaseURL == b.BaseURL &&
		a.Model == b.Model &&
		reflect.DeepEqual(a.Options, b.Options)
}
