package whisper

// nativeConfig holds settings shared by the CGO-backed NativeProvider and its
// stub, so NativeOption values compile with or without the whisper_native
// build tag.
type nativeConfig struct {
	language string
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*nativeConfig)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en". A per-call
// AudioConfig.Language takes precedence.
func WithNativeLanguage(lang string) NativeOption {
	return func(c *nativeConfig) { c.language = lang }
}
