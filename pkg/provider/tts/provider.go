// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or a local
// Piper instance) and turns answer text into raw PCM audio. Synthesize covers
// the common case of speaking one complete answer per conversation turn;
// SynthesizeStream accepts a channel of text fragments for callers that want
// audio while the answer is still being produced.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text into a single raw PCM audio buffer using the
	// given voice. It blocks until synthesis finishes or ctx is cancelled.
	//
	// Implementations should return an error for empty text, an unknown
	// voice, or when no audio could be produced.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) ([]byte, error)

	// SynthesizeStream consumes text fragments from the text channel and
	// returns a channel that emits raw PCM audio byte slices as they are
	// synthesised, so callers can start playback before the full answer text
	// is available.
	//
	// The returned audio channel is closed by the implementation when all text
	// has been synthesised or when ctx is cancelled. The caller must drain the
	// audio channel to avoid blocking the provider's internal goroutines.
	//
	// Returns a non-nil error only if the stream cannot be started. Errors
	// encountered during synthesis are signalled by closing the audio channel
	// early; callers should check ctx.Err() to distinguish cancellation from
	// provider errors.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error)
}
