package resilience

import (
	"context"

	"github.com/baristabuddy/baristabuddy/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// speech recognisers. Each backend has its own circuit breaker, so a voice
// session keeps transcribing when the primary recogniser goes down.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// BreakerStates reports the circuit breaker state per backend.
func (f *STTFallback) BreakerStates() map[string]State {
	return f.group.BreakerStates()
}

// Transcribe sends the utterance to the first healthy recogniser. If the
// primary fails, subsequent fallbacks are tried with the same audio.
func (f *STTFallback) Transcribe(ctx context.Context, pcm []byte, cfg stt.AudioConfig) (stt.Transcript, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.Transcript, error) {
		return p.Transcribe(ctx, pcm, cfg)
	})
}
