// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (e.g., a local whisper.cpp
// server or the in-process CGO bindings) and exposes a uniform batch
// interface: one complete spoken utterance in, one Transcript out. Callers are
// responsible for segmenting audio into utterances before calling Transcribe;
// the voice session does this by accepting one WAV recording per turn.
//
// Implementations must be safe for concurrent use. Multiple utterances may be
// transcribed in parallel.
package stt

import "context"

// AudioConfig describes the format of the PCM audio handed to Transcribe,
// plus recognition hints. All fields must be compatible with what the
// underlying provider supports; see each provider's documentation for valid
// ranges.
type AudioConfig struct {
	// SampleRate is the audio sample rate in Hz. Zero means 16000, the rate
	// whisper models are trained on.
	SampleRate int

	// Channels is the number of interleaved audio channels. Zero means 1
	// (mono). Implementors may downmix multi-channel input internally.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en", "de").
	// An empty string uses the provider default.
	Language string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts one complete utterance of raw 16-bit signed
	// little-endian PCM audio into text. The audio must match the format
	// described by cfg (or the provider defaults where cfg fields are zero).
	//
	// Returns an error if the provider cannot be reached, rejects the audio,
	// or ctx is cancelled before the result arrives.
	Transcribe(ctx context.Context, pcm []byte, cfg AudioConfig) (Transcript, error)
}
