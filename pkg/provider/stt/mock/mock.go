// Package mock provides a test double for the stt package interface.
//
// Use Provider to feed controlled Transcript values to session code and to
// inspect the audio each call delivered.
//
// Example:
//
//	p := &mock.Provider{
//	    Results: []stt.Transcript{{Text: "how do I make espresso"}},
//	}
//	tr, _ := p.Transcribe(ctx, pcm, stt.AudioConfig{})
package mock

import (
	"context"
	"sync"

	"github.com/baristabuddy/baristabuddy/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// PCM is a copy of the audio bytes that were passed to Transcribe.
	PCM []byte
	// Cfg is the AudioConfig passed to Transcribe.
	Cfg stt.AudioConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Results is the sequence of Transcript values returned by successive
	// Transcribe calls. When more calls arrive than Results entries, the
	// last entry repeats. An empty Results yields zero-value Transcripts.
	Results []stt.Transcript

	// Err, if non-nil, is returned as the error from every Transcribe call.
	Err error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the next queued Transcript and Err.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte, cfg stt.AudioConfig) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	n := len(p.TranscribeCalls)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, PCM: cp, Cfg: cfg})

	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	if len(p.Results) == 0 {
		return stt.Transcript{}, nil
	}
	if n >= len(p.Results) {
		n = len(p.Results) - 1
	}
	return p.Results[n], nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
