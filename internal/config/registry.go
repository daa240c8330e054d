package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/baristabuddy/baristabuddy/internal/resilience"
	"github.com/baristabuddy/baristabuddy/pkg/provider/llm"
	"github.com/baristabuddy/baristabuddy/pkg/provider/stt"
	"github.com/baristabuddy/baristabuddy/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]func(ProviderEntry) (llm.Provider, error)
	stt map[string]func(ProviderEntry) (stt.Provider, error)
	tts map[string]func(ProviderEntry) (tts.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm: make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt: make(map[string]func(ProviderEntry) (stt.Provider, error)),
		tts: make(map[string]func(ProviderEntry) (tts.Provider, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLLMChain instantiates every provider in chain and wires them into a
// failover group: the primary first, then each fallback in order, every one
// guarded by its own circuit breaker configured from breaker.
func (r *Registry) CreateLLMChain(chain ProviderChain, breaker BreakerConfig) (*resilience.LLMFallback, error) {
	primary, err := r.CreateLLM(chain.Primary)
	if err != nil {
		return nil, fmt.Errorf("config: llm primary: %w", err)
	}
	group := resilience.NewLLMFallback(primary, chain.Primary.Name, resilience.FallbackConfig{
		CircuitBreaker: breaker.CircuitBreaker(),
	})
	for _, entry := range chain.Fallbacks {
		p, err := r.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("config: llm fallback %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, p)
	}
	return group, nil
}

// CreateSTTChain instantiates every STT provider in chain and wires them into
// a failover group. See [Registry.CreateLLMChain] for the chain semantics.
func (r *Registry) CreateSTTChain(chain ProviderChain, breaker BreakerConfig) (*resilience.STTFallback, error) {
	primary, err := r.CreateSTT(chain.Primary)
	if err != nil {
		return nil, fmt.Errorf("config: stt primary: %w", err)
	}
	group := resilience.NewSTTFallback(primary, chain.Primary.Name, resilience.FallbackConfig{
		CircuitBreaker: breaker.CircuitBreaker(),
	})
	for _, entry := range chain.Fallbacks {
		p, err := r.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("config: stt fallback %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, p)
	}
	return group, nil
}

// CreateTTSChain instantiates every TTS provider in chain and wires them into
// a failover group. See [Registry.CreateLLMChain] for the chain semantics.
func (r *Registry) CreateTTSChain(chain ProviderChain, breaker BreakerConfig) (*resilience.TTSFallback, error) {
	primary, err := r.CreateTTS(chain.Primary)
	if err != nil {
		return nil, fmt.Errorf("config: tts primary: %w", err)
	}
	group := resilience.NewTTSFallback(primary, chain.Primary.Name, resilience.FallbackConfig{
		CircuitBreaker: breaker.CircuitBreaker(),
	})
	for _, entry := range chain.Fallbacks {
		p, err := r.CreateTTS(entry)
		if err != nil {
			return nil, fmt.Errorf("config: tts fallback %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, p)
	}
	return group, nil
}
