package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/baristabuddy/baristabuddy/internal/observe"
	"github.com/baristabuddy/baristabuddy/pkg/provider/llm"
)

// DefaultSystemPrompt pins the model to the coffee domain. Topic admission has
// already run by the time a query reaches the fallback, so the in-prompt
// refusal only matters for borderline queries the keyword filter let through.
const DefaultSystemPrompt = "You are Barista Buddy, a coffee-only assistant. " +
	"Only answer questions related to coffee. " +
	"If the question is not about coffee, say: 'Sorry, I can only answer coffee questions.'"

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 200
)

// LLMOption is a functional option for configuring an [LLM] handler.
type LLMOption func(*LLM)

// WithSystemPrompt replaces [DefaultSystemPrompt].
func WithSystemPrompt(prompt string) LLMOption {
	return func(h *LLM) {
		h.systemPrompt = prompt
	}
}

// WithTemperature sets the sampling temperature. Default: 0.7.
func WithTemperature(temperature float64) LLMOption {
	return func(h *LLM) {
		h.temperature = temperature
	}
}

// WithMaxTokens caps the completion length. Default: 200.
func WithMaxTokens(maxTokens int) LLMOption {
	return func(h *LLM) {
		h.maxTokens = maxTokens
	}
}

// WithName sets the provider label used in metrics. Default: "llm".
func WithName(name string) LLMOption {
	return func(h *LLM) {
		h.name = name
	}
}

// WithMetrics enables request counting through m.
func WithMetrics(m *observe.Metrics) LLMOption {
	return func(h *LLM) {
		h.metrics = m
	}
}

// LLM answers unmatched coffee questions with a single-turn chat completion.
// The query becomes the sole user message; no conversation state is kept
// between calls.
type LLM struct {
	provider     llm.Provider
	systemPrompt string
	temperature  float64
	maxTokens    int
	name         string
	metrics      *observe.Metrics
}

// Compile-time interface assertion.
var _ Handler = (*LLM)(nil)

// NewLLM creates an LLM-backed [Handler] on top of provider. The provider is
// typically a resilience wrapper composed from the configured backends.
func NewLLM(provider llm.Provider, opts ...LLMOption) (*LLM, error) {
	if provider == nil {
		return nil, errors.New("fallback: provider must not be nil")
	}
	h := &LLM{
		provider:     provider,
		systemPrompt: DefaultSystemPrompt,
		temperature:  defaultTemperature,
		maxTokens:    defaultMaxTokens,
		name:         "llm",
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

// Respond sends the query to the model and returns its reply with surrounding
// whitespace removed. An empty reply is reported as an error so the session
// layer never speaks a blank answer.
func (h *LLM) Respond(ctx context.Context, query string) (string, error) {
	req := llm.CompletionRequest{
		Messages:     []llm.Message{{Role: "user", Content: query}},
		SystemPrompt: h.systemPrompt,
		Temperature:  h.temperature,
		MaxTokens:    h.maxTokens,
	}

	resp, err := h.provider.Complete(ctx, req)
	if err != nil {
		h.record(ctx, "error")
		return "", fmt.Errorf("fallback: completion: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		h.record(ctx, "empty")
		return "", errors.New("fallback: model returned an empty answer")
	}

	h.record(ctx, "ok")
	return strings.TrimSpace(resp.Content), nil
}

func (h *LLM) record(ctx context.Context, status string) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordProviderRequest(ctx, h.name, "completion", status)
}
