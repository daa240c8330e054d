package fallback

import "context"

// DefaultStaticMessage is spoken by [Static] when no custom message is
// configured.
const DefaultStaticMessage = "I don't have an answer for that one yet. " +
	"Try asking about brewing methods, espresso drinks, or coffee beans."

// Static is a [Handler] that answers every query with the same fixed message.
// It backs deployments that run without a language model, keeping the
// pipeline's delegate-exactly-once contract intact.
type Static struct {
	message string
}

// Compile-time interface assertion.
var _ Handler = (*Static)(nil)

// NewStatic creates a fixed-message handler. An empty message selects
// [DefaultStaticMessage].
func NewStatic(message string) *Static {
	if message == "" {
		message = DefaultStaticMessage
	}
	return &Static{message: message}
}

// Respond returns the configured message. It never fails.
func (s *Static) Respond(context.Context, string) (string, error) {
	return s.message, nil
}
