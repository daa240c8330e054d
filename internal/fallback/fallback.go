// Package fallback provides the generative answer handlers that the pipeline
// delegates to when the answer base has no close match for an in-domain query.
//
// The central abstraction is [Handler], a single-method interface the
// orchestrator calls exactly once per unanswered query. The package ships an
// LLM-backed handler ([LLM]), a fixed-message handler for deployments without
// a language model ([Static]), and two composable middlewares that wrap any
// Handler: [Cached] memoizes answers with a TTL and [RateLimited] throttles
// how often the underlying model may be called. The production chain built by
// the config registry is Cached around RateLimited around LLM, so a repeated
// question is answered from memory before it ever counts against the limiter.
//
// All handlers are safe for concurrent use.
package fallback

import "context"

// Handler produces an answer for an in-domain query the answer base could not
// serve. Implementations must respect ctx cancellation.
type Handler interface {
	Respond(ctx context.Context, query string) (string, error)
}
