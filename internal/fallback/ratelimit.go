package fallback

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

const (
	defaultRequestsPerSecond = 1.0
	defaultBurst             = 3
)

// RateLimited throttles calls to the wrapped [Handler] with a token bucket.
// Respond blocks until a token is available or ctx is done, so a burst of
// unmatched questions queues up instead of hammering the model API.
type RateLimited struct {
	next    Handler
	limiter *rate.Limiter
}

// Compile-time interface assertion.
var _ Handler = (*RateLimited)(nil)

// NewRateLimited wraps next with a token bucket admitting requestsPerSecond
// sustained calls and bursts of up to burst. Non-positive values select the
// defaults of 1 request per second with a burst of 3.
func NewRateLimited(next Handler, requestsPerSecond float64, burst int) (*RateLimited, error) {
	if next == nil {
		return nil, errors.New("fallback: next handler must not be nil")
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}, nil
}

// Respond waits for rate limit clearance, then delegates to the wrapped
// handler. Returns an error without calling the handler when ctx is cancelled
// or its deadline cannot accommodate the wait.
func (r *RateLimited) Respond(ctx context.Context, query string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("fallback: rate limit: %w", err)
	}
	return r.next.Respond(ctx, query)
}
