package fallback

import (
	"context"
	"errors"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/baristabuddy/baristabuddy/internal/observe"
)

// DefaultCacheTTL is how long a cached answer stays valid when no TTL is
// configured.
const DefaultCacheTTL = 15 * time.Minute

// Cached memoizes the answers of the wrapped [Handler]. Because the pipeline
// is immutable after startup, the same in-domain query always misses retrieval
// the same way, so serving a remembered model answer changes nothing but
// latency and cost. Errors are never cached; a failed delegation is retried on
// the next occurrence of the query.
type Cached struct {
	next    Handler
	cache   *gocache.Cache
	metrics *observe.Metrics
}

// Compile-time interface assertion.
var _ Handler = (*Cached)(nil)

// CachedOption is a functional option for configuring a [Cached] handler.
type CachedOption func(*Cached)

// WithCacheMetrics enables hit/miss counting through m.
func WithCacheMetrics(m *observe.Metrics) CachedOption {
	return func(c *Cached) {
		c.metrics = m
	}
}

// NewCached wraps next with an answer cache. A non-positive ttl selects
// [DefaultCacheTTL]. Expired entries are collected in the background at twice
// the TTL.
func NewCached(next Handler, ttl time.Duration, opts ...CachedOption) (*Cached, error) {
	if next == nil {
		return nil, errors.New("fallback: next handler must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cached{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Respond serves the answer from the cache when the query has been seen within
// the TTL, and delegates to the wrapped handler otherwise.
func (c *Cached) Respond(ctx context.Context, query string) (string, error) {
	key := cacheKey(query)
	if answer, found := c.cache.Get(key); found {
		c.record(ctx, "hit")
		return answer.(string), nil
	}
	c.record(ctx, "miss")

	answer, err := c.next.Respond(ctx, query)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(key, answer)
	return answer, nil
}

func (c *Cached) record(ctx context.Context, result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordCacheLookup(ctx, result)
}

// cacheKey folds case and surrounding whitespace so a re-asked question hits
// regardless of how the transcriber punctuated it this time.
func cacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
