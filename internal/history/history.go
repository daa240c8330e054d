// Package history records answered queries for later inspection.
//
// A [Store] is an append-only log of [Record] values, one per answered
// query. History is purely diagnostic: nothing in the answer path ever
// reads it back, so a failed write must not fail the query that produced
// it. Callers log best-effort and at most report the error.
//
// Two implementations exist: [Noop], the default when no database is
// configured, and the PostgreSQL store in the postgres subpackage.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is reported by read operations on stores that have no
// backing database, so callers can tell an absent backend apart from an
// empty log.
var ErrNotConfigured = errors.New("history: no store configured")

// sessionKey is the context key for the session identifier.
type sessionKey struct{}

// WithSession returns a context carrying the session identifier sid.
// Surfaces attach their session ID once; the pipeline reads it back via
// [SessionID] when building records.
func WithSession(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sid)
}

// SessionID returns the session identifier attached by [WithSession], or
// the empty string when the context carries none.
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionKey{}).(string)
	return sid
}

// Record is one answered query as written to the log.
type Record struct {
	// SessionID groups records belonging to one console or voice session.
	SessionID string

	// Query is the raw text as typed or transcribed.
	Query string

	// Normalized is the query after pronunciation correction.
	Normalized string

	// Outcome names the pipeline stage that produced the answer
	// ("refused", "knowledge" or "fallback").
	Outcome string

	// Question is the knowledge-base question that matched. Empty when the
	// answer did not come from the knowledge base.
	Question string

	// Score is the retrieval score of the matched question, 0 when none.
	Score float64

	// Answer is the text returned to the user.
	Answer string

	// Latency is the end-to-end processing time for this query.
	Latency time.Duration

	// Timestamp is when the query was answered.
	Timestamp time.Time
}

// Store is an append-only query log.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Log appends rec to the store.
	Log(ctx context.Context, rec Record) error

	// Recent returns up to limit records for sessionID, newest first.
	// Returns an empty (non-nil) slice when the session has no records.
	Recent(ctx context.Context, sessionID string, limit int) ([]Record, error)

	// Close releases any resources held by the store.
	Close()
}

// Noop is a Store that discards every record. It is used when no history
// database is configured, so the pipeline can log unconditionally.
type Noop struct{}

var _ Store = Noop{}

// Log implements [Store]. It discards rec and always succeeds.
func (Noop) Log(context.Context, Record) error { return nil }

// Recent implements [Store]. It reports [ErrNotConfigured].
func (Noop) Recent(context.Context, string, int) ([]Record, error) {
	return nil, ErrNotConfigured
}

// Close implements [Store]. It does nothing.
func (Noop) Close() {}
