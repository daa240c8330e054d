// Package pipeline orchestrates the answer path for a single query.
//
// Every query runs the same stages in order:
//
//  1. Pronunciation normalization rewrites mispronounced coffee terms
//     (internal/lexicon).
//  2. Topic admission decides whether the query is about coffee at all
//     (internal/topic). Rejected queries get a fixed refusal message.
//  3. Retrieval looks the normalized query up in the answer base
//     (internal/knowledge). The top match, if any, is returned verbatim.
//  4. On a retrieval miss the normalized, confirmed-in-domain query is
//     delegated to the fallback collaborator exactly once and its response
//     is returned verbatim.
//
// There are no retries or loops inside one query; the session layer
// re-invokes [Pipeline.Process] per turn. All shared state is immutable
// after construction, so concurrent Process calls are safe.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/baristabuddy/baristabuddy/internal/history"
	"github.com/baristabuddy/baristabuddy/internal/knowledge"
	"github.com/baristabuddy/baristabuddy/internal/lexicon"
	"github.com/baristabuddy/baristabuddy/internal/observe"
	"github.com/baristabuddy/baristabuddy/internal/topic"
)

// RefusalMessage is the fixed reply for queries outside the coffee domain.
const RefusalMessage = "Sorry, I can only help with coffee-related questions."

// Source names the pipeline stage that produced an answer.
type Source string

const (
	// SourceRefused marks queries rejected by topic admission.
	SourceRefused Source = "refused"

	// SourceKnowledge marks answers served from the answer base.
	SourceKnowledge Source = "knowledge"

	// SourceFallback marks answers produced by the fallback collaborator.
	SourceFallback Source = "fallback"
)

// Result is the outcome of one [Pipeline.Process] call.
type Result struct {
	// Answer is the final reply text.
	Answer string

	// Source names the stage that produced Answer.
	Source Source

	// Decision is the topic admission verdict for the normalized query.
	Decision topic.Decision

	// Corrections lists the pronunciation rewrites that were applied.
	// Nil when the query needed none.
	Corrections []lexicon.Correction

	// Normalized is the query after pronunciation correction.
	Normalized string

	// Score is the retrieval score of the matched question when Source is
	// [SourceKnowledge], 0 otherwise.
	Score float64
}

// Fallback produces an answer for an in-domain query the answer base could
// not serve. Implementations must respect ctx cancellation.
type Fallback interface {
	Respond(ctx context.Context, query string) (string, error)
}

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithMetrics enables metric recording through m. Without this option the
// pipeline records nothing.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithHistory appends every answered query to store. Without this option
// no history is kept.
func WithHistory(store history.Store) Option {
	return func(p *Pipeline) { p.store = store }
}

// Pipeline answers queries by running them through normalization, topic
// admission, retrieval, and, last, the fallback collaborator.
//
// Pipeline is safe for concurrent use; one instance serves all sessions.
type Pipeline struct {
	normalizer *lexicon.Normalizer
	filter     *topic.Filter
	retriever  *knowledge.Retriever
	fallback   Fallback

	metrics *observe.Metrics
	store   history.Store
}

// New constructs a Pipeline from its four collaborators. All of them are
// required; a deployment without an LLM uses a static fallback handler
// rather than a nil one.
func New(normalizer *lexicon.Normalizer, filter *topic.Filter, retriever *knowledge.Retriever, fallback Fallback, opts ...Option) (*Pipeline, error) {
	var errs []error
	if normalizer == nil {
		errs = append(errs, errors.New("pipeline: normalizer is nil"))
	}
	if filter == nil {
		errs = append(errs, errors.New("pipeline: filter is nil"))
	}
	if retriever == nil {
		errs = append(errs, errors.New("pipeline: retriever is nil"))
	}
	if fallback == nil {
		errs = append(errs, errors.New("pipeline: fallback is nil"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	p := &Pipeline{
		normalizer: normalizer,
		filter:     filter,
		retriever:  retriever,
		fallback:   fallback,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Process answers one query and reports which stage answered it.
//
// A refusal and a knowledge hit are both terminal: later stages do not
// run. Only a fallback failure produces an error; the returned error wraps
// the handler's and the pipeline adds no retry. Metric recording and
// history writes never affect the result.
func (p *Pipeline) Process(ctx context.Context, rawText string) (Result, error) {
	start := time.Now()

	normalized, corrections := p.normalizer.CorrectDetailed(rawText)
	p.recordCorrections(ctx, corrections)

	res := Result{
		Normalized:  normalized,
		Corrections: corrections,
	}

	res.Decision = p.filter.Evaluate(normalized)
	if !res.Decision.Related {
		res.Answer = RefusalMessage
		res.Source = SourceRefused
		p.finish(ctx, rawText, res, "", time.Since(start))
		return res, nil
	}

	retrievalStart := time.Now()
	matches := p.retriever.Retrieve(normalized, 1)
	if p.metrics != nil {
		p.metrics.RetrievalDuration.Record(ctx, time.Since(retrievalStart).Seconds())
	}
	if len(matches) > 0 {
		top := matches[0]
		res.Answer = top.Answer
		res.Source = SourceKnowledge
		res.Score = top.Score
		p.finish(ctx, rawText, res, top.Question, time.Since(start))
		return res, nil
	}

	fallbackStart := time.Now()
	reply, err := p.fallback.Respond(ctx, normalized)
	if p.metrics != nil {
		p.metrics.FallbackDuration.Record(ctx, time.Since(fallbackStart).Seconds())
	}
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: fallback: %w", err)
	}

	res.Answer = reply
	res.Source = SourceFallback
	p.finish(ctx, rawText, res, "", time.Since(start))
	return res, nil
}

// recordCorrections counts each applied rewrite by method.
func (p *Pipeline) recordCorrections(ctx context.Context, corrections []lexicon.Correction) {
	if p.metrics == nil {
		return
	}
	for _, c := range corrections {
		p.metrics.RecordCorrection(ctx, c.Method)
	}
}

// finish records the query outcome and appends the history record. A
// failed history write is logged and swallowed; history must never
// influence answering.
func (p *Pipeline) finish(ctx context.Context, rawText string, res Result, question string, elapsed time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordQuery(ctx, string(res.Source))
		p.metrics.QueryDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(observe.Attr("source", string(res.Source))))
	}

	if p.store == nil {
		return
	}
	rec := history.Record{
		SessionID:  history.SessionID(ctx),
		Query:      rawText,
		Normalized: res.Normalized,
		Outcome:    string(res.Source),
		Question:   question,
		Score:      res.Score,
		Answer:     res.Answer,
		Latency:    elapsed,
		Timestamp:  time.Now(),
	}
	if err := p.store.Log(ctx, rec); err != nil {
		slog.Warn("query history write failed", "session", rec.SessionID, "err", err)
	}
}
