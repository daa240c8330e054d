package knowledge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/baristabuddy/baristabuddy/internal/textmatch"
)

const (
	// DefaultCutoff is the minimum similarity an entry needs to count as a
	// match. 0.6 keeps loose paraphrases out; deployments that prefer
	// recall over precision lower it to 0.5 in config.
	DefaultCutoff = 0.6

	// DefaultTopK is the result count for search-style callers. The answer
	// path only ever uses the top match.
	DefaultTopK = 3
)

// Match is one retrieval hit, ephemeral per query.
type Match struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score"`
}

// RetrieverOption is a functional option for configuring a [Retriever].
type RetrieverOption func(*Retriever)

// WithCutoff overrides the similarity cutoff. Default: [DefaultCutoff].
func WithCutoff(c float64) RetrieverOption {
	return func(r *Retriever) { r.cutoff = c }
}

// Retriever scores queries against a [Base]. It is read-only after
// construction and safe for concurrent use.
type Retriever struct {
	base   *Base
	cutoff float64
}

// NewRetriever builds a Retriever over base with the supplied options.
func NewRetriever(base *Base, opts ...RetrieverOption) (*Retriever, error) {
	if base == nil {
		return nil, fmt.Errorf("retriever: base must not be nil")
	}
	r := &Retriever{base: base, cutoff: DefaultCutoff}
	for _, o := range opts {
		o(r)
	}
	if r.cutoff <= 0 || r.cutoff > 1 {
		return nil, fmt.Errorf("retriever: cutoff %v outside (0, 1]", r.cutoff)
	}
	return r, nil
}

// Cutoff returns the configured similarity cutoff.
func (r *Retriever) Cutoff() float64 { return r.cutoff }

// Retrieve scores query against every entry's question and returns the
// matches at or above the cutoff, best first. Equal scores keep base load
// order. topK below 1 is treated as 1. The result is never nil.
func (r *Retriever) Retrieve(query string, topK int) []Match {
	if topK < 1 {
		topK = 1
	}
	lower := strings.ToLower(query)

	matches := make([]Match, 0, topK)
	for _, e := range r.base.entries {
		if textmatch.QuickRatio(lower, e.Question) < r.cutoff {
			continue
		}
		score := textmatch.Ratio(lower, e.Question)
		if score < r.cutoff {
			continue
		}
		matches = append(matches, Match{Question: e.Question, Answer: e.Answer, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// Answer returns the best answer for query and its score. When nothing
// clears the cutoff it returns ("", 0); callers treat score 0 as "no
// confident match".
func (r *Retriever) Answer(query string) (string, float64) {
	matches := r.Retrieve(query, 1)
	if len(matches) == 0 {
		return "", 0
	}
	return matches[0].Answer, matches[0].Score
}
