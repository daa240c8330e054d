// Package topic implements keyword admission for incoming queries. It checks
// normalized query text against a set of coffee-domain keywords and decides
// whether the query may proceed to retrieval or must be refused.
//
// Matching is plain substring containment on the lower-cased query, so short
// keywords can over-match (a query containing "beanbag" is admitted by
// "bean"). The filter accepts that rather than risk refusing genuine coffee
// questions; an admitted off-topic query still has to clear retrieval.
//
// A Filter is stateless after construction and safe for concurrent use.
package topic

import (
	"fmt"
	"strings"
)

// Decision reason strings. The matched-keyword reason is produced by
// [MatchReason].
const (
	ReasonEmptyQuery = "empty query"
	ReasonNoKeywords = "no keywords configured"
	ReasonNoMatch    = "no coffee keyword found"
)

// MatchReason formats the reason string for a query admitted by keyword.
func MatchReason(keyword string) string {
	return fmt.Sprintf("contains keyword %q", keyword)
}

// Decision is the outcome of admission for one query.
type Decision struct {
	// Related reports whether the query may proceed.
	Related bool

	// Confidence is 1 for a keyword hit and 0 otherwise. Substring
	// containment gives no graded signal in between.
	Confidence float64

	// Reason names the matched keyword or explains the refusal.
	Reason string
}

// KeywordSet is an immutable, ordered set of admission keywords. Order is
// load order and determines which keyword a Decision names when several
// match. Construct with [NewKeywordSet]; the zero value admits nothing.
type KeywordSet struct {
	words []string
}

// NewKeywordSet normalizes words into a KeywordSet. Keywords are lower-cased
// and trimmed; duplicates keep their first position. An empty keyword is an
// error.
func NewKeywordSet(words []string) (KeywordSet, error) {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for i, w := range words {
		word := strings.ToLower(strings.TrimSpace(w))
		if word == "" {
			return KeywordSet{}, fmt.Errorf("topic: keyword %d is empty", i)
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	return KeywordSet{words: out}, nil
}

// Words returns the keywords in order.
func (s KeywordSet) Words() []string {
	out := make([]string, len(s.words))
	copy(out, s.words)
	return out
}

// Len reports the number of keywords.
func (s KeywordSet) Len() int { return len(s.words) }

// Filter decides whether queries are coffee-related.
type Filter struct {
	keywords KeywordSet
}

// NewFilter creates a Filter over the given keywords. An empty set fails
// closed: every query is refused.
func NewFilter(keywords KeywordSet) *Filter {
	return &Filter{keywords: keywords}
}

// Evaluate checks query against the keyword set. The empty (or all-space)
// query is refused with [ReasonEmptyQuery]; with no keywords configured every
// query is refused with [ReasonNoKeywords]. The first matching keyword in set
// order names the decision.
func (f *Filter) Evaluate(query string) Decision {
	if strings.TrimSpace(query) == "" {
		return Decision{Reason: ReasonEmptyQuery}
	}
	if f.keywords.Len() == 0 {
		return Decision{Reason: ReasonNoKeywords}
	}

	lower := strings.ToLower(query)
	for _, kw := range f.keywords.words {
		if strings.Contains(lower, kw) {
			return Decision{Related: true, Confidence: 1, Reason: MatchReason(kw)}
		}
	}
	return Decision{Reason: ReasonNoMatch}
}

// Related is a convenience wrapper around [Filter.Evaluate] for callers that
// only need the boolean.
func (f *Filter) Related(query string) bool {
	return f.Evaluate(query).Related
}
