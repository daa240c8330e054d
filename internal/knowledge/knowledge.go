// Package knowledge holds the question/answer base and the retriever that
// matches normalized queries against it.
//
// Matching is the Ratcliff/Obershelp sequence ratio from
// internal/textmatch, computed between the query and each entry's question.
// It is purely syntactic: no embeddings, no token statistics, no learned
// state. Phrasings far from any stored question simply miss and the caller
// falls back to its configured handler.
package knowledge

import (
	"errors"
	"fmt"
	"strings"
)

// Entry is one question/answer pair. Questions are stored lower-cased;
// answers are kept verbatim.
type Entry struct {
	Question string
	Answer   string
}

// Base is the immutable set of entries, in load order. Construct with
// [NewBase] or a loader; the zero value matches nothing.
type Base struct {
	entries []Entry
}

// NewBase validates and normalizes entries into a Base.
//
// Questions are lower-cased and trimmed. A duplicate question keeps its
// first position but takes the last answer seen (last write wins). Empty
// questions or answers are errors; validation collects every problem
// before returning.
func NewBase(entries []Entry) (*Base, error) {
	var errs []error

	base := &Base{}
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		question := strings.ToLower(strings.TrimSpace(e.Question))
		answer := strings.TrimSpace(e.Answer)
		if question == "" {
			errs = append(errs, fmt.Errorf("knowledge: entry %d has an empty question", i))
			continue
		}
		if answer == "" {
			errs = append(errs, fmt.Errorf("knowledge: entry %q has an empty answer", question))
			continue
		}
		if at, dup := index[question]; dup {
			base.entries[at].Answer = answer
			continue
		}
		index[question] = len(base.entries)
		base.entries = append(base.entries, Entry{Question: question, Answer: answer})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return base, nil
}

// Entries returns a copy of the entries in load order.
func (b *Base) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len reports the number of entries.
func (b *Base) Len() int { return len(b.entries) }
