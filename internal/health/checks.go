package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/baristabuddy/baristabuddy/internal/knowledge"
	"github.com/baristabuddy/baristabuddy/internal/lexicon"
	"github.com/baristabuddy/baristabuddy/internal/resilience"
	"github.com/baristabuddy/baristabuddy/internal/topic"
)

// Datasets returns a checker that fails when any of the assistant's loaded
// datasets is empty. An empty lexicon or keyword set silently breaks
// normalization or admits nothing, so surfacing it beats answering wrong.
func Datasets(lex *lexicon.Lexicon, base *knowledge.Base, keywords topic.KeywordSet) Checker {
	return Checker{
		Name: "datasets",
		Check: func(context.Context) error {
			var errs []error
			if lex == nil || lex.Len() == 0 {
				errs = append(errs, errors.New("pronunciation lexicon is empty"))
			}
			if base == nil || base.Len() == 0 {
				errs = append(errs, errors.New("answer base is empty"))
			}
			if keywords.Len() == 0 {
				errs = append(errs, errors.New("topic keyword set is empty"))
			}
			return errors.Join(errs...)
		},
	}
}

// Breakers returns a checker over a failover group's circuit breakers,
// reported under name. Open breakers on some backends degrade the check;
// only a group with every breaker open fails it, because then the concern
// has no healthy backend left at all.
func Breakers(name string, states func() map[string]resilience.State) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			all := states()
			if len(all) == 0 {
				return errors.New("no backends registered")
			}

			var open []string
			for backend, st := range all {
				if st == resilience.StateOpen {
					open = append(open, backend)
				}
			}
			if len(open) == 0 {
				return nil
			}
			sort.Strings(open)
			if len(open) == len(all) {
				return fmt.Errorf("all backends open: %s", strings.Join(open, ", "))
			}
			return Degraded("open: " + strings.Join(open, ", "))
		},
	}
}

// Pinger is the probe surface of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store returns a checker that probes a backing store, reported under name.
func Store(name string, p Pinger) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			return p.Ping(ctx)
		},
	}
}
