// Package lexicon holds the pronunciation lexicon: the table of canonical
// coffee vocabulary and the mis-transcriptions each term is known to produce
// in speech-to-text output. The [Normalizer] rewrites query text against this
// table before the query reaches topic admission and retrieval.
//
// A Lexicon is built once at startup and is immutable afterwards, so it can
// be shared by any number of concurrent queries without locking.
package lexicon

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Entry maps one canonical term to the variant spellings that should be
// rewritten to it. Variants are matched case-insensitively.
type Entry struct {
	Canonical string
	Variants  []string
}

// replacement is one variant→canonical rewrite pair, precomputed for the
// literal substitution pass.
type replacement struct {
	variant   string
	canonical string
}

// Lexicon is the immutable pronunciation table. Construct with [New] (or a
// loader); the zero value is usable and matches nothing.
type Lexicon struct {
	entries      []Entry
	canonicals   []string
	replacements []replacement
}

// New validates and normalizes entries into a Lexicon.
//
// Canonical terms and variants are lower-cased and trimmed. Validation
// collects every problem before returning:
//   - empty canonical terms or empty variant strings
//   - duplicate canonical terms
//   - a variant that equals any entry's canonical term (would make
//     substitution non-idempotent)
//   - a variant contained in any canonical term (substitution would
//     corrupt text that already uses the canonical spelling)
//   - the same variant mapped under two canonical terms
//
// A variant repeated within one entry is deduplicated silently.
//
// For the literal substitution pass, variants are ordered longest-first
// (by rune count) with ties broken by load order, so the most specific
// variant always wins when variants overlap.
func New(entries []Entry) (*Lexicon, error) {
	var errs []error

	// First pass: canonical terms, so variant checks below can see the
	// full set regardless of entry order.
	canonicalSet := make(map[string]struct{}, len(entries))
	canonicalList := make([]string, 0, len(entries))
	for i, e := range entries {
		canonical := strings.ToLower(strings.TrimSpace(e.Canonical))
		if canonical == "" {
			errs = append(errs, fmt.Errorf("lexicon: entry %d has an empty canonical term", i))
			continue
		}
		if _, dup := canonicalSet[canonical]; dup {
			errs = append(errs, fmt.Errorf("lexicon: duplicate canonical term %q", canonical))
			continue
		}
		canonicalSet[canonical] = struct{}{}
		canonicalList = append(canonicalList, canonical)
	}

	// Second pass: variants.
	lex := &Lexicon{}
	variantOwner := make(map[string]string)
	seenCanonical := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		canonical := strings.ToLower(strings.TrimSpace(e.Canonical))
		if canonical == "" {
			continue
		}
		if _, dup := seenCanonical[canonical]; dup {
			continue
		}
		seenCanonical[canonical] = struct{}{}

		norm := Entry{Canonical: canonical}
		seen := make(map[string]struct{}, len(e.Variants))
		for _, v := range e.Variants {
			variant := strings.ToLower(strings.TrimSpace(v))
			if variant == "" {
				errs = append(errs, fmt.Errorf("lexicon: entry %q has an empty variant", canonical))
				continue
			}
			if _, dup := seen[variant]; dup {
				continue
			}
			seen[variant] = struct{}{}
			if _, isCanonical := canonicalSet[variant]; isCanonical && variant != canonical {
				errs = append(errs, fmt.Errorf("lexicon: variant %q of %q is itself a canonical term", variant, canonical))
				continue
			}
			if variant == canonical {
				continue
			}
			contained := ""
			for _, c := range canonicalList {
				if strings.Contains(c, variant) {
					contained = c
					break
				}
			}
			if contained != "" {
				errs = append(errs, fmt.Errorf("lexicon: variant %q of %q is a substring of canonical term %q", variant, canonical, contained))
				continue
			}
			if owner, taken := variantOwner[variant]; taken {
				errs = append(errs, fmt.Errorf("lexicon: variant %q mapped to both %q and %q", variant, owner, canonical))
				continue
			}
			variantOwner[variant] = canonical
			norm.Variants = append(norm.Variants, variant)
		}

		lex.entries = append(lex.entries, norm)
		lex.canonicals = append(lex.canonicals, canonical)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, e := range lex.entries {
		for _, v := range e.Variants {
			lex.replacements = append(lex.replacements, replacement{variant: v, canonical: e.Canonical})
		}
	}
	sort.SliceStable(lex.replacements, func(i, j int) bool {
		return len([]rune(lex.replacements[i].variant)) > len([]rune(lex.replacements[j].variant))
	})

	return lex, nil
}

// Entries returns a copy of the normalized entries in load order.
func (l *Lexicon) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Canonicals returns the canonical terms in load order. This is the
// candidate set for the fuzzy and phonetic normalizer modes.
func (l *Lexicon) Canonicals() []string {
	out := make([]string, len(l.canonicals))
	copy(out, l.canonicals)
	return out
}

// Len reports the number of entries.
func (l *Lexicon) Len() int { return len(l.entries) }
