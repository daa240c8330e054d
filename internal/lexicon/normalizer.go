package lexicon

import (
	"fmt"
	"strings"

	"github.com/baristabuddy/baristabuddy/internal/textmatch"
)

// DefaultFuzzyCutoff is the minimum similarity a canonical term needs to
// replace a token in fuzzy mode.
const DefaultFuzzyCutoff = 0.7

// Mode selects the normalization strategy.
type Mode string

const (
	// ModeLiteral replaces known variant substrings with their canonical
	// term. This is the default and the mode the query pipeline runs.
	ModeLiteral Mode = "literal"

	// ModeFuzzy replaces each whitespace token with the closest canonical
	// term when its sequence similarity clears the cutoff.
	ModeFuzzy Mode = "fuzzy"

	// ModePhonetic matches token windows against canonical terms by
	// phonetic code and string similarity. Intended for speech-transcript
	// input; requires a [PhoneticMatcher].
	ModePhonetic Mode = "phonetic"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeLiteral, ModeFuzzy, ModePhonetic:
		return true
	}
	return false
}

// Correction records one rewrite the normalizer applied.
type Correction struct {
	// Original is the variant substring or token that was replaced.
	Original string

	// Corrected is the canonical term it was replaced with.
	Corrected string

	// Confidence is 1.0 for literal substitutions and the similarity score
	// for fuzzy and phonetic replacements.
	Confidence float64

	// Method is "literal", "fuzzy" or "phonetic".
	Method string
}

// PhoneticMatcher finds the candidate most phonetically similar to a word.
// When matched is false, corrected equals word and confidence is 0.
type PhoneticMatcher interface {
	Match(word string, candidates []string) (corrected string, confidence float64, matched bool)
}

// Option is a functional option for configuring a [Normalizer].
type Option func(*Normalizer)

// WithMode selects the normalization mode. Default: [ModeLiteral].
func WithMode(m Mode) Option {
	return func(n *Normalizer) { n.mode = m }
}

// WithFuzzyCutoff sets the similarity cutoff for fuzzy mode.
// Default: [DefaultFuzzyCutoff].
func WithFuzzyCutoff(c float64) Option {
	return func(n *Normalizer) { n.fuzzyCutoff = c }
}

// WithPhoneticMatcher attaches the matcher used by [ModePhonetic].
func WithPhoneticMatcher(pm PhoneticMatcher) Option {
	return func(n *Normalizer) { n.phonetic = pm }
}

// Normalizer rewrites query text against a [Lexicon]. It is read-only after
// construction and safe for concurrent use.
type Normalizer struct {
	lex         *Lexicon
	mode        Mode
	fuzzyCutoff float64
	phonetic    PhoneticMatcher
}

// NewNormalizer builds a Normalizer over lex with the supplied options.
func NewNormalizer(lex *Lexicon, opts ...Option) (*Normalizer, error) {
	if lex == nil {
		return nil, fmt.Errorf("normalizer: lexicon must not be nil")
	}
	n := &Normalizer{
		lex:         lex,
		mode:        ModeLiteral,
		fuzzyCutoff: DefaultFuzzyCutoff,
	}
	for _, o := range opts {
		o(n)
	}
	if !n.mode.IsValid() {
		return nil, fmt.Errorf("normalizer: unknown mode %q", n.mode)
	}
	if n.fuzzyCutoff <= 0 || n.fuzzyCutoff > 1 {
		return nil, fmt.Errorf("normalizer: fuzzy cutoff %v outside (0, 1]", n.fuzzyCutoff)
	}
	if n.mode == ModePhonetic && n.phonetic == nil {
		return nil, fmt.Errorf("normalizer: phonetic mode requires a matcher")
	}
	return n, nil
}

// Correct returns text with known mis-transcriptions rewritten to canonical
// terms. Output is always lower-cased; text with no matches is returned
// unchanged apart from case folding. Empty input returns empty.
func (n *Normalizer) Correct(text string) string {
	corrected, _ := n.CorrectDetailed(text)
	return corrected
}

// CorrectDetailed is [Normalizer.Correct] plus the list of rewrites applied,
// for logging and metrics. The corrections slice is nil when nothing changed.
//
// Literal mode preserves the original spacing; fuzzy and phonetic modes work
// on whitespace tokens and rejoin them with single spaces.
func (n *Normalizer) CorrectDetailed(text string) (string, []Correction) {
	lower := strings.ToLower(text)
	switch n.mode {
	case ModeFuzzy:
		return n.correctFuzzy(lower)
	case ModePhonetic:
		return n.correctPhonetic(lower)
	default:
		return n.correctLiteral(lower)
	}
}

// correctLiteral applies the precomputed variant→canonical pairs longest
// variant first. Each pair rewrites every occurrence of its variant.
func (n *Normalizer) correctLiteral(text string) (string, []Correction) {
	var corrections []Correction
	for _, rep := range n.lex.replacements {
		if !strings.Contains(text, rep.variant) {
			continue
		}
		text = strings.ReplaceAll(text, rep.variant, rep.canonical)
		corrections = append(corrections, Correction{
			Original:   rep.variant,
			Corrected:  rep.canonical,
			Confidence: 1,
			Method:     "literal",
		})
	}
	return text, corrections
}

// correctFuzzy replaces each token with its nearest canonical term when the
// similarity clears the cutoff. Unmatched tokens pass through unchanged.
func (n *Normalizer) correctFuzzy(text string) (string, []Correction) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var corrections []Correction
	for i, tok := range tokens {
		match, score, ok := textmatch.BestMatch(tok, n.lex.canonicals, n.fuzzyCutoff)
		if !ok || match == tok {
			continue
		}
		corrections = append(corrections, Correction{
			Original:   tok,
			Corrected:  match,
			Confidence: score,
			Method:     "fuzzy",
		})
		tokens[i] = match
	}
	return strings.Join(tokens, " "), corrections
}

// correctPhonetic slides n-gram windows over the tokens, widest first, and
// replaces the longest window the matcher accepts. Widest-first keeps
// multi-word terms ahead of partial single-word matches.
func (n *Normalizer) correctPhonetic(text string) (string, []Correction) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	maxWords := maxWordCount(n.lex.canonicals)

	var out []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		maxN := maxWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for size := maxN; size >= 1; size-- {
			window := strings.Join(tokens[i:i+size], " ")
			canonical, conf, ok := n.phonetic.Match(window, n.lex.canonicals)
			if !ok {
				continue
			}
			out = append(out, strings.Fields(canonical)...)
			if canonical != window {
				corrections = append(corrections, Correction{
					Original:   window,
					Corrected:  canonical,
					Confidence: conf,
					Method:     "phonetic",
				})
			}
			i += size
			matched = true
			break
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}
	return strings.Join(out, " "), corrections
}

// maxWordCount returns the largest number of whitespace-separated words in
// any candidate term. Returns 1 when candidates is empty.
func maxWordCount(candidates []string) int {
	max := 1
	for _, c := range candidates {
		if n := len(strings.Fields(c)); n > max {
			max = n
		}
	}
	return max
}
