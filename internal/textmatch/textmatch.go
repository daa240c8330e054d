// Package textmatch implements the sequence-similarity primitives used by the
// answer retriever and the fuzzy normalizer mode.
//
// The central metric is [Ratio]: the classic ratio-of-matching-blocks measure
// 2*M/T, where M is the total length of all matched blocks in the optimal
// common-subsequence alignment of the two strings and T is the combined length
// of both strings. The alignment greedily takes the longest common block and
// recurses into the unmatched regions on either side, so transpositions score
// lower than simple insertions or deletions. This is deliberately NOT edit
// distance and NOT token overlap.
//
// Scores are in [0, 1]: 1.0 for identical strings (two empty strings count as
// identical), 0.0 for strings with no characters in common. Comparison is over
// runes, so multi-byte input is scored by character rather than by byte.
package textmatch

// matchSpan is a region still to be aligned: a[alo:ahi] against b[blo:bhi].
type matchSpan struct {
	alo, ahi int
	blo, bhi int
}

// Ratio returns the matching-blocks similarity of a and b.
//
// Both strings are compared exactly as given; callers that want
// case-insensitive scoring lower-case beforehand.
func Ratio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchedLength(ra, rb)) / float64(total)
}

// QuickRatio returns an upper bound on [Ratio] computed from rune
// multiplicities alone, without aligning blocks. It never underestimates
// Ratio, which makes it a cheap pre-filter when scanning many candidates.
func QuickRatio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}

	counts := make(map[rune]int, len(rb))
	for _, r := range rb {
		counts[r]++
	}
	matches := 0
	for _, r := range ra {
		if counts[r] > 0 {
			counts[r]--
			matches++
		}
	}
	return 2.0 * float64(matches) / float64(total)
}

// BestMatch scans candidates in order and returns the one with the highest
// [Ratio] against s, provided that score is at or above cutoff. Ties keep the
// earlier candidate, so callers get deterministic results for equal scores.
//
// When no candidate clears the cutoff, ok is false and score is 0.
func BestMatch(s string, candidates []string, cutoff float64) (match string, score float64, ok bool) {
	for _, c := range candidates {
		// QuickRatio bounds Ratio from above; skip candidates that cannot
		// reach the current best or the cutoff.
		bound := QuickRatio(s, c)
		if bound < cutoff || bound <= score {
			continue
		}
		r := Ratio(s, c)
		if r >= cutoff && r > score {
			match, score, ok = c, r, true
		}
	}
	if !ok {
		return "", 0, false
	}
	return match, score, true
}

// matchedLength returns the total length of all matched blocks in the
// optimal alignment of a and b.
//
// The longest common block is found first; the regions to its left and right
// are then aligned independently. An explicit stack replaces recursion; the
// work list is bounded by the number of matched blocks.
func matchedLength(a, b []rune) int {
	// Index positions of every rune in b for the inner matching loop.
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	stack := []matchSpan{{0, len(a), 0, len(b)}}
	total := 0

	for len(stack) > 0 {
		span := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		i, j, size := longestMatch(a, span, b2j)
		if size == 0 {
			continue
		}
		total += size
		stack = append(stack,
			matchSpan{span.alo, i, span.blo, j},
			matchSpan{i + size, span.ahi, j + size, span.bhi},
		)
	}
	return total
}

// longestMatch finds the longest block of runes common to a[span.alo:span.ahi]
// and b[span.blo:span.bhi], returning its start in a, start in b, and length.
// Among equally long blocks the one starting earliest in a (then earliest in
// b) wins, keeping the overall alignment deterministic.
func longestMatch(a []rune, span matchSpan, b2j map[rune][]int) (besti, bestj, bestSize int) {
	besti, bestj = span.alo, span.blo

	// j2len[j] is the length of the common block ending at a[i-1], b[j].
	j2len := make(map[int]int)
	for i := span.alo; i < span.ahi; i++ {
		newJ2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < span.blo {
				continue
			}
			if j >= span.bhi {
				break
			}
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > bestSize {
				besti, bestj, bestSize = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2len
	}
	return besti, bestj, bestSize
}
