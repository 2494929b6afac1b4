package ontology

import "strings"

// Similarity scores two normalized tokens in [0, 1]. It takes the better of
// a character-level Levenshtein ratio and a token-set Jaccard overlap over
// the underscore-separated words, so both "closeup"/"close_up" and
// "product_close_up"/"close_up_product" score high.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}
	lev := levenshteinRatio(a, b)
	jac := tokenJaccard(a, b)
	if jac > lev {
		return jac
	}
	return lev
}

// levenshteinRatio is 1 - editDistance/maxLen.
func levenshteinRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(maxLen)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, minInt(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// tokenJaccard computes Jaccard overlap of the underscore-separated word
// sets of two tokens.
func tokenJaccard(a, b string) float64 {
	sa := tokenSet(a)
	sb := tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	intersection := 0
	for tok := range sa {
		if _, ok := sb[tok]; ok {
			intersection++
		}
	}
	union := len(sa) + len(sb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Split(s, "_") {
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
