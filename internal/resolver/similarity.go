package resolver

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Name similarity blend.
const (
	sequenceWeight = 0.6
	tokenWeight    = 0.4
)

// NameSimilarity scores two names in [0, 1].
// It blends the Ratcliff/Obershelp sequence ratio with token Jaccard overlap
// over lower-cased, trimmed input. Empty input scores zero.
func NameSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	return sequenceWeight*sequenceRatio(a, b) + tokenWeight*tokenJaccard(strings.Fields(a), strings.Fields(b))
}

// sequenceRatio computes the matcher ratio on a canonical argument order.
// The matching-block search is order sensitive, so a > b is swapped first.
func sequenceRatio(a, b string) float64 {
	if a > b {
		a, b = b, a
	}
	m := difflib.NewMatcher(runes(a), runes(b))
	return m.Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// tokenJaccard is |A ∩ B| / |A ∪ B| over token sets.
func tokenJaccard(tokens1, tokens2 []string) float64 {
	if len(tokens1) == 0 || len(tokens2) == 0 {
		return 0
	}

	set1 := make(map[string]bool, len(tokens1))
	for _, token := range tokens1 {
		set1[token] = true
	}

	intersection := 0
	union := len(set1)
	seen := make(map[string]bool, len(tokens2))
	for _, token := range tokens2 {
		if seen[token] {
			continue
		}
		seen[token] = true
		if set1[token] {
			intersection++
		} else {
			union++
		}
	}

	return float64(intersection) / float64(union)
}
