package textutil

import (
	"strings"
	"unicode"
)

// BigramSimilarity computes the Dice coefficient over multisets of adjacent
// 2-character substrings of both strings. Inputs are normalized to lowercase
// alphanumeric before comparison. Strings shorter than 2 characters after
// normalization never match unless identical.
func BigramSimilarity(a, b string) float64 {
	a = normalizeForSimilarity(a)
	b = normalizeForSimilarity(b)

	if a == b && a != "" {
		return 1.0
	}
	if len([]rune(a)) < 2 || len([]rune(b)) < 2 {
		return 0.0
	}

	bigramsA := bigrams(a)
	bigramsB := bigrams(b)

	counts := make(map[string]int, len(bigramsA))
	for _, bg := range bigramsA {
		counts[bg]++
	}

	// Each matched bigram consumes one occurrence, so repeated bigrams only
	// count as many times as they appear in both strings.
	intersection := 0
	for _, bg := range bigramsB {
		if counts[bg] > 0 {
			counts[bg]--
			intersection++
		}
	}

	return 2.0 * float64(intersection) / float64(len(bigramsA)+len(bigramsB))
}

func normalizeForSimilarity(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func bigrams(s string) []string {
	r := []rune(s)
	out := make([]string, 0, len(r)-1)
	for i := 0; i < len(r)-1; i++ {
		out = append(out, string(r[i:i+2]))
	}
	return out
}
