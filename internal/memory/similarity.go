package memory

import (
	"strings"

	"golang.org/x/text/cases"
)

// SimilarityFunc scores how alike two question texts are, in [0,1].
type SimilarityFunc func(a, b string) float64

var foldCaser = cases.Fold()

// normalizeQuestion case-folds and collapses whitespace so that trivial
// formatting differences never defeat a lookup.
func normalizeQuestion(s string) string {
	return strings.Join(strings.Fields(foldCaser.String(s)), " ")
}

// ExactNormalized is the default similarity: 1 when the normalized texts
// are identical, 0 otherwise.
func ExactNormalized(a, b string) float64 {
	if normalizeQuestion(a) == normalizeQuestion(b) {
		return 1
	}
	return 0
}

// WordOverlap is a Jaccard word-set similarity, useful as a looser
// alternative when paired with a floor around 0.7.
func WordOverlap(a, b string) float64 {
	wa := strings.Fields(foldCaser.String(a))
	wb := strings.Fields(foldCaser.String(b))
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(wa))
	for _, w := range wa {
		set[w] = true
	}
	union := make(map[string]bool, len(wa)+len(wb))
	for _, w := range wa {
		union[w] = true
	}
	inter := 0
	seen := make(map[string]bool, len(wb))
	for _, w := range wb {
		union[w] = true
		if set[w] && !seen[w] {
			inter++
			seen[w] = true
		}
	}
	return float64(inter) / float64(len(union))
}
