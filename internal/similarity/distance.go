package similarity

import (
	"math"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// TooFar is returned by Distance when the strings cannot be within any
// threshold the scorer uses.
const TooFar = math.MaxInt

// maxLenGap bounds the length difference worth running the DP for; every
// edit-distance threshold in this package is below it.
const maxLenGap = 3

// Distance returns the Levenshtein distance between a and b in runes, or
// TooFar when their lengths differ by more than maxLenGap.
func Distance(a, b string) int {
	return distance(a, b, utf8.RuneCountInString(a), utf8.RuneCountInString(b))
}

func distance(a, b string, la, lb int) int {
	gap := la - lb
	if gap < 0 {
		gap = -gap
	}
	if gap > maxLenGap {
		return TooFar
	}
	return levenshtein.ComputeDistance(a, b)
}
