// Package similarity scores how likely two normalized business names refer
// to the same business. Scores are bounded to [0, 1].
package similarity

import (
	"strings"
	"unicode/utf8"
)

// Pass weights and bonuses.
const (
	ExactWeight     = 1.0
	FuzzyWeight     = 0.8
	SubstringWeight = 0.6
	FallbackWeight  = 0.5

	AcronymBonus     = 0.15
	DistinctiveBonus = 0.10
)

const (
	fuzzyMinLen       = 3
	fuzzyLongLen      = 7
	substringMinLen   = 4
	fallbackMinLen    = 3
	distinctiveMinLen = 5
	distinctiveFuzzy  = 4
	minAcronymLen     = 2
)

// Breakdown records how a score was reached.
type Breakdown struct {
	Exact     int     `json:"exact"`
	Fuzzy     int     `json:"fuzzy"`
	Substring int     `json:"substring"`
	Fallback  int     `json:"fallback"`
	Base      float64 `json:"base"`
	Acronym   float64 `json:"acronym_bonus"`
	Distinct  float64 `json:"distinctive_bonus"`
	Score     float64 `json:"score"`
}

// Compare scores two normalized names.
func Compare(a, b string) float64 {
	return Score(NewProfile(a), NewProfile(b))
}

// Score returns the match confidence between two profiles.
func Score(a, b Profile) float64 {
	return Explain(a, b).Score
}

// Explain scores two profiles and reports each contribution.
//
// The shorter token list is matched against the longer in three passes:
// exact, fuzzy (edit distance) and substring. Each longer token is used at
// most once. The base score is the matched weight over the longer list's
// length; when nothing matched, a weaker substring scan over all pairs is
// used instead. Acronym and distinctive-word bonuses are then added and the
// total is clamped to 1.
func Explain(a, b Profile) Breakdown {
	var bd Breakdown
	if a.Empty() || b.Empty() {
		return bd
	}

	short, long := a, b
	if len(b.Tokens) < len(a.Tokens) {
		short, long = b, a
	}

	matched := make([]bool, len(short.Tokens))
	used := make([]bool, len(long.Tokens))
	var sum float64

	for i, s := range short.Tokens {
		for j, l := range long.Tokens {
			if !used[j] && s == l {
				matched[i], used[j] = true, true
				sum += ExactWeight
				bd.Exact++
				break
			}
		}
	}

	for i, s := range short.Tokens {
		if matched[i] || short.lens[i] < fuzzyMinLen {
			continue
		}
		best, bestDist := -1, TooFar
		for j, l := range long.Tokens {
			if used[j] || long.lens[j] < fuzzyMinLen {
				continue
			}
			limit := 1
			if short.lens[i] >= fuzzyLongLen || long.lens[j] >= fuzzyLongLen {
				limit = 2
			}
			if d := distance(s, l, short.lens[i], long.lens[j]); d <= limit && d < bestDist {
				best, bestDist = j, d
			}
		}
		if best >= 0 {
			matched[i], used[best] = true, true
			sum += FuzzyWeight
			bd.Fuzzy++
		}
	}

	for i, s := range short.Tokens {
		if matched[i] || short.lens[i] < substringMinLen {
			continue
		}
		for j, l := range long.Tokens {
			if used[j] || long.lens[j] < substringMinLen {
				continue
			}
			if strings.Contains(l, s) || strings.Contains(s, l) {
				matched[i], used[j] = true, true
				sum += SubstringWeight
				bd.Substring++
				break
			}
		}
	}

	if sum == 0 {
		for i, s := range short.Tokens {
			if short.lens[i] < fallbackMinLen {
				continue
			}
			for j, l := range long.Tokens {
				if long.lens[j] < fallbackMinLen {
					continue
				}
				if strings.Contains(l, s) || strings.Contains(s, l) {
					sum += FallbackWeight
					bd.Fallback++
				}
			}
		}
	}

	bd.Base = sum / float64(len(long.Tokens))
	bd.Acronym = acronymBonus(a, b) + acronymBonus(b, a)
	if hasDistinctiveWord(a, b) {
		bd.Distinct = DistinctiveBonus
	}
	bd.Score = Clamp(bd.Base + bd.Acronym + bd.Distinct)
	return bd
}

// Clamp bounds s to [0, 1].
func Clamp(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// acronymBonus credits from's acronym appearing inside to's concatenated name.
func acronymBonus(from, to Profile) float64 {
	if utf8.RuneCountInString(from.Acronym) < minAcronymLen {
		return 0
	}
	if from.Acronym == to.Acronym || strings.Contains(to.Joined, from.Acronym) {
		return AcronymBonus
	}
	return 0
}

// hasDistinctiveWord reports whether a long token of one name reappears,
// exactly or with a single typo, in the other.
func hasDistinctiveWord(a, b Profile) bool {
	for i, s := range a.Tokens {
		for j, l := range b.Tokens {
			ls, ll := a.lens[i], b.lens[j]
			if max(ls, ll) < distinctiveMinLen {
				continue
			}
			if s == l {
				return true
			}
			if min(ls, ll) >= distinctiveFuzzy && distance(s, l, ls, ll) <= 1 {
				return true
			}
		}
	}
	return false
}
