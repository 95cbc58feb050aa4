// Package normalize canonicalizes phone numbers and business names so that
// records from different sources can be compared token by token.
package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	parenGroupRe  = regexp.MustCompile(`\([^()]*\)`)
	lastParenRe   = regexp.MustCompile(`\(([^()]*)\)`)
	nonAlnumRe    = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
	entrySplitRe  = regexp.MustCompile(`[\s\-_]+`)
	ligatureFixer = strings.NewReplacer("œ", "oe", "æ", "ae", "ß", "ss")
)

// Normalizer turns raw business names into comparable token strings.
type Normalizer struct {
	legalForms *regexp.Regexp
}

// New compiles a Normalizer from dict.
func New(dict Dictionary) *Normalizer {
	return &Normalizer{legalForms: compileLegalForms(dict.LegalForms)}
}

var defaultNormalizer = New(DefaultDictionary())

// Default returns the Normalizer built from the built-in dictionary.
func Default() *Normalizer { return defaultNormalizer }

// NormalizeName normalizes a name with the built-in dictionary.
func NormalizeName(raw string) string { return defaultNormalizer.Name(raw) }

// CommercialName extracts the trading name with the built-in dictionary.
func CommercialName(raw string) string { return defaultNormalizer.CommercialName(raw) }

// Name normalizes a raw business name:
//  1. Lowercase and strip diacritics
//  2. Remove legal-form and generic trade words
//  3. Remove parenthetical groups
//  4. Replace punctuation with spaces, collapse whitespace, trim
func (n *Normalizer) Name(raw string) string {
	s := fold(raw)
	if s == "" {
		return ""
	}

	if n.legalForms != nil {
		s = n.legalForms.ReplaceAllString(s, " ")
	}

	for {
		stripped := parenGroupRe.ReplaceAllString(s, " ")
		if stripped == s {
			break
		}
		s = stripped
	}

	return squash(s)
}

// CommercialName returns the normalized content of the last parenthetical
// group in raw, or "" when there is none. Directory names often carry the
// trading name that way: "DUPONT JEAN (Plomberie du Centre)".
func (n *Normalizer) CommercialName(raw string) string {
	groups := lastParenRe.FindAllStringSubmatch(raw, -1)
	if len(groups) == 0 {
		return ""
	}
	return n.Name(groups[len(groups)-1][1])
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases s and removes combining marks (é -> e, ç -> c).
func fold(s string) string {
	s = ligatureFixer.Replace(strings.ToLower(strings.TrimSpace(s)))
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return out
}

// squash replaces every non-alphanumeric run with a single space.
func squash(s string) string {
	s = nonAlnumRe.ReplaceAllString(s, " ")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func compileLegalForms(forms []string) *regexp.Regexp {
	alts := make([]string, 0, len(forms))
	seen := make(map[string]bool, len(forms))
	for _, f := range forms {
		words := entrySplitRe.Split(strings.TrimSpace(fold(f)), -1)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alt := strings.Join(words, `[\s\-_]*`)
		if alt == "" || seen[alt] {
			continue
		}
		seen[alt] = true
		alts = append(alts, alt)
	}
	if len(alts) == 0 {
		return nil
	}

	// Longest first so "sasu" is tried before "sas".
	sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	return regexp.MustCompile(`\b(?:` + strings.Join(alts, "|") + `)\b`)
}
