package similarity

import (
	"strings"
	"unicode/utf8"
)

// MinTokenLen is the shortest token that takes part in scoring.
const MinTokenLen = 2

// Profile is a normalized name split into the pieces the scorer compares.
// Build it once per name; scoring does not allocate new tokens.
type Profile struct {
	Tokens  []string
	Acronym string
	Joined  string

	lens []int
}

// NewProfile tokenizes an already normalized name.
func NewProfile(normalized string) Profile {
	fields := strings.Fields(normalized)
	p := Profile{
		Tokens: make([]string, 0, len(fields)),
		lens:   make([]int, 0, len(fields)),
		Joined: strings.Join(fields, ""),
	}

	var acronym strings.Builder
	for _, f := range fields {
		n := utf8.RuneCountInString(f)
		if n < MinTokenLen {
			continue
		}
		p.Tokens = append(p.Tokens, f)
		p.lens = append(p.lens, n)
		r, _ := utf8.DecodeRuneInString(f)
		acronym.WriteRune(r)
	}
	p.Acronym = acronym.String()
	return p
}

// Empty reports whether the profile has no scorable token.
func (p Profile) Empty() bool { return len(p.Tokens) == 0 }
