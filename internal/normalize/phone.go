package normalize

import (
	"regexp"
	"strings"
)

// nationalPhone is a French national number: trunk 0, non-zero area digit, 8 digits.
var nationalPhone = regexp.MustCompile(`^0[1-9][0-9]{8}$`)

// premiumPrefix marks surcharged numbers that are never written to a record.
const premiumPrefix = "089"

// NormalizePhone canonicalizes a raw phone string to its 10-digit national
// form. The second return is false when the input is not a plausible
// number; scraped data is full of those, so this is not an error.
func NormalizePhone(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			// Leading plus, possibly after a "Tél :" label.
			b.WriteRune(r)
		}
	}
	p := b.String()

	switch {
	case strings.HasPrefix(p, "+33"):
		p = fromInternational(p[len("+33"):])
	case strings.HasPrefix(p, "0033"):
		p = fromInternational(p[len("0033"):])
	}

	if !nationalPhone.MatchString(p) {
		return "", false
	}
	if strings.HasPrefix(p, premiumPrefix) {
		return "", false
	}
	return p, true
}

// fromInternational restores the trunk zero after a +33/0033 prefix. Numbers
// written as "+33 (0)6 ..." already carry it.
func fromInternational(rest string) string {
	if len(rest) == 10 && rest[0] == '0' {
		return rest
	}
	return "0" + rest
}
