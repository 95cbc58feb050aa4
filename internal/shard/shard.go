// Package shard defines the geographic partitions of a run: French
// department codes plus a bucket for listings without a usable location.
package shard

import (
	"fmt"
	"slices"
	"strings"
)

// Unknown is the bucket for listings whose department cannot be resolved.
const Unknown = "??"

// overseas holds the overseas departments and collectivities.
var overseas = []string{
	"971", "972", "973", "974", "975", "976", // DROM + Saint-Pierre-et-Miquelon
	"977", "978", "984", "986", "987", "988", // COM
}

var (
	catalog = buildCatalog()
	known   = func() map[string]bool {
		m := make(map[string]bool, len(catalog))
		for _, c := range catalog {
			m[c] = true
		}
		return m
	}()
)

func buildCatalog() []string {
	codes := make([]string, 0, 110)
	for i := 1; i <= 95; i++ {
		if i == 20 {
			codes = append(codes, "2A", "2B")
			continue
		}
		codes = append(codes, fmt.Sprintf("%02d", i))
	}
	codes = append(codes, overseas...)
	codes = append(codes, Unknown)
	slices.Sort(codes)
	return codes
}

// All returns every shard in processing order, Unknown included.
func All() []string {
	return slices.Clone(catalog)
}

// Valid reports whether code is a catalog shard.
func Valid(code string) bool {
	return known[code]
}

// Department canonicalizes an explicit department code ("1" → "01",
// "2a" → "2A"). It returns "" when the code is not a known department.
func Department(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) == 1 && code[0] >= '1' && code[0] <= '9' {
		code = "0" + code
	}
	if code == Unknown || !known[code] {
		return ""
	}
	return code
}

// PostalCode trims raw and restores the leading zero of four-digit codes
// ("1000" → "01000"), which spreadsheets and JSON numbers drop.
func PostalCode(raw string) string {
	cp := strings.TrimSpace(raw)
	if len(cp) == 4 && isDigits(cp) {
		return "0" + cp
	}
	return cp
}

// FromPostalCode maps a five-digit French postal code to its department.
// Corsica splits at 20200 and overseas codes use three digits. It returns
// "" for anything that does not map onto the catalog.
func FromPostalCode(raw string) string {
	cp := PostalCode(raw)
	if len(cp) != 5 || !isDigits(cp) {
		return ""
	}

	var code string
	switch {
	case cp[:2] == "20":
		if cp < "20200" {
			code = "2A"
		} else {
			code = "2B"
		}
	case cp[:2] == "97", cp[:2] == "98":
		code = cp[:3]
	default:
		code = cp[:2]
	}
	if !known[code] || code == Unknown {
		return ""
	}
	return code
}

// Partition splits shards into at most w contiguous groups whose sizes
// differ by at most one. Order is preserved. Empty groups are never returned.
func Partition(shards []string, w int) [][]string {
	n := len(shards)
	if n == 0 {
		return nil
	}
	if w < 1 {
		w = 1
	}
	if w > n {
		w = n
	}

	groups := make([][]string, 0, w)
	size, extra := n/w, n%w
	start := 0
	for i := range w {
		end := start + size
		if i < extra {
			end++
		}
		groups = append(groups, shards[start:end:end])
		start = end
	}
	return groups
}

func isDigits(s string) bool {
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
