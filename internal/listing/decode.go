// Package listing loads scraped listings from NDJSON files and indexes them
// by shard for matching.
package listing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/shard"
)

// text accepts JSON strings and bare numbers; scrapers emit postal codes and
// phones as either.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	s, _, err := decodeText(b)
	*t = text(s)
	return err
}

// phoneText is a text that restores the trunk zero of nine-digit numbers
// emitted as JSON numbers (612345678 → "0612345678").
type phoneText string

func (p *phoneText) UnmarshalJSON(b []byte) error {
	s, numeric, err := decodeText(b)
	if numeric && len(s) == 9 {
		s = "0" + s
	}
	*p = phoneText(s)
	return err
}

// decodeText returns the string form of a JSON string or number, and whether
// it was a number.
func decodeText(b []byte) (string, bool, error) {
	if len(b) == 0 || string(b) == "null" {
		return "", false, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false, err
		}
		return s, false, nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", false, err
	}
	return n.String(), true, nil
}

// record is one NDJSON line with every accepted key alias.
type record struct {
	Name       text      `json:"name"`
	Phone      phoneText `json:"phone"`
	PostalCode text      `json:"postalCode"`
	CP         text      `json:"cp"`
	PostalSnk  text      `json:"postal_code"`
	DeptCode   text      `json:"deptCode"`
	Dept       text      `json:"dept"`
	Department text      `json:"department"`
	City       text      `json:"city"`
	Source     text      `json:"source"`

	Rating        *float64 `json:"rating"`
	RatingAverage *float64 `json:"ratingAverage"`
	ReviewCount   *int     `json:"reviewCount"`
	Reviews       *int     `json:"reviews"`
	ReviewSnk     *int     `json:"review_count"`
}

func first[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}

func (r record) listing(source string) model.Listing {
	l := model.Listing{
		Name:        strings.TrimSpace(string(r.Name)),
		Phone:       strings.TrimSpace(string(r.Phone)),
		PostalCode:  shard.PostalCode(string(first(r.PostalCode, r.CP, r.PostalSnk))),
		Department:  strings.TrimSpace(string(first(r.DeptCode, r.Dept, r.Department))),
		City:        strings.TrimSpace(string(r.City)),
		Rating:      first(r.Rating, r.RatingAverage),
		ReviewCount: first(r.ReviewCount, r.Reviews, r.ReviewSnk),
		Source:      strings.TrimSpace(string(r.Source)),
	}
	if l.Source == "" {
		l.Source = source
	}
	return l
}

// DecodeStats counts what a decode pass kept and skipped.
type DecodeStats struct {
	Lines     int `json:"lines"`
	Decoded   int `json:"decoded"`
	Malformed int `json:"malformed"`
	Missing   int `json:"missing"` // no name or no phone
}

func (s *DecodeStats) add(o DecodeStats) {
	s.Lines += o.Lines
	s.Decoded += o.Decoded
	s.Malformed += o.Malformed
	s.Missing += o.Missing
}

// Decode reads NDJSON listings from r and calls fn for each usable one.
// Blank lines are ignored; malformed lines and lines without a name or phone
// are counted and skipped. Only read errors and cancellation are returned.
func Decode(ctx context.Context, r io.Reader, source string, fn func(model.Listing)) (DecodeStats, error) {
	var stats DecodeStats
	br := bufio.NewReaderSize(r, 64*1024)

	for {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "listing: context cancelled")
		}

		line, err := br.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			stats.Lines++
			var rec record
			if jerr := json.Unmarshal(line, &rec); jerr != nil {
				stats.Malformed++
			} else if l := rec.listing(source); l.Name == "" || l.Phone == "" {
				stats.Missing++
			} else {
				stats.Decoded++
				fn(l)
			}
		}

		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, eris.Wrap(err, "listing: read line")
		}
	}
}

// DecodeFile decodes one listing file. The file base name, without its
// extension, tags listings that carry no source of their own.
func DecodeFile(ctx context.Context, path string, fn func(model.Listing)) (DecodeStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return DecodeStats{}, eris.Wrapf(err, "listing: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	base := filepath.Base(path)
	source := strings.TrimSuffix(base, filepath.Ext(base))
	stats, err := Decode(ctx, f, source, fn)
	if err != nil {
		return stats, eris.Wrapf(err, "listing: decode %s", path)
	}
	return stats, nil
}
