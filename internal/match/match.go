// Package match pairs canonical records with listings of the same shard.
//
// Assignment is greedy and single-pass: records are visited by id, each
// takes its best-scoring free listing if the score clears the threshold,
// and neither the record nor the listing phone can be assigned again.
package match

import (
	"slices"
	"strings"

	"github.com/sells-group/listing-match/internal/listing"
	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/normalize"
	"github.com/sells-group/listing-match/internal/shard"
	"github.com/sells-group/listing-match/internal/similarity"
)

// Defaults for Matcher.
const (
	DefaultThreshold   = 0.35
	DefaultPostalBonus = 0.15
)

// scoreEpsilon absorbs float rounding at the threshold.
const scoreEpsilon = 1e-9

// Matcher scores and assigns listings to canonical records.
type Matcher struct {
	Field       model.Field
	Threshold   float64
	PostalBonus float64
	Normalizer  *normalize.Normalizer
}

// New returns a Matcher with default threshold and postal bonus.
func New(field model.Field) *Matcher {
	return &Matcher{
		Field:       field,
		Threshold:   DefaultThreshold,
		PostalBonus: DefaultPostalBonus,
		Normalizer:  normalize.Default(),
	}
}

// Accepts reports whether a composite score clears the threshold.
func (m *Matcher) Accepts(score float64) bool {
	return score+scoreEpsilon >= m.Threshold
}

// candidate is a record prepared for scoring.
type candidate struct {
	rec        *model.CanonicalRecord
	legal      similarity.Profile
	commercial similarity.Profile
	postal     string
}

func (m *Matcher) prepare(rec *model.CanonicalRecord) candidate {
	n := m.Normalizer
	if n == nil {
		n = normalize.Default()
	}
	return candidate{
		rec:        rec,
		legal:      similarity.NewProfile(n.Name(rec.Name)),
		commercial: similarity.NewProfile(n.CommercialName(rec.Name)),
		postal:     shard.PostalCode(rec.PostalCode),
	}
}

func (m *Matcher) score(c candidate, e *listing.Entry) float64 {
	s := max(similarity.Score(c.legal, e.Profile), similarity.Score(c.commercial, e.Profile))
	if c.postal != "" && c.postal == e.PostalCode {
		s += m.PostalBonus
	}
	return similarity.Clamp(s)
}

// Score returns the composite score of rec against one indexed listing: the
// better of the legal and commercial name similarities plus the postal bonus.
func (m *Matcher) Score(rec model.CanonicalRecord, e *listing.Entry) float64 {
	return m.score(m.prepare(&rec), e)
}

// MatchShard assigns listings of sh to records. Records are visited in id
// order. Listings sharing the record's postal code are scored first, then
// the rest of the shard; the strictly best candidate wins, the first one on
// ties. Assignments are recorded in ledger.
func (m *Matcher) MatchShard(records []model.CanonicalRecord, sh *listing.Shard, ledger *Ledger) []model.MatchResult {
	if sh.Len() == 0 || len(records) == 0 {
		return nil
	}

	order := make([]*model.CanonicalRecord, len(records))
	for i := range records {
		order[i] = &records[i]
	}
	slices.SortStableFunc(order, func(a, b *model.CanonicalRecord) int {
		return strings.Compare(a.ID, b.ID)
	})

	var results []model.MatchResult
	for _, rec := range order {
		if ledger.RecordUsed(rec.ID) {
			continue
		}
		c := m.prepare(rec)
		if c.legal.Empty() && c.commercial.Empty() {
			continue
		}

		var (
			best      *listing.Entry
			bestScore = -1.0
		)
		consider := func(e *listing.Entry) {
			if ledger.PhoneUsed(e.Phone) {
				return
			}
			if s := m.score(c, e); s > bestScore {
				best, bestScore = e, s
			}
		}

		for _, e := range sh.ByPostal(c.postal) {
			consider(e)
		}
		for _, e := range sh.All {
			if c.postal != "" && e.PostalCode == c.postal {
				continue
			}
			consider(e)
		}

		if best == nil || !m.Accepts(bestScore) {
			continue
		}

		ledger.Mark(rec.ID, best.Phone)
		results = append(results, m.result(rec, best, bestScore))
	}
	return results
}

func (m *Matcher) result(rec *model.CanonicalRecord, e *listing.Entry, score float64) model.MatchResult {
	r := model.MatchResult{
		CanonicalID: rec.ID,
		Field:       m.Field,
		Phone:       e.Phone,
		Score:       score,
		Source:      e.Listing.Source,
		Department:  rec.Department,
	}
	if m.Field == model.FieldRating {
		r.RatingAverage = e.Listing.Rating
		r.ReviewCount = e.Listing.ReviewCount
	}
	return r
}
