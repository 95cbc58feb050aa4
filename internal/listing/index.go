package listing

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/normalize"
	"github.com/sells-group/listing-match/internal/shard"
	"github.com/sells-group/listing-match/internal/similarity"
)

// Entry is an indexed listing with its normalized phone and name profile.
type Entry struct {
	Listing    model.Listing
	Phone      string
	PostalCode string
	Department string
	Profile    similarity.Profile
}

// Shard holds the listings of one department. It is read-only once built.
type Shard struct {
	All      []*Entry
	byPostal map[string][]*Entry
}

// ByPostal returns the listings sharing the postal code.
func (s *Shard) ByPostal(cp string) []*Entry {
	if s == nil || cp == "" {
		return nil
	}
	return s.byPostal[cp]
}

// Len returns the number of listings in the shard.
func (s *Shard) Len() int {
	if s == nil {
		return 0
	}
	return len(s.All)
}

// IndexStats counts how listings were filtered while indexing.
type IndexStats struct {
	Decode     DecodeStats `json:"decode"`
	Indexed    int         `json:"indexed"`
	BadPhone   int         `json:"bad_phone"`
	Duplicate  int         `json:"duplicate"`
	KnownPhone int         `json:"known_phone"`
	EmptyName  int         `json:"empty_name"`
	NoRating   int         `json:"no_rating"`
	Unknown    int         `json:"unknown_department"`
}

// Index partitions deduplicated listings by shard.
type Index struct {
	shards map[string]*Shard
	seen   map[string]struct{}
	Stats  IndexStats
}

// Shard returns the listings of code, nil when it has none.
func (ix *Index) Shard(code string) *Shard {
	return ix.shards[code]
}

// Shards returns the codes that have listings, sorted.
func (ix *Index) Shards() []string {
	codes := make([]string, 0, len(ix.shards))
	for c := range ix.shards {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	return codes
}

// Len returns the number of indexed listings.
func (ix *Index) Len() int { return ix.Stats.Indexed }

// Builder accumulates listings into an Index.
type Builder struct {
	field      model.Field
	normalizer *normalize.Normalizer
	known      map[string]struct{}
	cities     *CityResolver
	ix         *Index
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithNormalizer overrides the default name normalizer.
func WithNormalizer(n *normalize.Normalizer) BuilderOption {
	return func(b *Builder) { b.normalizer = n }
}

// WithKnownPhones drops listings whose phone is already stored on a
// canonical record. Raw phones are normalized; unusable ones are ignored.
// Only applies to phone runs.
func WithKnownPhones(phones []string) BuilderOption {
	return func(b *Builder) {
		b.known = make(map[string]struct{}, len(phones))
		for _, p := range phones {
			if n, ok := normalize.NormalizePhone(p); ok {
				b.known[n] = struct{}{}
			}
		}
	}
}

// WithCityResolver resolves departments from the city as a last resort.
func WithCityResolver(r *CityResolver) BuilderOption {
	return func(b *Builder) { b.cities = r }
}

// NewBuilder creates a Builder for field.
func NewBuilder(field model.Field, opts ...BuilderOption) *Builder {
	b := &Builder{
		field:      field,
		normalizer: normalize.Default(),
		ix: &Index{
			shards: make(map[string]*Shard),
			seen:   make(map[string]struct{}),
		},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Add indexes one listing and reports whether it was kept. The first
// listing of a normalized phone wins, even when that listing is then dropped
// for another reason.
func (b *Builder) Add(ctx context.Context, l model.Listing) bool {
	st := &b.ix.Stats

	phone, ok := normalize.NormalizePhone(l.Phone)
	if !ok {
		st.BadPhone++
		return false
	}
	if _, dup := b.ix.seen[phone]; dup {
		st.Duplicate++
		return false
	}
	b.ix.seen[phone] = struct{}{}

	if b.field == model.FieldPhone {
		if _, known := b.known[phone]; known {
			st.KnownPhone++
			return false
		}
	}
	if b.field == model.FieldRating && !l.HasRating() {
		st.NoRating++
		return false
	}

	profile := similarity.NewProfile(b.normalizer.Name(l.Name))
	if profile.Empty() {
		st.EmptyName++
		return false
	}

	e := &Entry{
		Listing:    l,
		Phone:      phone,
		PostalCode: shard.PostalCode(l.PostalCode),
		Department: resolveDepartment(ctx, l, b.cities),
		Profile:    profile,
	}

	s := b.ix.shards[e.Department]
	if s == nil {
		s = &Shard{byPostal: make(map[string][]*Entry)}
		b.ix.shards[e.Department] = s
	}
	s.All = append(s.All, e)
	if e.PostalCode != "" {
		s.byPostal[e.PostalCode] = append(s.byPostal[e.PostalCode], e)
	}

	st.Indexed++
	if e.Department == shard.Unknown {
		st.Unknown++
	}
	return true
}

// LoadFiles decodes every file into the builder. A file that cannot be
// opened or read aborts the load.
func (b *Builder) LoadFiles(ctx context.Context, paths []string) error {
	for _, p := range paths {
		stats, err := DecodeFile(ctx, p, func(l model.Listing) { b.Add(ctx, l) })
		if err != nil {
			return err
		}
		b.ix.Stats.Decode.add(stats)
		zap.L().Info("listing: file loaded",
			zap.String("path", p),
			zap.Int("lines", stats.Lines),
			zap.Int("decoded", stats.Decoded),
			zap.Int("malformed", stats.Malformed),
			zap.Int("missing", stats.Missing),
		)
	}
	return nil
}

// Index returns the built index. The builder must not be used afterwards.
func (b *Builder) Index() *Index {
	ix := b.ix
	ix.seen = nil
	b.ix = nil
	return ix
}
