package listing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/normalize"
)

func ptr[T any](v T) *T { return &v }

func TestBuilder_DedupAndPartition(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(model.FieldPhone)

	assert.True(t, b.Add(ctx, model.Listing{Name: "Plomberie Dupont", Phone: "+33 6 12 34 56 78", PostalCode: "75001"}))
	assert.False(t, b.Add(ctx, model.Listing{Name: "Dupont Bis", Phone: "06.12.34.56.78"}), "duplicate phone")
	assert.True(t, b.Add(ctx, model.Listing{Name: "Martin Elec", Phone: "0698765432", Department: "69"}))
	assert.True(t, b.Add(ctx, model.Listing{Name: "Sans Lieu", Phone: "0611111111"}))
	assert.False(t, b.Add(ctx, model.Listing{Name: "Premium", Phone: "0891234567"}))
	assert.False(t, b.Add(ctx, model.Listing{Name: "SARL", Phone: "0622222222"}), "nothing left after stripping")

	ix := b.Index()
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, []string{"69", "75", "??"}, ix.Shards())

	paris := ix.Shard("75")
	require.Equal(t, 1, paris.Len())
	assert.Equal(t, "0612345678", paris.All[0].Phone)
	assert.Equal(t, []string{"plomberie", "dupont"}, paris.All[0].Profile.Tokens)
	assert.Len(t, paris.ByPostal("75001"), 1)
	assert.Empty(t, paris.ByPostal("75002"))

	assert.Nil(t, ix.Shard("13"))
	assert.Equal(t, 0, ix.Shard("13").Len())

	assert.Equal(t, IndexStats{Indexed: 3, BadPhone: 1, Duplicate: 1, EmptyName: 1, Unknown: 1}, ix.Stats)
}

func TestBuilder_KnownPhonesOnlyFilterPhoneRuns(t *testing.T) {
	ctx := context.Background()
	known := WithKnownPhones([]string{"06 12 34 56 78", "garbage"})
	l := model.Listing{Name: "Dupont", Phone: "0612345678", Department: "75", Rating: ptr(4.0), ReviewCount: ptr(3)}

	phone := NewBuilder(model.FieldPhone, known)
	assert.False(t, phone.Add(ctx, l))
	assert.Equal(t, 1, phone.Index().Stats.KnownPhone)

	rating := NewBuilder(model.FieldRating, known)
	assert.True(t, rating.Add(ctx, l))
}

func TestBuilder_RatingRunsNeedRatings(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(model.FieldRating)

	assert.False(t, b.Add(ctx, model.Listing{Name: "Dupont", Phone: "0612345678"}))
	assert.False(t, b.Add(ctx, model.Listing{Name: "Dupont", Phone: "0612345679", Rating: ptr(4.0), ReviewCount: ptr(0)}))
	assert.True(t, b.Add(ctx, model.Listing{Name: "Dupont", Phone: "0612345670", Rating: ptr(4.0), ReviewCount: ptr(5)}))
	assert.Equal(t, 2, b.Index().Stats.NoRating)
}

func TestBuilder_FirstPhoneWinsEvenWhenDropped(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(model.FieldPhone)

	assert.False(t, b.Add(ctx, model.Listing{Name: "SARL", Phone: "0612345678"}))
	assert.False(t, b.Add(ctx, model.Listing{Name: "Plomberie Dupont", Phone: "06 12 34 56 78", Department: "75"}))

	ix := b.Index()
	assert.Zero(t, ix.Len())
	assert.Equal(t, IndexStats{EmptyName: 1, Duplicate: 1}, ix.Stats)
}

func TestBuilder_PadsNumericPostalCodes(t *testing.T) {
	b := NewBuilder(model.FieldPhone)
	require.True(t, b.Add(context.Background(), model.Listing{Name: "Boulangerie Bresse", Phone: "0474000000", PostalCode: "1000"}))

	ain := b.Index().Shard("01")
	require.Equal(t, 1, ain.Len())
	assert.Equal(t, "01000", ain.All[0].PostalCode)
	assert.Len(t, ain.ByPostal("01000"), 1)
}

func TestBuilder_CustomNormalizer(t *testing.T) {
	n := normalize.New(normalize.Dictionary{LegalForms: []string{"plomberie"}})
	b := NewBuilder(model.FieldPhone, WithNormalizer(n))

	require.True(t, b.Add(context.Background(), model.Listing{Name: "Plomberie Dupont", Phone: "0612345678", Department: "75"}))
	assert.Equal(t, []string{"dupont"}, b.Index().Shard("75").All[0].Profile.Tokens)
}

func TestResolveDepartment(t *testing.T) {
	ctx := context.Background()
	lookups := 0
	cities := NewCityResolver(func(_ context.Context, city string) (string, error) {
		lookups++
		switch city {
		case "Lyon", "LYON":
			return "69", nil
		case "Broken":
			return "", errors.New("conn closed")
		}
		return "", nil
	}, 8)

	tests := []struct {
		name string
		l    model.Listing
		want string
	}{
		{"explicit wins", model.Listing{Department: "13", PostalCode: "75001", City: "Lyon"}, "13"},
		{"invalid explicit falls back", model.Listing{Department: "99", PostalCode: "75001"}, "75"},
		{"corsica postal", model.Listing{PostalCode: "20200"}, "2B"},
		{"city", model.Listing{City: "Lyon"}, "69"},
		{"unknown city", model.Listing{City: "Atlantis"}, "??"},
		{"lookup error", model.Listing{City: "Broken"}, "??"},
		{"nothing", model.Listing{}, "??"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveDepartment(ctx, tt.l, cities))
		})
	}

	// Cached: same city, different case, no new lookup.
	before := lookups
	assert.Equal(t, "69", cities.Department(ctx, " lyon "))
	assert.Equal(t, "??", resolveDepartment(ctx, model.Listing{City: "atlantis"}, cities))
	assert.Equal(t, before, lookups)

	assert.Equal(t, int64(1), cities.Failed())
	assert.Equal(t, 2, cities.Stats().Entries)
	assert.Equal(t, "??", resolveDepartment(ctx, model.Listing{City: "Lyon"}, nil))
}

func TestBuilder_LoadFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "gmaps.ndjson")
	require.NoError(t, os.WriteFile(a, []byte(
		`{"name":"Plomberie Dupont","phone":"+33612345678","postalCode":"75001"}
broken
{"name":"Martin","phone":"0698765432","dept":"69"}
`), 0o644))
	bPath := filepath.Join(dir, "pj.ndjson")
	require.NoError(t, os.WriteFile(bPath, []byte(`{"name":"Autre Dupont","phone":"0612345678","cp":"75002"}`+"\n"), 0o644))

	b := NewBuilder(model.FieldPhone)
	require.NoError(t, b.LoadFiles(context.Background(), []string{a, bPath}))
	ix := b.Index()

	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, DecodeStats{Lines: 4, Decoded: 3, Malformed: 1}, ix.Stats.Decode)
	assert.Equal(t, 1, ix.Stats.Duplicate)
	assert.Equal(t, "gmaps", ix.Shard("75").All[0].Listing.Source)
}

func TestBuilder_LoadFiles_MissingFileIsFatal(t *testing.T) {
	b := NewBuilder(model.FieldPhone)
	err := b.LoadFiles(context.Background(), []string{filepath.Join(t.TempDir(), "missing.ndjson")})
	require.Error(t, err)
}
