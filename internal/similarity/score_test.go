package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_IdenticalNamesScoreOne(t *testing.T) {
	t.Parallel()

	names := []string{
		"dupont plomberie",
		"garage",
		"ab",
		"l atelier du bois",
		"electricite herve martin fils",
		"garage 2000",
	}
	for _, n := range names {
		t.Run(n, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, 1.0, Compare(n, n))
		})
	}
}

func TestScore_EmptyOrUntokenizable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Compare("", "dupont"))
	assert.Equal(t, 0.0, Compare("dupont", ""))
	assert.Equal(t, 0.0, Compare("a b c", "a b c"))
}

func TestExplain_ExactAndFuzzy(t *testing.T) {
	t.Parallel()

	bd := Explain(NewProfile("dupond plomberie"), NewProfile("dupont plomberie"))
	assert.Equal(t, 1, bd.Exact)
	assert.Equal(t, 1, bd.Fuzzy)
	assert.InDelta(t, 0.9, bd.Base, 1e-9)
	assert.Equal(t, 1.0, bd.Score)
}

func TestExplain_OrderIndependentExact(t *testing.T) {
	t.Parallel()

	bd := Explain(NewProfile("plomberie dupont"), NewProfile("dupont plomberie"))
	assert.Equal(t, 2, bd.Exact)
	assert.Equal(t, 1.0, bd.Base)
}

func TestExplain_Substring(t *testing.T) {
	t.Parallel()

	// "menuis" vs "menuiserie" differ by 4 runes: too far for the fuzzy pass.
	bd := Explain(NewProfile("menuis martin"), NewProfile("menuiserie martin"))
	assert.Equal(t, 1, bd.Exact)
	assert.Equal(t, 0, bd.Fuzzy)
	assert.Equal(t, 1, bd.Substring)
	assert.InDelta(t, 0.8, bd.Base, 1e-9)
}

func TestExplain_LongTokensAllowTwoEdits(t *testing.T) {
	t.Parallel()

	bd := Explain(NewProfile("charpentier"), NewProfile("charpantiar"))
	assert.Equal(t, 1, bd.Fuzzy)
	assert.InDelta(t, 0.8, bd.Base, 1e-9)
}

func TestExplain_ShortTokensRejectTwoEdits(t *testing.T) {
	t.Parallel()

	bd := Explain(NewProfile("durand"), NewProfile("dubant"))
	assert.Equal(t, 0, bd.Fuzzy)
	assert.Equal(t, 0.0, bd.Base)
	assert.Equal(t, 0.0, bd.Score)
}

func TestExplain_FallbackScan(t *testing.T) {
	t.Parallel()

	bd := Explain(NewProfile("abc"), NewProfile("abcdef menuiserie"))
	assert.Equal(t, 0, bd.Exact+bd.Fuzzy+bd.Substring)
	assert.Equal(t, 1, bd.Fallback)
	assert.InDelta(t, 0.25, bd.Base, 1e-9)
	assert.InDelta(t, 0.25, bd.Score, 1e-9)
}

func TestExplain_FallbackSkippedWhenSomethingMatched(t *testing.T) {
	t.Parallel()

	bd := Explain(NewProfile("abc martin"), NewProfile("abcdef martin"))
	assert.Equal(t, 1, bd.Exact)
	assert.Equal(t, 0, bd.Fallback)
	assert.InDelta(t, 0.5, bd.Base, 1e-9)
}

func TestExplain_AcronymBonus(t *testing.T) {
	t.Parallel()

	bd := Explain(NewProfile("sdb"), NewProfile("salle de bain"))
	assert.Equal(t, 0.0, bd.Base)
	assert.InDelta(t, AcronymBonus, bd.Acronym, 1e-9)
	assert.InDelta(t, AcronymBonus, bd.Score, 1e-9)
}

func TestExplain_AcronymBothDirections(t *testing.T) {
	t.Parallel()

	bd := Explain(NewProfile("jean martin"), NewProfile("jm renov"))
	// "jm" appears in "jmrenov"; "jr" does not appear in "jeanmartin".
	assert.InDelta(t, AcronymBonus, bd.Acronym, 1e-9)

	bd = Explain(NewProfile("alpha beta"), NewProfile("atlas bravo"))
	// Identical acronyms credit both directions.
	assert.InDelta(t, 2*AcronymBonus, bd.Acronym, 1e-9)
}

func TestExplain_DistinctiveWord(t *testing.T) {
	t.Parallel()

	bd := Explain(NewProfile("plomberie"), NewProfile("plomberie dupont martin"))
	assert.InDelta(t, 1.0/3.0, bd.Base, 1e-9)
	assert.Equal(t, DistinctiveBonus, bd.Distinct)
	assert.InDelta(t, 1.0/3.0+DistinctiveBonus, bd.Score, 1e-9)
}

func TestExplain_DistinctiveWordNeedsLength(t *testing.T) {
	t.Parallel()

	bd := Explain(NewProfile("azur"), NewProfile("azur peinture deco"))
	assert.Equal(t, 0.0, bd.Distinct)
}

func TestScore_Bounded(t *testing.T) {
	t.Parallel()

	names := []string{
		"", "ab", "abc", "dupont", "dupont plomberie", "plomberie dupont martin",
		"salle de bain", "sdb", "abcdef menuiserie", "aa aa aa aa", "ab ab",
	}
	for _, a := range names {
		for _, b := range names {
			s := Compare(a, b)
			assert.GreaterOrEqual(t, s, 0.0, "%q vs %q", a, b)
			assert.LessOrEqual(t, s, 1.0, "%q vs %q", a, b)
		}
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Clamp(-0.2))
	assert.Equal(t, 0.5, Clamp(0.5))
	assert.Equal(t, 1.0, Clamp(1.4))
}
