package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sells-group/listing-match/internal/match"
	"github.com/sells-group/listing-match/internal/normalize"
	"github.com/sells-group/listing-match/internal/similarity"
)

var scoreCmd = &cobra.Command{
	Use:   "score <record-name> <listing-name>",
	Short: "Explain the similarity of two business names",
	Long: `Normalizes a canonical record name and a listing name, then prints each
scoring pass, the bonuses and whether the composite score clears the
threshold. Useful to tune match.threshold and the legal-forms dictionary.

Examples:
  score "SARL Dupont Plomberie" "Plomberie Dupont"
  score "Garage du Port (Auto Marine)" "Auto Marine" --postal 13002 --listing-postal 13002`,
	Args: cobra.ExactArgs(2),
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("postal", "", "record postal code")
	f.String("listing-postal", "", "listing postal code")
	f.Float64("threshold", 0, "acceptance threshold (default from config)")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	norm, err := initNormalizer()
	if err != nil {
		return err
	}

	threshold := cfg.Match.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold, _ = cmd.Flags().GetFloat64("threshold")
	}
	postal, _ := cmd.Flags().GetString("postal")
	listingPostal, _ := cmd.Flags().GetString("listing-postal")

	e := explainPair(norm, args[0], args[1], postal, listingPostal, cfg.Match.PostalBonus)
	m := &match.Matcher{Threshold: threshold}

	out := cmd.OutOrStdout()
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "Record", "Listing"})
	t.AppendRows([]table.Row{
		{"Raw", args[0], args[1]},
		{"Normalized", e.legal, e.listing},
		{"Commercial", e.commercial, ""},
	})
	t.Render()

	bd := e.breakdown
	s := table.NewWriter()
	s.SetOutputMirror(out)
	s.SetStyle(table.StyleLight)
	s.AppendHeader(table.Row{"Step", "Value"})
	s.AppendRows([]table.Row{
		{"Compared against", e.against},
		{"Exact tokens", bd.Exact},
		{"Fuzzy tokens", bd.Fuzzy},
		{"Substring tokens", bd.Substring},
		{"Fallback pairs", bd.Fallback},
		{"Base", fmt.Sprintf("%.3f", bd.Base)},
		{"Acronym bonus", fmt.Sprintf("%.2f", bd.Acronym)},
		{"Distinctive bonus", fmt.Sprintf("%.2f", bd.Distinct)},
		{"Name score", fmt.Sprintf("%.3f", bd.Score)},
		{"Postal bonus", fmt.Sprintf("%.2f", e.postalBonus)},
		{"Composite", fmt.Sprintf("%.3f", e.composite)},
		{"Threshold", fmt.Sprintf("%.3f", threshold)},
		{"Accepted", m.Accepts(e.composite)},
	})
	s.Render()
	return nil
}

// explanation is the scoring trace of one record/listing name pair.
type explanation struct {
	legal, commercial, listing string
	against                    string
	breakdown                  similarity.Breakdown
	postalBonus                float64
	composite                  float64
}

// explainPair mirrors the matcher's composite: the better of the legal and
// commercial name scores plus the postal bonus, clamped.
func explainPair(norm *normalize.Normalizer, record, listing, postal, listingPostal string, bonus float64) explanation {
	e := explanation{
		legal:      norm.Name(record),
		commercial: norm.CommercialName(record),
		listing:    norm.Name(listing),
		against:    "legal name",
	}
	lp := similarity.NewProfile(e.listing)
	e.breakdown = similarity.Explain(similarity.NewProfile(e.legal), lp)
	if e.commercial != "" {
		if cb := similarity.Explain(similarity.NewProfile(e.commercial), lp); cb.Score > e.breakdown.Score {
			e.breakdown = cb
			e.against = "commercial name"
		}
	}

	postal, listingPostal = strings.TrimSpace(postal), strings.TrimSpace(listingPostal)
	if postal != "" && postal == listingPostal {
		e.postalBonus = bonus
	}
	e.composite = similarity.Clamp(e.breakdown.Score + e.postalBonus)
	return e
}
