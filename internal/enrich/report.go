package enrich

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sells-group/listing-match/internal/cache"
	"github.com/sells-group/listing-match/internal/listing"
	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/worker"
)

// Report summarizes one run.
type Report struct {
	RunID     string             `json:"run_id"`
	Field     model.Field        `json:"field"`
	DryRun    bool               `json:"dry_run"`
	Workers   int                `json:"workers"`
	Index     listing.IndexStats `json:"index"`
	CityCache cache.Stats        `json:"city_cache"`
	Stats     worker.Stats       `json:"stats"`
	PerWorker []worker.Stats     `json:"per_worker"`
	Elapsed   time.Duration      `json:"elapsed"`
}

// Render prints the summary and per-worker tables.
func (r *Report) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("run %s (%s)", r.RunID, r.Field))
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Listings indexed", r.Index.Indexed},
		{"Listings skipped", r.Index.BadPhone + r.Index.Duplicate + r.Index.KnownPhone + r.Index.EmptyName + r.Index.NoRating},
		{"Unknown department", r.Index.Unknown},
		{"Total scanned", r.Stats.Scanned},
		{"Total matched", r.Stats.Matched},
	})
	if r.DryRun {
		t.AppendRow(table.Row{"Total exported", r.Stats.Exported})
	} else {
		t.AppendRow(table.Row{"Total updated", r.Stats.Updated})
	}
	t.AppendRows([]table.Row{
		{"Total errors", r.Stats.Errors},
		{"City cache hit rate", fmt.Sprintf("%.1f%%", r.CityCache.HitRate*100)},
		{"Elapsed", r.Elapsed.Round(time.Millisecond).String()},
	})
	t.Render()

	if len(r.PerWorker) == 0 {
		return
	}
	pw := table.NewWriter()
	pw.SetOutputMirror(w)
	pw.SetStyle(table.StyleLight)
	pw.AppendHeader(table.Row{"Worker", "Shards", "Scanned", "Matched", "Updated", "Exported", "Errors"})
	for i, s := range r.PerWorker {
		pw.AppendRow(table.Row{i + 1, s.Shards, s.Scanned, s.Matched, s.Updated, s.Exported, s.Errors})
	}
	pw.AppendFooter(table.Row{"Total", r.Stats.Shards, r.Stats.Scanned, r.Stats.Matched, r.Stats.Updated, r.Stats.Exported, r.Stats.Errors})
	pw.Render()
}
