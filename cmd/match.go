package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listing-match/internal/enrich"
	"github.com/sells-group/listing-match/internal/metrics"
	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/worker"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match listings to records and fill the missing field",
	Long: `Loads every listing file once, then matches listings to active canonical
records shard by shard (one shard per French department) with a fixed pool of
workers. Each accepted match is written immediately with a guarded update, so
the command can be re-run safely to pick up whatever did not complete.

Examples:
  # Fill missing phones from two scrapes
  match --listings pagesjaunes.ndjson,google.ndjson

  # Fill missing ratings with 8 workers
  match --field rating --workers 8

  # Export matches without touching the store
  match --dry-run --out matches.ndjson`,
	RunE: runMatch,
}

func init() {
	f := matchCmd.Flags()
	f.Bool("dry-run", false, "write matches as NDJSON instead of updating the store")
	f.String("out", "", "dry-run output file (default stdout)")
	f.Int("workers", 0, "number of shard workers (overrides config)")
	f.String("field", "", "field to fill: phone or rating (overrides config)")
	f.Float64("threshold", 0, "minimum composite score (overrides config)")
	f.StringSlice("listings", nil, "comma-separated listing files (overrides config)")
	rootCmd.AddCommand(matchCmd)
}

// applyMatchFlags copies explicitly set flags over the loaded config.
func applyMatchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("workers") {
		cfg.Match.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("field") {
		cfg.Match.Field, _ = f.GetString("field")
	}
	if f.Changed("threshold") {
		cfg.Match.Threshold, _ = f.GetFloat64("threshold")
	}
	if f.Changed("listings") {
		cfg.Listings.Files, _ = f.GetStringSlice("listings")
	}
}

func runMatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applyMatchFlags(cmd)
	if err := cfg.Validate("match"); err != nil {
		return err
	}

	field, err := model.ParseField(cfg.Match.Field)
	if err != nil {
		return err
	}
	norm, err := initNormalizer()
	if err != nil {
		return err
	}
	dial, err := initDialer()
	if err != nil {
		return err
	}

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		shutdown, err := m.Serve(cfg.Metrics.Addr)
		if err != nil {
			return err
		}
		defer shutdown(context.Background()) //nolint:errcheck
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	summary := cmd.OutOrStdout()
	var sink *worker.Sink
	if dryRun {
		out, _ := cmd.Flags().GetString("out")
		w, closeOut, err := openOutput(cmd, out)
		if err != nil {
			return err
		}
		defer closeOut() //nolint:errcheck
		sink = worker.NewSink(w)
		if out == "" {
			summary = cmd.ErrOrStderr()
		}
	}

	runner := enrich.New(dial, enrich.Options{
		Field:           field,
		Files:           cfg.Listings.Files,
		Workers:         cfg.Match.Workers,
		Threshold:       cfg.Match.Threshold,
		PostalBonus:     cfg.Match.PostalBonus,
		Normalizer:      norm,
		CityCacheSize:   cfg.Listings.CityCacheSize,
		ConnectRetries:  cfg.Store.ConnectRetries,
		ErrorLogLimit:   cfg.Match.ErrorLogLimit,
		MaxWritesPerSec: cfg.Store.MaxWritesPerSec,
		Sink:            sink,
		Metrics:         m,
	})

	report, err := runner.Run(ctx)
	if report != nil && report.Elapsed > 0 {
		report.Render(summary)
	}
	if err != nil {
		zap.L().Error("match run failed", zap.Error(err))
		return eris.Wrap(err, "match")
	}
	return nil
}

// openOutput returns the dry-run destination: path, or stdout when empty.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create %s", path)
	}
	return f, f.Close, nil
}
