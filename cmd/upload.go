package main

import (
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listing-match/internal/metrics"
	"github.com/sells-group/listing-match/internal/resilience"
	"github.com/sells-group/listing-match/internal/upload"
)

// maxLoggedRowErrors caps the per-row failures echoed to the log.
const maxLoggedRowErrors = 10

var uploadCmd = &cobra.Command{
	Use:   "upload <results.ndjson>",
	Short: "Apply exported match results to the store",
	Long: `Reads match results written by "match --dry-run" and applies them with
guarded updates, in chunks of upload.chunk_size rows. A chunk that fails is
retried row by row; rows that still fail are reported and counted.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	f := uploadCmd.Flags()
	f.Int("chunk-size", 0, "rows per statement (overrides config)")
	f.Int("workers", 0, "concurrent connections (overrides config)")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := cmd.Flags()
	if f.Changed("chunk-size") {
		cfg.Upload.ChunkSize, _ = f.GetInt("chunk-size")
	}
	if f.Changed("workers") {
		cfg.Upload.Workers, _ = f.GetInt("workers")
	}
	if err := cfg.Validate("upload"); err != nil {
		return err
	}

	results, err := upload.ReadFile(ctx, args[0])
	if err != nil {
		return err
	}
	dial, err := initDialer()
	if err != nil {
		return err
	}

	res, err := upload.Run(ctx, dial, results, upload.Options{
		ChunkSize: cfg.Upload.ChunkSize,
		Workers:   cfg.Upload.Workers,
		Retry:     resilience.ConnectRetry(cfg.Store.ConnectRetries),
		Metrics:   metrics.New(),
	})
	if err != nil {
		return eris.Wrap(err, "upload")
	}

	for i, rowErr := range res.Errors {
		if i == maxLoggedRowErrors {
			zap.L().Warn("more rows failed", zap.Int("not_logged", len(res.Errors)-i))
			break
		}
		zap.L().Warn("row failed", zap.String("canonical_id", rowErr.CanonicalID), zap.Error(rowErr.Err))
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Rows", "Chunks", "Fallbacks", "Updated", "Skipped", "Failed"})
	t.AppendRow(table.Row{res.Rows, res.Chunks, res.Fallbacks, res.Updated, res.Skipped, res.Failed})
	t.Render()
	return nil
}
