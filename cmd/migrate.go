package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listing-match/internal/resilience"
	"github.com/sells-group/listing-match/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the canonical records table",
	Long:  "Creates the canonical records table and its department, phone and city indexes if they do not exist.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		dial, err := initDialer()
		if err != nil {
			return err
		}
		retry := resilience.ConnectRetry(cfg.Store.ConnectRetries)
		retry.OnRetry = resilience.RetryLogger("migrate", "connect")
		conn, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (store.Conn, error) {
			return dial(ctx)
		})
		if err != nil {
			return eris.Wrap(err, "migrate: connect")
		}
		defer conn.Close(ctx) //nolint:errcheck

		if err := conn.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}

		zap.L().Info("schema ready", zap.String("table", cfg.Store.Table))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
