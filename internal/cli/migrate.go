package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"interview-scheduler/internal/config"
	"interview-scheduler/internal/storage/postgres"
)

func buildMigrateCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if cfg.Store != config.StorePostgres {
				return fmt.Errorf("migrate requires store %q, got %q", config.StorePostgres, cfg.Store)
			}

			ctx, cancel := withTimeout(time.Minute)
			defer cancel()

			pool, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.ReadyCheck(pool)(ctx); err != nil {
				return fmt.Errorf("database not ready: %w", err)
			}
			if err := postgres.Migrate(ctx, pool); err != nil {
				return err
			}
			log.Info("schema applied")
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}
