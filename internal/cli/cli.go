// Package cli wires configuration, storage and transports into the scheduler's
// cobra commands:
//
//	interview-scheduler serve              HTTP API + outbox publisher
//	interview-scheduler generate --email   regenerate slots from stored rules
//	interview-scheduler migrate            apply the Postgres schema
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"interview-scheduler/internal/config"
	"interview-scheduler/internal/logger"
	"interview-scheduler/internal/outbox"
	"interview-scheduler/internal/scheduling"
	"interview-scheduler/internal/storage/memory"
	"interview-scheduler/internal/storage/postgres"
)

const serviceName = "interview-scheduler"

var Version = "dev"

func BuildCLI() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Interview slot scheduling service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "config file path")

	rootCmd.AddCommand(buildServeCommand(&configFile))
	rootCmd.AddCommand(buildGenerateCommand(&configFile))
	rootCmd.AddCommand(buildMigrateCommand(&configFile))
	return rootCmd
}

// store is what every backend provides to the commands.
type store interface {
	scheduling.Store
	outbox.Source
	Ping(ctx context.Context) error
}

func setup(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Environment)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// openStore returns the configured backend and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger, migrate bool) (store, func(), error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil
	}

	pool, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return postgres.NewStore(pool), pool.Close, nil
}

func coreOptions(cfg *config.Config, log *zap.Logger) []scheduling.Option {
	return []scheduling.Option{
		scheduling.WithLocation(cfg.Location()),
		scheduling.WithLogger(log),
	}
}

func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
