// Package cmd - fishbowl CLI commands
package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/infra/database/postgres"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/pkg/config"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/pkg/logger"
)

const serviceVersion = "1.0.0"

var verbose bool

// rootCmd is the CLI entry point
var rootCmd = &cobra.Command{
	Use:   "fishbowl",
	Short: "Fishbowl trend monitor - CLI",
	Long: `Fishbowl trend monitor - CLI

Commands:
    etl       run the daily fetch/classify/rank batch once
    recalc    replay classification over the full stored history
    rank      recompute trend ranks for the latest trade date
    api       start the dashboard API server
`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(etlCmd)
	rootCmd.AddCommand(recalcCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(apiCmd)
}

// bootstrap loads config, sets up logging and opens the database pool.
// Market data is exchange-local, so the process runs in Asia/Shanghai.
func bootstrap(ctx context.Context, service string) (*config.Config, *postgres.Pool, error) {
	if loc, err := time.LoadLocation("Asia/Shanghai"); err == nil {
		time.Local = loc
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := logger.Init(cfg.Logging, service); err != nil {
		return nil, nil, err
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return nil, nil, err
	}

	return cfg, pool, nil
}
