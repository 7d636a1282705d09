package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	radarrepo "github.com/wuwenjia6498/fishbowl-monitor/internal/infra/database/postgres/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/service/etl"
)

// recalcCmd replays classification over the stored history
var recalcCmd = &cobra.Command{
	Use:   "recalc [symbol...]",
	Short: "Recompute derived columns over the stored history",
	Long: `Replays the trend classification over every stored close and overwrites
the derived columns (MA20, status, deviation, streak, signal tag). Close
prices are never modified. With no arguments the whole monitored universe
is recomputed.`,
	RunE: runRecalc,
}

func runRecalc(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, pool, err := bootstrap(ctx, "fishbowl-recalc")
	if err != nil {
		return err
	}
	defer pool.Close()

	configRepo := radarrepo.NewConfigRepository(pool)
	dailyRepo := radarrepo.NewDailyRepository(pool)
	runLogRepo := radarrepo.NewRunLogRepository(pool)

	// no fetcher involved: recalc works purely from stored closes
	svc := etl.NewService(nil, configRepo, dailyRepo, runLogRepo, cfg.ETL.WindowSize)

	result, err := svc.RecalculateHistory(ctx, args...)
	if err != nil {
		return err
	}

	log.Info().
		Int("symbols", result.Symbols).
		Int("rows_updated", result.RowsUpdated).
		Int("skipped", result.Skipped).
		Msg("Recalculation complete")

	return nil
}
