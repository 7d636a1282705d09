package cmd

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/domain/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/infra/cache"
	radarrepo "github.com/wuwenjia6498/fishbowl-monitor/internal/infra/database/postgres/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/infra/external/tushare"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/service/dashboard"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/service/etl"
)

// etlCmd runs the daily batch once and exits
var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Run the daily batch once",
	Long:  `Fetches every monitored instrument, classifies the trend state, persists today's row and recomputes the cross-sectional ranks.`,
	RunE:  runETL,
}

func runETL(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, pool, err := bootstrap(ctx, "fishbowl-etl")
	if err != nil {
		return err
	}
	defer pool.Close()

	configRepo := radarrepo.NewConfigRepository(pool)
	dailyRepo := radarrepo.NewDailyRepository(pool)
	runLogRepo := radarrepo.NewRunLogRepository(pool)

	client := tushare.NewClient(cfg)
	svc := etl.NewService(client, configRepo, dailyRepo, runLogRepo, cfg.ETL.WindowSize)

	summary, err := svc.RunDaily(ctx)
	if err != nil {
		if errors.Is(err, radar.ErrBatchExhausted) {
			log.Error().
				Int("processed", summary.Processed).
				Msg("Batch exhausted: no instrument succeeded")
		}
		return err
	}

	// board changed, drop the cached overview
	c := cache.New(cfg.Redis)
	defer c.Close()
	dashboard.NewService(configRepo, dailyRepo, runLogRepo, c).Invalidate(ctx)

	return nil
}
