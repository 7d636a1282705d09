package cmd

import (
	"context"

	"github.com/spf13/cobra"

	radarrepo "github.com/wuwenjia6498/fishbowl-monitor/internal/infra/database/postgres/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/service/etl"
)

// rankCmd recomputes the cross-sectional ranks for the latest trade date
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Recompute trend ranks for the latest trade date",
	Long:  `Recomputes trend_rank across all instruments on the most recent stored trade date, without refetching or reclassifying anything.`,
	RunE:  runRank,
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, pool, err := bootstrap(ctx, "fishbowl-rank")
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := etl.NewService(nil,
		radarrepo.NewConfigRepository(pool),
		radarrepo.NewDailyRepository(pool),
		radarrepo.NewRunLogRepository(pool),
		cfg.ETL.WindowSize,
	)

	return svc.RankLatest(ctx)
}
