// Thin entry point for cron: runs the daily batch once and exits non-zero
// when the whole batch fails.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/infra/database/postgres"
	radarrepo "github.com/wuwenjia6498/fishbowl-monitor/internal/infra/database/postgres/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/infra/external/tushare"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/pkg/config"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/pkg/logger"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/service/etl"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging, "fishbowl-etl-daily"); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := etl.NewService(
		tushare.NewClient(cfg),
		radarrepo.NewConfigRepository(pool),
		radarrepo.NewDailyRepository(pool),
		radarrepo.NewRunLogRepository(pool),
		cfg.ETL.WindowSize,
	)

	summary, err := svc.RunDaily(ctx)
	if err != nil {
		fmt.Printf("Batch failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Batch done: %d/%d succeeded in %dms\n",
		summary.Succeeded, summary.Processed, summary.DurationMs())
}
