package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/api/handlers"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/api/router"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/infra/cache"
	radarrepo "github.com/wuwenjia6498/fishbowl-monitor/internal/infra/database/postgres/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/service/dashboard"
)

// apiCmd starts the dashboard API server
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the dashboard API server",
	Long:  `Serves the board overview, per-symbol history and run logs over HTTP. Ctrl+C stops the server gracefully.`,
	RunE:  runAPI,
}

func runAPI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, pool, err := bootstrap(ctx, "fishbowl-api")
	if err != nil {
		return err
	}
	defer pool.Close()

	c := cache.New(cfg.Redis)
	defer c.Close()

	configRepo := radarrepo.NewConfigRepository(pool)
	dailyRepo := radarrepo.NewDailyRepository(pool)
	runLogRepo := radarrepo.NewRunLogRepository(pool)

	dashboardSvc := dashboard.NewService(configRepo, dailyRepo, runLogRepo, c)

	handler := router.NewRouter(&router.Config{
		RadarHandler:  handlers.NewRadarHandler(dashboardSvc),
		HealthHandler: handlers.NewHealthHandler(pool, serviceVersion),
		CORSOrigin:    cfg.Server.CORSOrigin,
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", addr).Msg("🎯 API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("🛑 Shutdown signal received, stopping server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("👋 API server stopped")
	return nil
}
