package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/api/handlers"
)

// Config holds router configuration
type Config struct {
	RadarHandler  *handlers.RadarHandler
	HealthHandler *handlers.HealthHandler
	CORSOrigin    string
}

// NewRouter creates a new HTTP router
func NewRouter(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", cfg.HealthHandler.Health)
	r.Get("/health/detailed", cfg.HealthHandler.Detailed)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/radar", cfg.RadarHandler.GetOverview)
		r.Get("/radar/{symbol}", cfg.RadarHandler.GetHistory)
		r.Get("/radar/{symbol}/latest", cfg.RadarHandler.GetLatest)
		r.Get("/runs", cfg.RadarHandler.GetRuns)
	})

	return r
}
