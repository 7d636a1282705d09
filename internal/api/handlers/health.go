package handlers

import (
	"net/http"
	"time"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/api/response"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/infra/database/postgres"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	dbPool    *postgres.Pool
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(dbPool *postgres.Pool, version string) *HealthHandler {
	return &HealthHandler{
		dbPool:    dbPool,
		startTime: time.Now(),
		version:   version,
	}
}

// SimpleHealthResponse represents a simple health check response
type SimpleHealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// DetailedHealthResponse represents detailed health information
type DetailedHealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Timestamp     time.Time              `json:"timestamp"`
	Database      *postgres.HealthStatus `json:"database"`
}

// Health returns simple liveness check
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, r, SimpleHealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// Detailed returns readiness with dependency state
// GET /health/detailed
func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	dbHealth := h.dbPool.Health(r.Context())

	overall := dbHealth.Status
	resp := DetailedHealthResponse{
		Status:        overall,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now(),
		Database:      dbHealth,
	}

	if overall == "unhealthy" {
		response.Error(w, r, http.StatusServiceUnavailable, response.ErrCodeDatabaseError, "database unavailable")
		return
	}

	response.Success(w, r, resp)
}
