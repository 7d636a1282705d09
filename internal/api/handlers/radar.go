package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/api/response"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/domain/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/service/dashboard"
)

// RadarHandler handles fishbowl radar API requests
type RadarHandler struct {
	dashboard *dashboard.Service
}

// NewRadarHandler creates a new RadarHandler
func NewRadarHandler(dashboard *dashboard.Service) *RadarHandler {
	return &RadarHandler{dashboard: dashboard}
}

// GetOverview returns the latest board snapshot
// GET /api/radar
func (h *RadarHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.dashboard.Overview(r.Context())
	if err != nil {
		if errors.Is(err, radar.ErrMetricNotFound) {
			response.NotFound(w, r, "No classified data yet")
			return
		}
		log.Error().Err(err).Msg("Failed to build overview")
		response.InternalError(w, r, "Failed to load overview")
		return
	}

	response.SuccessWithCount(w, r, overview, len(overview.Items))
}

// GetHistory returns recent classified days for one symbol
// GET /api/radar/{symbol}?limit=90
func (h *RadarHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, response.ErrCodeInvalidParameter, "limit must be an integer")
			return
		}
		limit = n
	}

	history, err := h.dashboard.History(r.Context(), symbol, limit)
	if err != nil {
		if errors.Is(err, radar.ErrInstrumentNotFound) {
			response.NotFound(w, r, "Unknown symbol: "+symbol)
			return
		}
		log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load history")
		response.InternalError(w, r, "Failed to load history")
		return
	}

	response.SuccessWithCount(w, r, history, len(history))
}

// GetLatest returns the most recent classified day for one symbol
// GET /api/radar/{symbol}/latest
func (h *RadarHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	metric, err := h.dashboard.Latest(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, radar.ErrMetricNotFound) {
			response.NotFound(w, r, "No data for symbol: "+symbol)
			return
		}
		log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load latest metric")
		response.InternalError(w, r, "Failed to load latest metric")
		return
	}

	response.Success(w, r, metric)
}

// GetRuns returns recent batch run summaries
// GET /api/runs?limit=20
func (h *RadarHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, response.ErrCodeInvalidParameter, "limit must be an integer")
			return
		}
		limit = n
	}

	runs, err := h.dashboard.RecentRuns(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load run logs")
		response.InternalError(w, r, "Failed to load run logs")
		return
	}

	response.SuccessWithCount(w, r, runs, len(runs))
}
