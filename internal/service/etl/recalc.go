package etl

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/domain/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/strategy/trend"
)

// RecalcResult summarizes one history recompute pass
type RecalcResult struct {
	Symbols     int `json:"symbols"`
	RowsUpdated int `json:"rows_updated"`
	Skipped     int `json:"skipped"`
}

// RecalculateHistory replays classification over the full stored close history
// and overwrites every derived column. Raw close prices are never touched, so
// the pass is idempotent: running it twice yields identical rows.
//
// With no symbols given it covers the whole monitored universe.
func (s *Service) RecalculateHistory(ctx context.Context, symbols ...string) (*RecalcResult, error) {
	if len(symbols) == 0 {
		instruments, err := s.configRepo.GetActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("get active instruments: %w", err)
		}
		for _, inst := range instruments {
			symbols = append(symbols, inst.Symbol)
		}
	}

	result := &RecalcResult{Symbols: len(symbols)}

	for _, symbol := range symbols {
		updated, err := s.recalcSymbol(ctx, symbol)
		if err != nil {
			result.Skipped++
			log.Warn().Err(err).Str("symbol", symbol).Msg("Recalc skipped")
			continue
		}
		result.RowsUpdated += updated
	}

	// derived deviations changed, so the latest cross-sectional ranks must too
	if date, err := s.dailyRepo.GetLatestDate(ctx); err == nil {
		if err := s.rankDate(ctx, date); err != nil {
			log.Error().Err(err).Msg("Re-ranking after recalc failed")
		}
	} else if !errors.Is(err, radar.ErrMetricNotFound) {
		log.Warn().Err(err).Msg("Could not resolve latest date for re-ranking")
	}

	log.Info().
		Int("symbols", result.Symbols).
		Int("rows_updated", result.RowsUpdated).
		Int("skipped", result.Skipped).
		Msg("History recalculation finished")

	return result, nil
}

// RankLatest recomputes trend_rank across the most recent trade date.
// Useful after manual row edits without a full recompute.
func (s *Service) RankLatest(ctx context.Context) error {
	date, err := s.dailyRepo.GetLatestDate(ctx)
	if err != nil {
		return fmt.Errorf("resolve latest date: %w", err)
	}
	return s.rankDate(ctx, date)
}

// recalcSymbol reclassifies one symbol's full history
func (s *Service) recalcSymbol(ctx context.Context, symbol string) (int, error) {
	closes, err := s.dailyRepo.GetCloses(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("load close history: %w", err)
	}
	if len(closes) == 0 {
		return 0, radar.ErrEmptySeries
	}

	metrics, err := trend.Classify(symbol, closes)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, m := range metrics {
		if err := s.dailyRepo.UpdateMetrics(ctx, m); err != nil {
			if errors.Is(err, radar.ErrMetricNotFound) {
				continue
			}
			return updated, fmt.Errorf("update row %s: %w", m.Date.Format("2006-01-02"), err)
		}
		updated++
	}

	return updated, nil
}
