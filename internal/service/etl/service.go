package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/domain/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/strategy/trend"
)

// errPersist marks repository write failures so the run summary can
// distinguish them from upstream data problems.
var errPersist = errors.New("persist metric")

// Service runs the daily fishbowl batch: fetch, classify, persist, rank.
type Service struct {
	fetcher    radar.SeriesFetcher
	configRepo radar.ConfigRepository
	dailyRepo  radar.DailyRepository
	runLogRepo radar.RunLogRepository

	windowSize int
}

// NewService creates the batch service
func NewService(
	fetcher radar.SeriesFetcher,
	configRepo radar.ConfigRepository,
	dailyRepo radar.DailyRepository,
	runLogRepo radar.RunLogRepository,
	windowSize int,
) *Service {
	if windowSize <= 0 {
		windowSize = trend.WindowSize
	}
	return &Service{
		fetcher:    fetcher,
		configRepo: configRepo,
		dailyRepo:  dailyRepo,
		runLogRepo: runLogRepo,
		windowSize: windowSize,
	}
}

// RunDaily processes every monitored instrument once. Per-instrument failures
// are collected into the summary and never abort the run; the run as a whole
// fails only when not a single instrument succeeds.
func (s *Service) RunDaily(ctx context.Context) (*radar.RunSummary, error) {
	summary := &radar.RunSummary{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
	}

	log.Info().Str("run_id", summary.RunID.String()).Msg("Starting daily batch")

	instruments, err := s.configRepo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active instruments: %w", err)
	}

	var tradeDate time.Time
	for _, inst := range instruments {
		summary.Processed++

		date, err := s.processInstrument(ctx, inst)
		if err != nil {
			failure := classifyFailure(inst.Symbol, err)
			summary.Failed++
			summary.Failures = append(summary.Failures, failure)

			// bad upstream data is routine, infrastructure failures are not
			event := log.Error()
			if radar.IsSeriesError(err) {
				event = log.Warn()
			}
			event.
				Err(err).
				Str("symbol", inst.Symbol).
				Str("kind", string(failure.Kind)).
				Msg("Instrument skipped")
			continue
		}

		summary.Succeeded++
		if date.After(tradeDate) {
			tradeDate = date
		}
	}

	if !tradeDate.IsZero() {
		summary.TradeDate = &tradeDate
		if err := s.rankDate(ctx, tradeDate); err != nil {
			log.Error().Err(err).Msg("Ranking phase failed")
		}
	}

	summary.FinishedAt = time.Now()

	if err := s.runLogRepo.Create(ctx, summary); err != nil {
		log.Error().Err(err).Msg("Failed to record run log")
	}

	log.Info().
		Str("run_id", summary.RunID.String()).
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int64("duration_ms", summary.DurationMs()).
		Msg("Daily batch finished")

	if summary.Succeeded == 0 && summary.Processed > 0 {
		return summary, radar.ErrBatchExhausted
	}

	return summary, nil
}

// processInstrument fetches, classifies and persists one instrument.
// Returns the trade date of the persisted row.
func (s *Service) processInstrument(ctx context.Context, inst *radar.Instrument) (time.Time, error) {
	raw, err := s.fetcher.FetchSeries(ctx, inst.Symbol, inst.Category)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetch series: %w", err)
	}

	series, err := trend.Normalize(raw, 1)
	if err != nil {
		return time.Time{}, err
	}

	metrics, err := trend.Classify(inst.Symbol, series)
	if err != nil {
		return time.Time{}, err
	}

	latest := metrics[len(metrics)-1]
	latest.Sparkline = s.mergeWindow(ctx, inst.Symbol, metrics)

	if err := s.dailyRepo.Upsert(ctx, latest); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errPersist, err)
	}

	return latest.Date, nil
}

// mergeWindow extends the persisted sparkline with today's point. When the
// stored window is missing, corrupt, or too thin to be trusted, it is rebuilt
// from the freshly classified history instead.
func (s *Service) mergeWindow(ctx context.Context, symbol string, metrics []*radar.DailyMetric) []radar.SparklinePoint {
	latest := metrics[len(metrics)-1]

	prior, err := s.dailyRepo.GetPriorWindow(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Prior window read failed, rebuilding")
		return trend.BuildWindow(metrics, s.windowSize)
	}

	window := trend.ParseWindow(symbol, prior)
	if len(window) < trend.MinViablePoints {
		return trend.BuildWindow(metrics, s.windowSize)
	}

	return trend.AppendPoint(window, trend.NewSparklinePoint(latest), s.windowSize)
}

// rankDate recomputes trend_rank across all rows of one trade date
func (s *Service) rankDate(ctx context.Context, date time.Time) error {
	rows, err := s.dailyRepo.GetByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("get rows for ranking: %w", err)
	}

	candidates := make([]trend.RankCandidate, 0, len(rows))
	for _, row := range rows {
		dev := row.DeviationPct
		candidates = append(candidates, trend.RankCandidate{
			Symbol:    row.Symbol,
			Deviation: &dev,
		})
	}

	ranks := trend.Rank(candidates)
	if err := s.dailyRepo.UpdateRanks(ctx, date, ranks); err != nil {
		return fmt.Errorf("update ranks: %w", err)
	}

	log.Info().
		Time("date", date).
		Int("ranked", len(ranks)).
		Msg("Trend ranks updated")

	return nil
}

// classifyFailure maps an instrument error to its failure kind
func classifyFailure(symbol string, err error) radar.InstrumentFailure {
	kind := radar.FailureFetch
	switch {
	case errors.Is(err, radar.ErrEmptySeries), errors.Is(err, radar.ErrDuplicateDate):
		kind = radar.FailureEmptySeries
	case errors.Is(err, radar.ErrInvalidPrice):
		kind = radar.FailureInvalidPrice
	case errors.Is(err, errPersist):
		kind = radar.FailurePersist
	}

	return radar.InstrumentFailure{
		Symbol: symbol,
		Kind:   kind,
		Detail: err.Error(),
	}
}
