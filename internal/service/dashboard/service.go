package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/domain/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/infra/cache"
)

const (
	overviewCacheKey    = "fishbowl:overview"
	defaultHistoryLimit = 250
)

// Overview is the board-level snapshot served to the dashboard
type Overview struct {
	Date    string         `json:"date"`
	Items   []OverviewItem `json:"items"`
	Summary Summary        `json:"summary"`
}

// OverviewItem is one instrument's latest classified day joined with its
// monitor_config entry
type OverviewItem struct {
	radar.DailyMetric
	Name        string `json:"name"`
	Category    string `json:"category"`
	SystemBench bool   `json:"is_system_bench"`
}

// Summary counts the board by trend side and signal tag
type Summary struct {
	Total   int            `json:"total"`
	Bullish int            `json:"bullish"`
	Bearish int            `json:"bearish"`
	Tags    map[string]int `json:"tags"`
}

// Service serves read-side dashboard queries. Concurrent identical requests
// are collapsed with singleflight and results sit in the shared cache until
// the next batch run invalidates them.
type Service struct {
	configRepo radar.ConfigRepository
	dailyRepo  radar.DailyRepository
	runLogRepo radar.RunLogRepository
	cache      *cache.Cache
	group      singleflight.Group
}

// NewService creates the dashboard service
func NewService(
	configRepo radar.ConfigRepository,
	dailyRepo radar.DailyRepository,
	runLogRepo radar.RunLogRepository,
	c *cache.Cache,
) *Service {
	return &Service{
		configRepo: configRepo,
		dailyRepo:  dailyRepo,
		runLogRepo: runLogRepo,
		cache:      c,
	}
}

// Overview returns the latest classified day for every monitored instrument
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var cached Overview
	if err := s.cache.Get(ctx, overviewCacheKey, &cached); err == nil {
		return &cached, nil
	}

	v, err, _ := s.group.Do(overviewCacheKey, func() (interface{}, error) {
		return s.buildOverview(ctx)
	})
	if err != nil {
		return nil, err
	}

	overview := v.(*Overview)
	if err := s.cache.Set(ctx, overviewCacheKey, overview); err != nil {
		log.Warn().Err(err).Msg("Failed to cache overview")
	}

	return overview, nil
}

func (s *Service) buildOverview(ctx context.Context) (*Overview, error) {
	date, err := s.dailyRepo.GetLatestDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve latest date: %w", err)
	}

	rows, err := s.dailyRepo.GetByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load board rows: %w", err)
	}

	instruments, err := s.configRepo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load instrument universe: %w", err)
	}

	bySymbol := make(map[string]*radar.DailyMetric, len(rows))
	for _, row := range rows {
		bySymbol[row.Symbol] = row
	}

	overview := &Overview{Date: date.Format("2006-01-02")}
	overview.Summary.Tags = make(map[string]int)
	// config order drives board order
	for _, inst := range instruments {
		row, ok := bySymbol[inst.Symbol]
		if !ok {
			continue
		}
		overview.Items = append(overview.Items, OverviewItem{
			DailyMetric: *row,
			Name:        inst.Name,
			Category:    inst.Category,
			SystemBench: inst.SystemBench,
		})

		overview.Summary.Total++
		if row.Status == radar.StatusYes {
			overview.Summary.Bullish++
		} else {
			overview.Summary.Bearish++
		}
		overview.Summary.Tags[string(row.SignalTag)]++
	}

	return overview, nil
}

// History returns up to limit most recent classified days for one symbol
func (s *Service) History(ctx context.Context, symbol string, limit int) ([]*radar.DailyMetric, error) {
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}

	if _, err := s.configRepo.GetBySymbol(ctx, symbol); err != nil {
		return nil, err
	}

	return s.dailyRepo.GetHistory(ctx, symbol, limit)
}

// Latest returns the most recent classified day for one symbol
func (s *Service) Latest(ctx context.Context, symbol string) (*radar.DailyMetric, error) {
	return s.dailyRepo.GetLatest(ctx, symbol)
}

// RecentRuns returns the latest batch run summaries
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]*radar.RunSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.runLogRepo.GetRecent(ctx, limit)
}

// Invalidate drops cached board state; called after a batch run
func (s *Service) Invalidate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, overviewCacheKey); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate overview cache")
	}
}
