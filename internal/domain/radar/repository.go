package radar

import (
	"context"
	"time"
)

// SeriesFetcher fetches a provider-native daily series for one instrument.
// Category selects the upstream endpoint; the returned rows are not yet
// normalized.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, symbol, category string) (*RawSeries, error)
}

// ConfigRepository reads the monitored instrument universe (monitor_config)
type ConfigRepository interface {
	// GetActive returns instruments with is_active or is_system_bench set,
	// ordered by sort_rank then symbol
	GetActive(ctx context.Context) ([]*Instrument, error)

	// GetBySymbol returns one instrument
	GetBySymbol(ctx context.Context, symbol string) (*Instrument, error)
}

// DailyRepository persists classified daily metrics (fishbowl_daily)
type DailyRepository interface {
	// Upsert writes one row, update-on-conflict keyed (symbol, date)
	Upsert(ctx context.Context, m *DailyMetric) error

	// UpsertBatch writes many rows in one round trip
	UpsertBatch(ctx context.Context, metrics []*DailyMetric) (int, error)

	// UpdateMetrics overwrites the derived columns of an existing row,
	// leaving close_price untouched. Used by the history recompute pass.
	UpdateMetrics(ctx context.Context, m *DailyMetric) error

	// GetCloses returns the full stored (date, close) history for a symbol,
	// ascending by date
	GetCloses(ctx context.Context, symbol string) ([]PricePoint, error)

	// GetPriorWindow returns the raw persisted sparkline of the most recent
	// row for a symbol, or nil when there is none. Callers must treat the
	// bytes as untrusted: parsing is fallible and recoverable.
	GetPriorWindow(ctx context.Context, symbol string) ([]byte, error)

	// GetByDate returns all rows sharing one trade date
	GetByDate(ctx context.Context, date time.Time) ([]*DailyMetric, error)

	// GetLatestDate returns the most recent trade date present in the table
	GetLatestDate(ctx context.Context) (time.Time, error)

	// GetLatest returns the most recent row per symbol
	GetLatest(ctx context.Context, symbol string) (*DailyMetric, error)

	// GetHistory returns up to limit most recent rows for a symbol,
	// ascending by date
	GetHistory(ctx context.Context, symbol string, limit int) ([]*DailyMetric, error)

	// UpdateRanks writes trend_rank for the given symbols on one date
	UpdateRanks(ctx context.Context, date time.Time, ranks map[string]int) error
}

// RunLogRepository records batch run outcomes (etl_runs)
type RunLogRepository interface {
	Create(ctx context.Context, summary *RunSummary) error
	GetRecent(ctx context.Context, limit int) ([]*RunSummary, error)
}
