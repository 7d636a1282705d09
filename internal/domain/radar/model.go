package radar

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TrendStatus represents the trend direction of an instrument
type TrendStatus string

const (
	StatusYes TrendStatus = "YES" // bullish: price holding above MA20
	StatusNo  TrendStatus = "NO"  // bearish: price holding below MA20
)

// IsValid checks if status is valid
func (s TrendStatus) IsValid() bool {
	return s == StatusYes || s == StatusNo
}

// SignalTag represents the tiered signal derived from deviation and streak
type SignalTag string

const (
	TagBreakout    SignalTag = "BREAKOUT"     // fresh YES streak (<=3 days)
	TagStrong      SignalTag = "STRONG"       // steady advance above MA20
	TagOverheat    SignalTag = "OVERHEAT"     // deviation > +15%
	TagSlump       SignalTag = "SLUMP"        // drifting below MA20
	TagExtremeBear SignalTag = "EXTREME_BEAR" // deviation < -15%
)

// IsBullish reports whether the tag belongs to the positive-deviation family
func (t SignalTag) IsBullish() bool {
	switch t {
	case TagBreakout, TagStrong, TagOverheat:
		return true
	default:
		return false
	}
}

// PricePoint is a single (date, close) observation of an instrument.
// Series are always ordered ascending by date.
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// SparklinePoint is one entry of the bounded rolling window persisted per row.
// Price and MA20 are rounded to 4 decimal places before persisting so the
// deviation sign a renderer recomputes from the window cannot flip against
// the stored deviation on low-priced instruments.
type SparklinePoint struct {
	Date  string          `json:"date"` // ISO date, YYYY-MM-DD
	Price decimal.Decimal `json:"price"`
	MA20  decimal.Decimal `json:"ma20"`
}

// DailyMetric is one classified day for one instrument.
// Maps to the fishbowl_daily table, keyed on (symbol, date).
type DailyMetric struct {
	Symbol string    `json:"symbol" db:"symbol"`
	Date   time.Time `json:"date" db:"date"`

	ClosePrice   decimal.Decimal `json:"close_price" db:"close_price"`
	MA20Price    decimal.Decimal `json:"ma20_price" db:"ma20_price"`
	Status       TrendStatus     `json:"status" db:"status"`
	DeviationPct decimal.Decimal `json:"deviation_pct" db:"deviation_pct"`
	DurationDays int             `json:"duration_days" db:"duration_days"`
	SignalTag    SignalTag       `json:"signal_tag" db:"signal_tag"`

	// Absent on the first point of a series.
	ChangePct *decimal.Decimal `json:"change_pct,omitempty" db:"change_pct"`
	// Absent when the current streak started before available history.
	TrendPct *decimal.Decimal `json:"trend_pct,omitempty" db:"trend_pct"`
	// Assigned by the ranking phase, absent until then.
	TrendRank *int `json:"trend_rank,omitempty" db:"trend_rank"`

	Sparkline []SparklinePoint `json:"sparkline_data,omitempty" db:"sparkline_json"`
}

// Instrument is one configured asset from monitor_config
type Instrument struct {
	Symbol      string    `json:"symbol" db:"symbol"`
	Name        string    `json:"name" db:"name"`
	Category    string    `json:"category" db:"category"` // broad, industry, metal, global
	Active      bool      `json:"is_active" db:"is_active"`
	SystemBench bool      `json:"is_system_bench" db:"is_system_bench"`
	SortRank    *int      `json:"sort_rank,omitempty" db:"sort_rank"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// RawSeries is a provider-native daily series as returned by the market-data
// API: a column-name header plus row tuples. Column naming and date formats
// differ per endpoint; the normalizer resolves that.
type RawSeries struct {
	Fields []string        `json:"fields"`
	Items  [][]interface{} `json:"items"`
}

// FailureKind classifies why one instrument was skipped in a run
type FailureKind string

const (
	FailureFetch        FailureKind = "fetch_error"
	FailureEmptySeries  FailureKind = "empty_series"
	FailureInvalidPrice FailureKind = "invalid_price"
	FailurePersist      FailureKind = "persist_error"
)

// InstrumentFailure records one skipped instrument of a batch run
type InstrumentFailure struct {
	Symbol string      `json:"symbol"`
	Kind   FailureKind `json:"kind"`
	Detail string      `json:"detail,omitempty"`
}

// RunSummary is the outcome of one daily batch run.
// Maps to the etl_runs table.
type RunSummary struct {
	RunID      uuid.UUID           `json:"run_id" db:"run_id"`
	TradeDate  *time.Time          `json:"trade_date,omitempty" db:"trade_date"`
	Processed  int                 `json:"processed" db:"processed"`
	Succeeded  int                 `json:"succeeded" db:"succeeded"`
	Failed     int                 `json:"failed" db:"failed"`
	Failures   []InstrumentFailure `json:"failures,omitempty" db:"failures"`
	StartedAt  time.Time           `json:"started_at" db:"started_at"`
	FinishedAt time.Time           `json:"finished_at" db:"finished_at"`
}

// DurationMs returns the wall-clock duration of the run in milliseconds
func (s *RunSummary) DurationMs() int64 {
	return s.FinishedAt.Sub(s.StartedAt).Milliseconds()
}
