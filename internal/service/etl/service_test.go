package etl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/domain/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/strategy/trend"
)

// ---------------------------------------------------------------------------
// in-memory test doubles

type fakeFetcher struct {
	series map[string]*radar.RawSeries
	errs   map[string]error
}

func (f *fakeFetcher) FetchSeries(_ context.Context, symbol, _ string) (*radar.RawSeries, error) {
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	if s, ok := f.series[symbol]; ok {
		return s, nil
	}
	return &radar.RawSeries{}, nil
}

type fakeConfigRepo struct {
	instruments []*radar.Instrument
}

func (f *fakeConfigRepo) GetActive(context.Context) ([]*radar.Instrument, error) {
	if len(f.instruments) == 0 {
		return nil, radar.ErrNoInstruments
	}
	return f.instruments, nil
}

func (f *fakeConfigRepo) GetBySymbol(_ context.Context, symbol string) (*radar.Instrument, error) {
	for _, inst := range f.instruments {
		if inst.Symbol == symbol {
			return inst, nil
		}
	}
	return nil, radar.ErrInstrumentNotFound
}

type metricKey struct {
	symbol string
	date   string
}

type fakeDailyRepo struct {
	rows       map[metricKey]*radar.DailyMetric
	priors     map[string][]byte
	upsertErrs map[string]error
}

func newFakeDailyRepo() *fakeDailyRepo {
	return &fakeDailyRepo{
		rows:   make(map[metricKey]*radar.DailyMetric),
		priors: make(map[string][]byte),
	}
}

func (f *fakeDailyRepo) key(m *radar.DailyMetric) metricKey {
	return metricKey{symbol: m.Symbol, date: m.Date.Format("2006-01-02")}
}

func (f *fakeDailyRepo) Upsert(_ context.Context, m *radar.DailyMetric) error {
	if err, ok := f.upsertErrs[m.Symbol]; ok {
		return err
	}
	cp := *m
	f.rows[f.key(m)] = &cp
	return nil
}

func (f *fakeDailyRepo) UpsertBatch(ctx context.Context, metrics []*radar.DailyMetric) (int, error) {
	for i, m := range metrics {
		if err := f.Upsert(ctx, m); err != nil {
			return i, err
		}
	}
	return len(metrics), nil
}

func (f *fakeDailyRepo) UpdateMetrics(_ context.Context, m *radar.DailyMetric) error {
	existing, ok := f.rows[f.key(m)]
	if !ok {
		return radar.ErrMetricNotFound
	}
	cp := *m
	cp.ClosePrice = existing.ClosePrice
	cp.Sparkline = existing.Sparkline
	f.rows[f.key(m)] = &cp
	return nil
}

func (f *fakeDailyRepo) GetCloses(_ context.Context, symbol string) ([]radar.PricePoint, error) {
	var points []radar.PricePoint
	for _, m := range f.rows {
		if m.Symbol == symbol {
			points = append(points, radar.PricePoint{Date: m.Date, Close: m.ClosePrice})
		}
	}
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			if points[j].Date.Before(points[i].Date) {
				points[i], points[j] = points[j], points[i]
			}
		}
	}
	return points, nil
}

func (f *fakeDailyRepo) GetPriorWindow(_ context.Context, symbol string) ([]byte, error) {
	return f.priors[symbol], nil
}

func (f *fakeDailyRepo) GetByDate(_ context.Context, date time.Time) ([]*radar.DailyMetric, error) {
	var out []*radar.DailyMetric
	for _, m := range f.rows {
		if m.Date.Equal(date) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeDailyRepo) GetLatestDate(context.Context) (time.Time, error) {
	var latest time.Time
	for _, m := range f.rows {
		if m.Date.After(latest) {
			latest = m.Date
		}
	}
	if latest.IsZero() {
		return time.Time{}, radar.ErrMetricNotFound
	}
	return latest, nil
}

func (f *fakeDailyRepo) GetLatest(_ context.Context, symbol string) (*radar.DailyMetric, error) {
	var latest *radar.DailyMetric
	for _, m := range f.rows {
		if m.Symbol != symbol {
			continue
		}
		if latest == nil || m.Date.After(latest.Date) {
			latest = m
		}
	}
	if latest == nil {
		return nil, radar.ErrMetricNotFound
	}
	return latest, nil
}

func (f *fakeDailyRepo) GetHistory(ctx context.Context, symbol string, limit int) ([]*radar.DailyMetric, error) {
	var out []*radar.DailyMetric
	for _, m := range f.rows {
		if m.Symbol == symbol {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeDailyRepo) UpdateRanks(_ context.Context, date time.Time, ranks map[string]int) error {
	for symbol, rank := range ranks {
		key := metricKey{symbol: symbol, date: date.Format("2006-01-02")}
		if m, ok := f.rows[key]; ok {
			r := rank
			m.TrendRank = &r
		}
	}
	return nil
}

type fakeRunLogRepo struct {
	created []*radar.RunSummary
}

func (f *fakeRunLogRepo) Create(_ context.Context, s *radar.RunSummary) error {
	f.created = append(f.created, s)
	return nil
}

func (f *fakeRunLogRepo) GetRecent(context.Context, int) ([]*radar.RunSummary, error) {
	return f.created, nil
}

// ---------------------------------------------------------------------------
// helpers

// rawDaily builds a provider-native series in descending date order,
// the way the upstream API actually returns it.
func rawDaily(start time.Time, closes ...float64) *radar.RawSeries {
	items := make([][]interface{}, 0, len(closes))
	for i := len(closes) - 1; i >= 0; i-- {
		items = append(items, []interface{}{
			start.AddDate(0, 0, i).Format("20060102"),
			closes[i],
		})
	}
	return &radar.RawSeries{
		Fields: []string{"trade_date", "close"},
		Items:  items,
	}
}

func flatCloses(n int, value float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

var testStart = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func newTestService(fetcher radar.SeriesFetcher, cfgRepo radar.ConfigRepository, daily *fakeDailyRepo, runs *fakeRunLogRepo) *Service {
	return NewService(fetcher, cfgRepo, daily, runs, trend.WindowSize)
}

func instrument(symbol string) *radar.Instrument {
	return &radar.Instrument{Symbol: symbol, Name: symbol, Category: "broad", Active: true}
}

// ---------------------------------------------------------------------------

func TestRunDailySuccess(t *testing.T) {
	closesA := make([]float64, 30)
	closesB := make([]float64, 30)
	for i := range closesA {
		closesA[i] = 100 + float64(i) // rising, ends well above MA20
		closesB[i] = 100 - float64(i)*0.5
	}

	fetcher := &fakeFetcher{series: map[string]*radar.RawSeries{
		"AAA": rawDaily(testStart, closesA...),
		"BBB": rawDaily(testStart, closesB...),
	}}
	daily := newFakeDailyRepo()
	runs := &fakeRunLogRepo{}
	svc := newTestService(fetcher, &fakeConfigRepo{instruments: []*radar.Instrument{instrument("AAA"), instrument("BBB")}}, daily, runs)

	summary, err := svc.RunDaily(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.NotNil(t, summary.TradeDate)

	// one row per instrument for the latest trade date
	date := testStart.AddDate(0, 0, 29)
	rows, _ := daily.GetByDate(context.Background(), date)
	assert.Len(t, rows, 2)

	// both deviations are non-nil so both got dense ranks
	for _, row := range rows {
		assert.NotNil(t, row.TrendRank)
		assert.NotEmpty(t, row.Sparkline)
	}

	// run was logged
	assert.Len(t, runs.created, 1)
	assert.Equal(t, summary.RunID, runs.created[0].RunID)
}

func TestRunDailyPartialFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		series: map[string]*radar.RawSeries{
			"AAA": rawDaily(testStart, flatCloses(25, 100)...),
		},
		errs: map[string]error{
			"BBB": errors.New("connection refused"),
		},
	}
	daily := newFakeDailyRepo()
	svc := newTestService(fetcher, &fakeConfigRepo{instruments: []*radar.Instrument{instrument("AAA"), instrument("BBB"), instrument("CCC")}}, daily, &fakeRunLogRepo{})

	// CCC gets an empty series from the fake
	summary, err := svc.RunDaily(context.Background())
	assert.NoError(t, err, "partial failure must not fail the run")
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)

	kinds := map[string]radar.FailureKind{}
	for _, f := range summary.Failures {
		kinds[f.Symbol] = f.Kind
	}
	assert.Equal(t, radar.FailureFetch, kinds["BBB"])
	assert.Equal(t, radar.FailureEmptySeries, kinds["CCC"])
}

func TestRunDailyExhausted(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{
		"AAA": errors.New("down"),
		"BBB": errors.New("down"),
	}}
	runs := &fakeRunLogRepo{}
	svc := newTestService(fetcher, &fakeConfigRepo{instruments: []*radar.Instrument{instrument("AAA"), instrument("BBB")}}, newFakeDailyRepo(), runs)

	summary, err := svc.RunDaily(context.Background())
	assert.ErrorIs(t, err, radar.ErrBatchExhausted)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)

	// the exhausted run is still recorded
	assert.Len(t, runs.created, 1)
}

func TestRunDailyPersistFailureKind(t *testing.T) {
	fetcher := &fakeFetcher{series: map[string]*radar.RawSeries{
		"AAA": rawDaily(testStart, flatCloses(25, 100)...),
	}}
	daily := newFakeDailyRepo()
	daily.upsertErrs = map[string]error{"AAA": errors.New("disk full")}
	svc := newTestService(fetcher, &fakeConfigRepo{instruments: []*radar.Instrument{instrument("AAA")}}, daily, &fakeRunLogRepo{})

	summary, err := svc.RunDaily(context.Background())
	assert.ErrorIs(t, err, radar.ErrBatchExhausted)
	assert.Equal(t, radar.FailurePersist, summary.Failures[0].Kind)
}

func TestRunDailyInvalidPriceKind(t *testing.T) {
	closes := flatCloses(25, 100)
	closes[10] = -1
	fetcher := &fakeFetcher{series: map[string]*radar.RawSeries{
		"AAA": rawDaily(testStart, closes...),
	}}
	svc := newTestService(fetcher, &fakeConfigRepo{instruments: []*radar.Instrument{instrument("AAA")}}, newFakeDailyRepo(), &fakeRunLogRepo{})

	summary, _ := svc.RunDaily(context.Background())
	assert.Equal(t, radar.FailureInvalidPrice, summary.Failures[0].Kind)
}

func TestRunDailyIncrementalWindow(t *testing.T) {
	fetcher := &fakeFetcher{series: map[string]*radar.RawSeries{
		"AAA": rawDaily(testStart, flatCloses(30, 100)...),
	}}
	daily := newFakeDailyRepo()

	// a healthy prior window: 30 points ending the day before the new close
	prior := make([]radar.SparklinePoint, 30)
	for i := range prior {
		prior[i] = radar.SparklinePoint{
			Date:  testStart.AddDate(0, 0, i-1).Format("2006-01-02"),
			Price: decimal.NewFromInt(100),
			MA20:  decimal.NewFromInt(100),
		}
	}
	raw, _ := json.Marshal(prior)
	daily.priors["AAA"] = raw

	svc := newTestService(fetcher, &fakeConfigRepo{instruments: []*radar.Instrument{instrument("AAA")}}, daily, &fakeRunLogRepo{})

	_, err := svc.RunDaily(context.Background())
	assert.NoError(t, err)

	row, err := daily.GetLatest(context.Background(), "AAA")
	assert.NoError(t, err)
	// incremental path: prior 30 points plus today's point
	assert.Len(t, row.Sparkline, 31)
	assert.Equal(t, testStart.AddDate(0, 0, 29).Format("2006-01-02"), row.Sparkline[30].Date)
}

func TestRunDailyRebuildsThinWindow(t *testing.T) {
	fetcher := &fakeFetcher{series: map[string]*radar.RawSeries{
		"AAA": rawDaily(testStart, flatCloses(30, 100)...),
	}}
	daily := newFakeDailyRepo()

	// only 5 stored points, below the viability floor
	prior := []radar.SparklinePoint{}
	for i := 0; i < 5; i++ {
		prior = append(prior, radar.SparklinePoint{
			Date:  testStart.AddDate(0, 0, i).Format("2006-01-02"),
			Price: decimal.NewFromInt(100),
			MA20:  decimal.NewFromInt(100),
		})
	}
	raw, _ := json.Marshal(prior)
	daily.priors["AAA"] = raw

	svc := newTestService(fetcher, &fakeConfigRepo{instruments: []*radar.Instrument{instrument("AAA")}}, daily, &fakeRunLogRepo{})

	_, err := svc.RunDaily(context.Background())
	assert.NoError(t, err)

	row, _ := daily.GetLatest(context.Background(), "AAA")
	// rebuilt from the full classified history, not appended to the stub
	assert.Len(t, row.Sparkline, 30)
}

func TestRunDailyCorruptWindowRebuilds(t *testing.T) {
	fetcher := &fakeFetcher{series: map[string]*radar.RawSeries{
		"AAA": rawDaily(testStart, flatCloses(30, 100)...),
	}}
	daily := newFakeDailyRepo()
	daily.priors["AAA"] = []byte(`{"oops": not json`)

	svc := newTestService(fetcher, &fakeConfigRepo{instruments: []*radar.Instrument{instrument("AAA")}}, daily, &fakeRunLogRepo{})

	summary, err := svc.RunDaily(context.Background())
	assert.NoError(t, err, "corrupt window state must not fail the instrument")
	assert.Equal(t, 1, summary.Succeeded)

	row, _ := daily.GetLatest(context.Background(), "AAA")
	assert.Len(t, row.Sparkline, 30)
}

func TestRecalculateHistory(t *testing.T) {
	daily := newFakeDailyRepo()

	// seed stored rows with deliberately wrong derived columns
	for i := 0; i < 25; i++ {
		date := testStart.AddDate(0, 0, i)
		daily.rows[metricKey{symbol: "AAA", date: date.Format("2006-01-02")}] = &radar.DailyMetric{
			Symbol:       "AAA",
			Date:         date,
			ClosePrice:   decimal.NewFromFloat(100 + float64(i)),
			Status:       radar.StatusNo, // wrong on purpose
			DurationDays: 999,
		}
	}

	svc := newTestService(&fakeFetcher{}, &fakeConfigRepo{instruments: []*radar.Instrument{instrument("AAA")}}, daily, &fakeRunLogRepo{})

	result, err := svc.RecalculateHistory(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Symbols)
	assert.Equal(t, 25, result.RowsUpdated)
	assert.Equal(t, 0, result.Skipped)

	// a strictly rising series holds YES throughout after the replay
	for _, m := range daily.rows {
		assert.Equal(t, radar.StatusYes, m.Status, "date %s", m.Date)
		assert.NotEqual(t, 999, m.DurationDays)
	}
}

func TestRecalculateHistoryIdempotent(t *testing.T) {
	daily := newFakeDailyRepo()
	for i := 0; i < 25; i++ {
		date := testStart.AddDate(0, 0, i)
		daily.rows[metricKey{symbol: "AAA", date: date.Format("2006-01-02")}] = &radar.DailyMetric{
			Symbol:     "AAA",
			Date:       date,
			ClosePrice: decimal.NewFromFloat(100 + float64(i)),
		}
	}
	svc := newTestService(&fakeFetcher{}, &fakeConfigRepo{instruments: []*radar.Instrument{instrument("AAA")}}, daily, &fakeRunLogRepo{})

	_, err := svc.RecalculateHistory(context.Background())
	assert.NoError(t, err)

	snapshot := func() string {
		out := ""
		for i := 0; i < 25; i++ {
			date := testStart.AddDate(0, 0, i)
			m := daily.rows[metricKey{symbol: "AAA", date: date.Format("2006-01-02")}]
			out += fmt.Sprintf("%s|%s|%s|%d|%s\n",
				m.Date.Format("2006-01-02"), m.Status, m.DeviationPct.String(), m.DurationDays, m.SignalTag)
		}
		return out
	}

	first := snapshot()
	_, err = svc.RecalculateHistory(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, first, snapshot())
}

func TestRankLatest(t *testing.T) {
	daily := newFakeDailyRepo()
	date := testStart

	for symbol, dev := range map[string]string{"AAA": "0.20", "BBB": "-0.05"} {
		d, _ := decimal.NewFromString(dev)
		daily.rows[metricKey{symbol: symbol, date: date.Format("2006-01-02")}] = &radar.DailyMetric{
			Symbol:       symbol,
			Date:         date,
			ClosePrice:   decimal.NewFromInt(100),
			DeviationPct: d,
		}
	}

	svc := newTestService(&fakeFetcher{}, &fakeConfigRepo{instruments: []*radar.Instrument{instrument("AAA")}}, daily, &fakeRunLogRepo{})

	assert.NoError(t, svc.RankLatest(context.Background()))

	a := daily.rows[metricKey{symbol: "AAA", date: date.Format("2006-01-02")}]
	b := daily.rows[metricKey{symbol: "BBB", date: date.Format("2006-01-02")}]
	assert.Equal(t, 1, *a.TrendRank)
	assert.Equal(t, 2, *b.TrendRank)
}

func TestRecalculateHistorySkipsEmptySymbol(t *testing.T) {
	daily := newFakeDailyRepo()
	svc := newTestService(&fakeFetcher{}, &fakeConfigRepo{instruments: []*radar.Instrument{instrument("AAA")}}, daily, &fakeRunLogRepo{})

	result, err := svc.RecalculateHistory(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.RowsUpdated)
}
