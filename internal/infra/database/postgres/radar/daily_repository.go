package radar

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/domain/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/infra/database/postgres"
)

// DailyRepository PostgreSQL daily metric store (fishbowl_daily)
type DailyRepository struct {
	pool *postgres.Pool
}

// NewDailyRepository creates the repository
func NewDailyRepository(pool *postgres.Pool) *DailyRepository {
	return &DailyRepository{pool: pool}
}

const dailyColumns = `
	symbol, date, close_price, ma20_price, status, deviation_pct,
	duration_days, signal_tag, change_pct, trend_pct, trend_rank, sparkline_json
`

const upsertDailyQuery = `
	INSERT INTO fishbowl_daily
		(symbol, date, close_price, ma20_price, status, deviation_pct,
		 duration_days, signal_tag, change_pct, trend_pct, sparkline_json)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (symbol, date) DO UPDATE SET
		close_price = EXCLUDED.close_price,
		ma20_price = EXCLUDED.ma20_price,
		status = EXCLUDED.status,
		deviation_pct = EXCLUDED.deviation_pct,
		duration_days = EXCLUDED.duration_days,
		signal_tag = EXCLUDED.signal_tag,
		change_pct = EXCLUDED.change_pct,
		trend_pct = EXCLUDED.trend_pct,
		sparkline_json = EXCLUDED.sparkline_json
`

// Upsert writes one classified day, update-on-conflict keyed (symbol, date)
func (r *DailyRepository) Upsert(ctx context.Context, m *radar.DailyMetric) error {
	sparkline, err := marshalSparkline(m.Sparkline)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, upsertDailyQuery,
		m.Symbol, m.Date,
		m.ClosePrice, m.MA20Price, m.Status, m.DeviationPct,
		m.DurationDays, m.SignalTag, m.ChangePct, m.TrendPct,
		sparkline,
	)
	if err != nil {
		return fmt.Errorf("upsert daily metric: %w", err)
	}

	return nil
}

// UpsertBatch writes many classified days in one round trip
func (r *DailyRepository) UpsertBatch(ctx context.Context, metrics []*radar.DailyMetric) (int, error) {
	if len(metrics) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, m := range metrics {
		sparkline, err := marshalSparkline(m.Sparkline)
		if err != nil {
			return 0, err
		}
		batch.Queue(upsertDailyQuery,
			m.Symbol, m.Date,
			m.ClosePrice, m.MA20Price, m.Status, m.DeviationPct,
			m.DurationDays, m.SignalTag, m.ChangePct, m.TrendPct,
			sparkline,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	count := 0
	for range metrics {
		if _, err := br.Exec(); err != nil {
			return count, fmt.Errorf("batch upsert daily metric: %w", err)
		}
		count++
	}

	return count, nil
}

// UpdateMetrics overwrites derived columns of an existing row.
// close_price stays untouched; the recompute pass never rewrites raw prices.
func (r *DailyRepository) UpdateMetrics(ctx context.Context, m *radar.DailyMetric) error {
	query := `
		UPDATE fishbowl_daily SET
			ma20_price = $3,
			status = $4,
			deviation_pct = $5,
			duration_days = $6,
			signal_tag = $7,
			change_pct = $8,
			trend_pct = $9
		WHERE symbol = $1 AND date = $2
	`

	tag, err := r.pool.Exec(ctx, query,
		m.Symbol, m.Date,
		m.MA20Price, m.Status, m.DeviationPct,
		m.DurationDays, m.SignalTag, m.ChangePct, m.TrendPct,
	)
	if err != nil {
		return fmt.Errorf("update daily metric: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return radar.ErrMetricNotFound
	}

	return nil
}

// GetCloses returns the full stored close history for a symbol, ascending
func (r *DailyRepository) GetCloses(ctx context.Context, symbol string) ([]radar.PricePoint, error) {
	query := `
		SELECT date, close_price
		FROM fishbowl_daily
		WHERE symbol = $1
		ORDER BY date ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query closes: %w", err)
	}
	defer rows.Close()

	var points []radar.PricePoint
	for rows.Next() {
		var p radar.PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("scan close: %w", err)
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

// GetPriorWindow returns the raw persisted sparkline of the newest row for a
// symbol. The bytes go back unparsed so the caller can treat corruption as
// recoverable instead of failing the query.
func (r *DailyRepository) GetPriorWindow(ctx context.Context, symbol string) ([]byte, error) {
	query := `
		SELECT sparkline_json
		FROM fishbowl_daily
		WHERE symbol = $1
		ORDER BY date DESC
		LIMIT 1
	`

	var raw []byte
	err := r.pool.QueryRow(ctx, query, symbol).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get prior window: %w", err)
	}

	return raw, nil
}

// GetByDate returns all rows sharing one trade date
func (r *DailyRepository) GetByDate(ctx context.Context, date time.Time) ([]*radar.DailyMetric, error) {
	query := `
		SELECT ` + dailyColumns + `
		FROM fishbowl_daily
		WHERE date = $1
		ORDER BY symbol ASC
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("query metrics by date: %w", err)
	}
	defer rows.Close()

	return scanMetrics(rows)
}

// GetLatestDate returns the most recent trade date present in the table
func (r *DailyRepository) GetLatestDate(ctx context.Context) (time.Time, error) {
	query := `SELECT MAX(date) FROM fishbowl_daily`

	var date *time.Time
	if err := r.pool.QueryRow(ctx, query).Scan(&date); err != nil {
		return time.Time{}, fmt.Errorf("get latest date: %w", err)
	}
	if date == nil {
		return time.Time{}, radar.ErrMetricNotFound
	}

	return *date, nil
}

// GetLatest returns the most recent row for a symbol
func (r *DailyRepository) GetLatest(ctx context.Context, symbol string) (*radar.DailyMetric, error) {
	query := `
		SELECT ` + dailyColumns + `
		FROM fishbowl_daily
		WHERE symbol = $1
		ORDER BY date DESC
		LIMIT 1
	`

	rows, err := r.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get latest metric: %w", err)
	}
	defer rows.Close()

	metrics, err := scanMetrics(rows)
	if err != nil {
		return nil, err
	}
	if len(metrics) == 0 {
		return nil, radar.ErrMetricNotFound
	}

	return metrics[0], nil
}

// GetHistory returns up to limit most recent rows for a symbol, ascending
func (r *DailyRepository) GetHistory(ctx context.Context, symbol string, limit int) ([]*radar.DailyMetric, error) {
	query := `
		SELECT ` + dailyColumns + `
		FROM (
			SELECT ` + dailyColumns + `
			FROM fishbowl_daily
			WHERE symbol = $1
			ORDER BY date DESC
			LIMIT $2
		) recent
		ORDER BY date ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query metric history: %w", err)
	}
	defer rows.Close()

	return scanMetrics(rows)
}

// UpdateRanks writes trend_rank for the given symbols on one trade date
func (r *DailyRepository) UpdateRanks(ctx context.Context, date time.Time, ranks map[string]int) error {
	if len(ranks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		UPDATE fishbowl_daily SET trend_rank = $3
		WHERE symbol = $1 AND date = $2
	`
	for symbol, rank := range ranks {
		batch.Queue(query, symbol, date, rank)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range ranks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("update trend rank: %w", err)
		}
	}

	return nil
}

// scanMetrics scans rows sharing the dailyColumns projection
func scanMetrics(rows pgx.Rows) ([]*radar.DailyMetric, error) {
	var metrics []*radar.DailyMetric
	for rows.Next() {
		var m radar.DailyMetric
		var sparkline []byte
		if err := rows.Scan(
			&m.Symbol, &m.Date,
			&m.ClosePrice, &m.MA20Price, &m.Status, &m.DeviationPct,
			&m.DurationDays, &m.SignalTag, &m.ChangePct, &m.TrendPct,
			&m.TrendRank, &sparkline,
		); err != nil {
			return nil, fmt.Errorf("scan daily metric: %w", err)
		}
		if len(sparkline) > 0 {
			// corrupt blobs surface as an empty window, not a failed read
			_ = json.Unmarshal(sparkline, &m.Sparkline)
		}
		metrics = append(metrics, &m)
	}

	return metrics, rows.Err()
}

func marshalSparkline(points []radar.SparklinePoint) ([]byte, error) {
	if points == nil {
		points = []radar.SparklinePoint{}
	}
	raw, err := json.Marshal(points)
	if err != nil {
		return nil, fmt.Errorf("marshal sparkline: %w", err)
	}
	return raw, nil
}
