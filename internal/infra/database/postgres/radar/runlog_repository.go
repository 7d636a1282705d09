package radar

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/domain/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/infra/database/postgres"
)

// RunLogRepository PostgreSQL batch run log (etl_runs)
type RunLogRepository struct {
	pool *postgres.Pool
}

// NewRunLogRepository creates the repository
func NewRunLogRepository(pool *postgres.Pool) *RunLogRepository {
	return &RunLogRepository{pool: pool}
}

// Create records one finished batch run
func (r *RunLogRepository) Create(ctx context.Context, summary *radar.RunSummary) error {
	failures, err := json.Marshal(summary.Failures)
	if err != nil {
		return fmt.Errorf("marshal run failures: %w", err)
	}

	query := `
		INSERT INTO etl_runs
			(run_id, trade_date, processed, succeeded, failed, failures, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.pool.Exec(ctx, query,
		summary.RunID, summary.TradeDate,
		summary.Processed, summary.Succeeded, summary.Failed,
		failures, summary.StartedAt, summary.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}

	return nil
}

// GetRecent returns the latest runs, newest first
func (r *RunLogRepository) GetRecent(ctx context.Context, limit int) ([]*radar.RunSummary, error) {
	query := `
		SELECT run_id, trade_date, processed, succeeded, failed, failures, started_at, finished_at
		FROM etl_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query run logs: %w", err)
	}
	defer rows.Close()

	var summaries []*radar.RunSummary
	for rows.Next() {
		var s radar.RunSummary
		var failures []byte
		if err := rows.Scan(
			&s.RunID, &s.TradeDate,
			&s.Processed, &s.Succeeded, &s.Failed,
			&failures, &s.StartedAt, &s.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		if len(failures) > 0 {
			_ = json.Unmarshal(failures, &s.Failures)
		}
		summaries = append(summaries, &s)
	}

	return summaries, rows.Err()
}
