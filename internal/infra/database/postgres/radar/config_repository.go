package radar

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wuwenjia6498/fishbowl-monitor/internal/domain/radar"
	"github.com/wuwenjia6498/fishbowl-monitor/internal/infra/database/postgres"
)

// ConfigRepository PostgreSQL instrument universe store (monitor_config)
type ConfigRepository struct {
	pool *postgres.Pool
}

// NewConfigRepository creates the repository
func NewConfigRepository(pool *postgres.Pool) *ConfigRepository {
	return &ConfigRepository{pool: pool}
}

// GetActive returns monitored instruments. System benchmarks are always
// included even when deactivated, they anchor the relative views.
func (r *ConfigRepository) GetActive(ctx context.Context) ([]*radar.Instrument, error) {
	query := `
		SELECT symbol, name, category, is_active, is_system_bench, sort_rank, created_at
		FROM monitor_config
		WHERE is_active = TRUE OR is_system_bench = TRUE
		ORDER BY sort_rank ASC NULLS LAST, symbol ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active instruments: %w", err)
	}
	defer rows.Close()

	var instruments []*radar.Instrument
	for rows.Next() {
		var inst radar.Instrument
		if err := rows.Scan(
			&inst.Symbol, &inst.Name, &inst.Category,
			&inst.Active, &inst.SystemBench, &inst.SortRank, &inst.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		instruments = append(instruments, &inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(instruments) == 0 {
		return nil, radar.ErrNoInstruments
	}

	return instruments, nil
}

// GetBySymbol returns one configured instrument
func (r *ConfigRepository) GetBySymbol(ctx context.Context, symbol string) (*radar.Instrument, error) {
	query := `
		SELECT symbol, name, category, is_active, is_system_bench, sort_rank, created_at
		FROM monitor_config
		WHERE symbol = $1
	`

	var inst radar.Instrument
	err := r.pool.QueryRow(ctx, query, symbol).Scan(
		&inst.Symbol, &inst.Name, &inst.Category,
		&inst.Active, &inst.SystemBench, &inst.SortRank, &inst.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, radar.ErrInstrumentNotFound
		}
		return nil, fmt.Errorf("get instrument: %w", err)
	}

	return &inst, nil
}
