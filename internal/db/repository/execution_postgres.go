package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quantrail/nse-scanner/internal/db"
	"github.com/quantrail/nse-scanner/internal/domain"
)

// executionStateRepo implements ExecutionStateRepository using PostgreSQL.
type executionStateRepo struct {
	pool *db.Pool
}

// NewExecutionStateRepository creates a new PostgreSQL execution state repository.
func NewExecutionStateRepository(pool *db.Pool) ExecutionStateRepository {
	return &executionStateRepo{pool: pool}
}

const executionStateColumns = `
	id, trading_date, ingestion_status, scan_status, data_source_status,
	execution_mode, last_ingestion_time, last_scan_time,
	stocks_ingested, signals_generated, error_message
`

func (r *executionStateRepo) GetOrCreate(ctx context.Context, tradingDate time.Time) (*domain.ExecutionState, error) {
	query := `
		INSERT INTO scan_execution_state (trading_date, ingestion_status, scan_status, data_source_status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (trading_date) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		tradingDate,
		domain.ExecutionPending.String(),
		domain.ExecutionPending.String(),
		domain.SourceUnknown.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize execution state: %w", err)
	}
	return r.GetByDate(ctx, tradingDate)
}

func (r *executionStateRepo) GetByDate(ctx context.Context, tradingDate time.Time) (*domain.ExecutionState, error) {
	query := `SELECT ` + executionStateColumns + `
		FROM scan_execution_state
		WHERE trading_date = $1
	`

	state, err := r.scanState(r.pool.QueryRow(ctx, query, tradingDate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("scan_execution_state", tradingDate.Format("2006-01-02"))
		}
		return nil, fmt.Errorf("failed to get execution state: %w", err)
	}
	return state, nil
}

func (r *executionStateRepo) Save(ctx context.Context, state *domain.ExecutionState) error {
	query := `
		UPDATE scan_execution_state SET
			ingestion_status = $2,
			scan_status = $3,
			data_source_status = $4,
			execution_mode = $5,
			last_ingestion_time = $6,
			last_scan_time = $7,
			stocks_ingested = $8,
			signals_generated = $9,
			error_message = $10
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		state.ID,
		state.IngestionStatus.String(),
		state.ScanStatus.String(),
		state.DataSourceStatus.String(),
		nullIfEmptyString(state.ExecutionMode.String()),
		state.LastIngestionTime,
		state.LastScanTime,
		state.StocksIngested,
		state.SignalsGenerated,
		nullIfEmptyString(state.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to save execution state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("scan_execution_state", state.TradingDate.Format("2006-01-02"))
	}
	return nil
}

func (r *executionStateRepo) ListRecent(ctx context.Context, limit int) ([]*domain.ExecutionState, error) {
	query := `SELECT ` + executionStateColumns + `
		FROM scan_execution_state
		ORDER BY trading_date DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution states: %w", err)
	}
	defer rows.Close()

	var states []*domain.ExecutionState
	for rows.Next() {
		state, err := r.scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution state row: %w", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

func (r *executionStateRepo) scanState(row pgx.Row) (*domain.ExecutionState, error) {
	var (
		state          domain.ExecutionState
		ingestion      string
		scan           string
		source         string
		mode           *string
		errorMessage   *string
	)

	err := row.Scan(
		&state.ID,
		&state.TradingDate,
		&ingestion,
		&scan,
		&source,
		&mode,
		&state.LastIngestionTime,
		&state.LastScanTime,
		&state.StocksIngested,
		&state.SignalsGenerated,
		&errorMessage,
	)
	if err != nil {
		return nil, err
	}

	state.TradingDate = state.TradingDate.UTC()
	state.IngestionStatus = domain.ExecutionStatus(ingestion)
	state.ScanStatus = domain.ExecutionStatus(scan)
	state.DataSourceStatus = domain.DataSourceStatus(source)
	if mode != nil {
		state.ExecutionMode = domain.ExecutionMode(*mode)
	}
	if errorMessage != nil {
		state.ErrorMessage = *errorMessage
	}
	return &state, nil
}

// nullIfEmptyString maps "" to SQL NULL.
func nullIfEmptyString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
