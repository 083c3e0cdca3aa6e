package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quantrail/nse-scanner/internal/db"
	"github.com/quantrail/nse-scanner/internal/domain"
)

// scanResultRepo implements ScanResultRepository using PostgreSQL.
type scanResultRepo struct {
	pool *db.Pool
}

// NewScanResultRepository creates a new PostgreSQL scan result repository.
func NewScanResultRepository(pool *db.Pool) ScanResultRepository {
	return &scanResultRepo{pool: pool}
}

const scanResultColumns = `
	id, run_id, symbol, scan_date, rule_name, rule_version,
	confidence, parameter_snapshot, scanner_version, metadata, created_at
`

func (r *scanResultRepo) CreateBatch(ctx context.Context, results []*domain.ScanResult) error {
	if len(results) == 0 {
		return nil
	}

	query := `
		INSERT INTO scan_results (
			id, run_id, symbol, scan_date, rule_name, rule_version,
			confidence, parameter_snapshot, scanner_version, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	return r.pool.WithTx(ctx, func(tx *db.Tx) error {
		for _, result := range results {
			_, err := tx.Exec(ctx, query,
				result.ID,
				result.RunID,
				result.Symbol,
				result.ScanDate,
				result.RuleName,
				result.RuleVersion,
				result.Confidence,
				result.ParameterSnapshot,
				result.ScannerVersion,
				nullIfEmptyString(result.Metadata),
			)
			if err != nil {
				return fmt.Errorf("failed to create scan result for %s: %w", result.Symbol, err)
			}
		}
		return nil
	})
}

func (r *scanResultRepo) ListByDate(ctx context.Context, scanDate time.Time) ([]*domain.ScanResult, error) {
	query := `SELECT ` + scanResultColumns + `
		FROM scan_results
		WHERE scan_date = $1
		ORDER BY confidence DESC, symbol
	`

	rows, err := r.pool.Query(ctx, query, scanDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan results: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *scanResultRepo) ListRecent(ctx context.Context, limit int) ([]*domain.ScanResult, error) {
	query := `SELECT ` + scanResultColumns + `
		FROM scan_results
		ORDER BY scan_date DESC, created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent scan results: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *scanResultRepo) collect(rows pgx.Rows) ([]*domain.ScanResult, error) {
	var results []*domain.ScanResult
	for rows.Next() {
		var (
			result   domain.ScanResult
			metadata *string
		)
		err := rows.Scan(
			&result.ID,
			&result.RunID,
			&result.Symbol,
			&result.ScanDate,
			&result.RuleName,
			&result.RuleVersion,
			&result.Confidence,
			&result.ParameterSnapshot,
			&result.ScannerVersion,
			&metadata,
			&result.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		result.ScanDate = result.ScanDate.UTC()
		if metadata != nil {
			result.Metadata = *metadata
		}
		results = append(results, &result)
	}
	return results, rows.Err()
}

// scannerRunRepo implements ScannerRunRepository using PostgreSQL.
type scannerRunRepo struct {
	pool *db.Pool
}

// NewScannerRunRepository creates a new PostgreSQL scanner run repository.
func NewScannerRunRepository(pool *db.Pool) ScannerRunRepository {
	return &scannerRunRepo{pool: pool}
}

func (r *scannerRunRepo) Create(ctx context.Context, run *domain.ScannerRun) error {
	query := `
		INSERT INTO scanner_runs (id, run_date, started_at, mode, stocks_scanned, signals_generated)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.RunDate,
		run.StartedAt,
		run.Mode.String(),
		run.StocksScanned,
		run.SignalsGenerated,
	)
	if err != nil {
		return fmt.Errorf("failed to create scanner run: %w", err)
	}
	return nil
}

func (r *scannerRunRepo) Finish(ctx context.Context, id uuid.UUID, finishedAt time.Time, stocksScanned, signalsGenerated int) error {
	query := `
		UPDATE scanner_runs
		SET finished_at = $2, stocks_scanned = $3, signals_generated = $4
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, finishedAt, stocksScanned, signalsGenerated)
	if err != nil {
		return fmt.Errorf("failed to finish scanner run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("scanner_run", id.String())
	}
	return nil
}
