package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/quantrail/nse-scanner/internal/db"
	"github.com/quantrail/nse-scanner/internal/domain"
)

// emergencyClosureRepo implements EmergencyClosureRepository using PostgreSQL.
type emergencyClosureRepo struct {
	pool *db.Pool
}

// NewEmergencyClosureRepository creates a new PostgreSQL emergency closure repository.
func NewEmergencyClosureRepository(pool *db.Pool) EmergencyClosureRepository {
	return &emergencyClosureRepo{pool: pool}
}

func (r *emergencyClosureRepo) ExistsByDate(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM emergency_closure WHERE date = $1)`
	if err := r.pool.QueryRow(ctx, query, date).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check emergency closure: %w", err)
	}
	return exists, nil
}

func (r *emergencyClosureRepo) Create(ctx context.Context, closure *domain.EmergencyClosure) error {
	query := `
		INSERT INTO emergency_closure (date, reason)
		VALUES ($1, $2)
		ON CONFLICT (date) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, closure.Date, closure.Reason); err != nil {
		return fmt.Errorf("failed to create emergency closure: %w", err)
	}
	return nil
}

func (r *emergencyClosureRepo) DeleteByDate(ctx context.Context, date time.Time) error {
	query := `DELETE FROM emergency_closure WHERE date = $1`
	if _, err := r.pool.Exec(ctx, query, date); err != nil {
		return fmt.Errorf("failed to delete emergency closure: %w", err)
	}
	return nil
}

func (r *emergencyClosureRepo) List(ctx context.Context) ([]domain.EmergencyClosure, error) {
	query := `
		SELECT date, reason, created_at
		FROM emergency_closure
		ORDER BY date DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list emergency closures: %w", err)
	}
	defer rows.Close()

	var closures []domain.EmergencyClosure
	for rows.Next() {
		var c domain.EmergencyClosure
		if err := rows.Scan(&c.Date, &c.Reason, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan emergency closure row: %w", err)
		}
		c.Date = c.Date.UTC()
		closures = append(closures, c)
	}
	return closures, rows.Err()
}
