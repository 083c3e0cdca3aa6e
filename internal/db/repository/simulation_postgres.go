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

// simulationStateRepo implements SimulationStateRepository using PostgreSQL.
type simulationStateRepo struct {
	pool *db.Pool
}

// NewSimulationStateRepository creates a new PostgreSQL simulation state repository.
func NewSimulationStateRepository(pool *db.Pool) SimulationStateRepository {
	return &simulationStateRepo{pool: pool}
}

func (r *simulationStateRepo) GetOrCreate(ctx context.Context, baseDate time.Time) (*domain.SimulationState, error) {
	query := `
		INSERT INTO simulation_state (id, version, base_date, trading_offset, is_cycling)
		VALUES ($1, 0, $2, 0, FALSE)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, domain.SimulationStateID, baseDate); err != nil {
		return nil, fmt.Errorf("failed to initialize simulation state: %w", err)
	}
	return r.Get(ctx)
}

func (r *simulationStateRepo) Get(ctx context.Context) (*domain.SimulationState, error) {
	query := `
		SELECT id, version, base_date, trading_offset, is_cycling, cycling_started_at
		FROM simulation_state
		WHERE id = $1
	`

	state := &domain.SimulationState{}
	err := r.pool.QueryRow(ctx, query, domain.SimulationStateID).Scan(
		&state.ID,
		&state.Version,
		&state.BaseDate,
		&state.TradingOffset,
		&state.IsCycling,
		&state.CyclingStartedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("simulation_state", "1")
		}
		return nil, fmt.Errorf("failed to get simulation state: %w", err)
	}
	state.BaseDate = state.BaseDate.UTC()
	return state, nil
}

// UpdateOffset advances the offset under optimistic concurrency control. The
// version guard in the WHERE clause makes a lost race visible as zero
// affected rows.
func (r *simulationStateRepo) UpdateOffset(ctx context.Context, offset, expectedVersion int) error {
	query := `
		UPDATE simulation_state
		SET trading_offset = $2, version = version + 1
		WHERE id = $1 AND version = $3
	`

	result, err := r.pool.Exec(ctx, query, domain.SimulationStateID, offset, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update trading offset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConcurrencyConflict
	}
	return nil
}

// AcquireCycleLock claims the cycling flag in a single guarded UPDATE, so
// two concurrent batches can never both see the flag clear. A lock whose
// start stamp is older than staleCeiling belongs to a crashed batch and is
// taken over.
func (r *simulationStateRepo) AcquireCycleLock(ctx context.Context, staleCeiling time.Duration) error {
	query := `
		UPDATE simulation_state
		SET is_cycling = TRUE, cycling_started_at = NOW(), version = version + 1
		WHERE id = $1
		  AND (is_cycling = FALSE OR cycling_started_at < NOW() - make_interval(secs => $2))
	`

	result, err := r.pool.Exec(ctx, query, domain.SimulationStateID, staleCeiling.Seconds())
	if err != nil {
		return fmt.Errorf("failed to acquire cycle lock: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrCyclingInProgress
	}
	return nil
}

func (r *simulationStateRepo) ReleaseCycleLock(ctx context.Context) error {
	query := `
		UPDATE simulation_state
		SET is_cycling = FALSE, cycling_started_at = NULL, version = version + 1
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, query, domain.SimulationStateID); err != nil {
		return fmt.Errorf("failed to release cycle lock: %w", err)
	}
	return nil
}

// Reset rewinds the timeline to the base date. The cycling guard keeps a
// reset from yanking the date out from under a running batch.
func (r *simulationStateRepo) Reset(ctx context.Context) error {
	query := `
		UPDATE simulation_state
		SET trading_offset = 0, version = version + 1
		WHERE id = $1 AND is_cycling = FALSE
	`

	result, err := r.pool.Exec(ctx, query, domain.SimulationStateID)
	if err != nil {
		return fmt.Errorf("failed to reset simulation state: %w", err)
	}
	if result.RowsAffected() == 0 {
		state, getErr := r.Get(ctx)
		if getErr != nil {
			return getErr
		}
		if state.IsCycling {
			return fmt.Errorf("%w: cannot reset while a cycle batch is running", domain.ErrInvalidState)
		}
		return domain.NewNotFoundError("simulation_state", "1")
	}
	return nil
}
