// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quantrail/nse-scanner/internal/db"
	"github.com/quantrail/nse-scanner/internal/domain"
)

// SimulationStateRepository defines the interface for the singleton
// simulation state row.
type SimulationStateRepository interface {
	// GetOrCreate retrieves the state row, inserting the initial row
	// anchored at baseDate if none exists.
	GetOrCreate(ctx context.Context, baseDate time.Time) (*domain.SimulationState, error)

	// Get retrieves the state row. Returns a NotFoundError when the row
	// was never created.
	Get(ctx context.Context) (*domain.SimulationState, error)

	// UpdateOffset sets the trading offset guarded by the version token.
	// Returns ErrConcurrencyConflict when the version no longer matches.
	UpdateOffset(ctx context.Context, offset, expectedVersion int) error

	// AcquireCycleLock claims the cycling flag. A lock older than
	// staleCeiling is treated as abandoned and taken over. Returns
	// ErrCyclingInProgress when another batch holds a live lock.
	AcquireCycleLock(ctx context.Context, staleCeiling time.Duration) error

	// ReleaseCycleLock clears the cycling flag.
	ReleaseCycleLock(ctx context.Context) error

	// Reset rewinds the offset to zero. Rejected with ErrInvalidState
	// while a batch is cycling.
	Reset(ctx context.Context) error
}

// ExecutionStateRepository defines the interface for per-date execution
// state rows.
type ExecutionStateRepository interface {
	// GetOrCreate retrieves the state for a trading date, inserting the
	// initial pending row if none exists.
	GetOrCreate(ctx context.Context, tradingDate time.Time) (*domain.ExecutionState, error)

	// GetByDate retrieves the state for a trading date.
	GetByDate(ctx context.Context, tradingDate time.Time) (*domain.ExecutionState, error)

	// Save persists the current field values of an existing row.
	Save(ctx context.Context, state *domain.ExecutionState) error

	// ListRecent retrieves the most recent states, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.ExecutionState, error)
}

// EmergencyClosureRepository defines the interface for emergency closure
// records.
type EmergencyClosureRepository interface {
	// ExistsByDate reports whether the date is marked closed.
	ExistsByDate(ctx context.Context, date time.Time) (bool, error)

	// Create marks a date closed. Inserting an already marked date is a
	// no-op.
	Create(ctx context.Context, closure *domain.EmergencyClosure) error

	// DeleteByDate clears a closure mark.
	DeleteByDate(ctx context.Context, date time.Time) error

	// List retrieves all closures, newest first.
	List(ctx context.Context) ([]domain.EmergencyClosure, error)
}

// StockPriceRepository defines the interface for daily OHLCV bars.
type StockPriceRepository interface {
	// UpsertBatch inserts or replaces bars in a single transaction.
	UpsertBatch(ctx context.Context, prices []domain.StockPrice) error

	// HistoryUpTo retrieves up to limit bars for a symbol with date <= asOf,
	// in ascending date order.
	HistoryUpTo(ctx context.Context, symbol string, asOf time.Time, limit int) ([]domain.StockPrice, error)

	// CountByDate counts bars stored for a date.
	CountByDate(ctx context.Context, date time.Time) (int, error)
}

// UniverseRepository defines the interface for the scan universe.
type UniverseRepository interface {
	// ListActive retrieves all active universe entries.
	ListActive(ctx context.Context) ([]domain.UniverseStock, error)

	// Seed inserts universe entries, ignoring symbols already present.
	Seed(ctx context.Context, stocks []domain.UniverseStock) error
}

// ScanResultRepository defines the interface for scan signals.
type ScanResultRepository interface {
	// CreateBatch persists signals in a single transaction.
	CreateBatch(ctx context.Context, results []*domain.ScanResult) error

	// ListByDate retrieves signals for a scan date.
	ListByDate(ctx context.Context, scanDate time.Time) ([]*domain.ScanResult, error)

	// ListRecent retrieves the most recent signals, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.ScanResult, error)
}

// ScannerRunRepository defines the interface for scanner run audit records.
type ScannerRunRepository interface {
	// Create persists a new run record.
	Create(ctx context.Context, run *domain.ScannerRun) error

	// Finish stamps completion counters on a run.
	Finish(ctx context.Context, id uuid.UUID, finishedAt time.Time, stocksScanned, signalsGenerated int) error
}

// Repositories aggregates all repository implementations.
type Repositories struct {
	SimulationState  SimulationStateRepository
	ExecutionState   ExecutionStateRepository
	EmergencyClosure EmergencyClosureRepository
	StockPrice       StockPriceRepository
	Universe         UniverseRepository
	ScanResult       ScanResultRepository
	ScannerRun       ScannerRunRepository
}

// NewRepositories creates all repositories sharing one pool.
func NewRepositories(pool *db.Pool) *Repositories {
	return &Repositories{
		SimulationState:  NewSimulationStateRepository(pool),
		ExecutionState:   NewExecutionStateRepository(pool),
		EmergencyClosure: NewEmergencyClosureRepository(pool),
		StockPrice:       NewStockPriceRepository(pool),
		Universe:         NewUniverseRepository(pool),
		ScanResult:       NewScanResultRepository(pool),
		ScannerRun:       NewScannerRunRepository(pool),
	}
}
