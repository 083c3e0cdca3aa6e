// Package simulation advances the simulated timeline day by day, running
// the full ingest and scan pipeline for each simulated trading date.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantrail/nse-scanner/internal/calendar"
	"github.com/quantrail/nse-scanner/internal/clock"
	"github.com/quantrail/nse-scanner/internal/config"
	"github.com/quantrail/nse-scanner/internal/db/repository"
	"github.com/quantrail/nse-scanner/internal/domain"
	"github.com/quantrail/nse-scanner/internal/events"
)

// Clock is the invalidation-aware clock the orchestrator drives. Every
// committed offset change must be followed by Invalidate so the cached
// simulated date is re-derived.
type Clock interface {
	clock.Clock
	Invalidate()
}

// Ingestor runs ingestion for one trading date.
type Ingestor interface {
	IngestForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.IngestReport, error)
}

// Scanner runs the scan for one trading date.
type Scanner interface {
	ScanForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.ScanReport, error)
}

// Orchestrator coordinates simulation batches: locking, per-day pipeline
// execution, offset commits, and rollback-free failure accounting.
type Orchestrator struct {
	repo      repository.SimulationStateRepository
	cal       calendar.Calendar
	clk       Clock
	ingestor  Ingestor
	scanner   Scanner
	publisher events.Publisher
	cfg       config.SimulationConfig
	logger    *zap.Logger
}

// NewOrchestrator creates a simulation orchestrator.
func NewOrchestrator(
	repo repository.SimulationStateRepository,
	cal calendar.Calendar,
	clk Clock,
	ingestor Ingestor,
	scanner Scanner,
	publisher events.Publisher,
	cfg config.SimulationConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:      repo,
		cal:       cal,
		clk:       clk,
		ingestor:  ingestor,
		scanner:   scanner,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Advance runs up to days simulated trading days. Each completed day's
// offset is committed individually, so a failure on day N keeps days 1..N-1
// advanced; the failed day appears in the batch result with its reason and
// the batch aborts. Concurrent batches are rejected with
// ErrCyclingInProgress; a lock older than the stale ceiling is taken over.
func (o *Orchestrator) Advance(ctx context.Context, days int) (*domain.BatchResult, error) {
	if days < 0 || days > o.cfg.MaxCycleDays {
		return nil, fmt.Errorf("%w: days must be between 0 and %d, got %d",
			domain.ErrInvalidArgument, o.cfg.MaxCycleDays, days)
	}
	batch := &domain.BatchResult{CyclesRequested: days}
	if days == 0 {
		return batch, nil
	}

	if err := o.repo.AcquireCycleLock(ctx, o.cfg.StaleCeiling()); err != nil {
		return nil, err
	}
	defer func() {
		if err := o.repo.ReleaseCycleLock(context.WithoutCancel(ctx)); err != nil {
			o.logger.Error("Failed to release cycle lock", zap.Error(err))
		}
	}()

	batchID := uuid.New().String()[:8]
	batchStart := time.Now()
	o.logger.Info("Simulation batch started",
		zap.String("batch_id", batchID),
		zap.Int("days", days),
	)

	var batchErr error
	for i := 0; i < days; i++ {
		result, err := o.runCycle(ctx, batchID)
		batch.CycleResults = append(batch.CycleResults, result)
		if err != nil {
			if pubErr := o.publisher.PublishCycleFailed(&result); pubErr != nil {
				o.logger.Warn("Failed to publish cycle event", zap.Error(pubErr))
			}
			batchErr = fmt.Errorf("cycle %d of %d failed: %w", i+1, days, err)
			break
		}
		batch.CyclesCompleted++
		if pubErr := o.publisher.PublishCycleCompleted(&result); pubErr != nil {
			o.logger.Warn("Failed to publish cycle event", zap.Error(pubErr))
		}
	}

	batch.TotalDuration = time.Since(batchStart)
	o.logger.Info("Simulation batch finished",
		zap.String("batch_id", batchID),
		zap.Int("completed", batch.CyclesCompleted),
		zap.Int("requested", batch.CyclesRequested),
		zap.Duration("duration", batch.TotalDuration),
	)
	return batch, batchErr
}

// Step advances the simulation by exactly one trading day.
func (o *Orchestrator) Step(ctx context.Context) (*domain.BatchResult, error) {
	return o.Advance(ctx, 1)
}

// runCycle executes the pipeline for the next simulated trading day and
// commits the new offset. The returned CycleResult is populated in both the
// success and the failure case.
func (o *Orchestrator) runCycle(ctx context.Context, batchID string) (domain.CycleResult, error) {
	cycleStart := time.Now()

	st, err := o.repo.Get(ctx)
	if err != nil {
		return domain.CycleResult{Success: false, FailureReason: err.Error()}, err
	}

	lastDate, err := o.cal.AddTradingDays(ctx, st.BaseDate, st.TradingOffset)
	if err != nil {
		return domain.CycleResult{Success: false, FailureReason: err.Error()}, err
	}
	cycleDate, err := o.cal.NextTradingDay(ctx, lastDate)
	if err != nil {
		return domain.CycleResult{Success: false, FailureReason: err.Error()}, err
	}

	result := domain.CycleResult{
		TradingOffset: st.TradingOffset + 1,
		CycleDate:     cycleDate,
	}
	fail := func(err error) (domain.CycleResult, error) {
		result.Success = false
		result.FailureReason = err.Error()
		result.Duration = time.Since(cycleStart)
		return result, err
	}

	o.logger.Info("Simulation cycle started",
		zap.String("batch_id", batchID),
		zap.String("cycle_date", cycleDate.Format("2006-01-02")),
		zap.Int("trading_offset", result.TradingOffset),
	)

	ingestReport, err := o.ingestor.IngestForDate(ctx, cycleDate, domain.ModeManual)
	if err != nil {
		return fail(fmt.Errorf("ingestion failed: %w", err))
	}
	result.StocksIngested = ingestReport.StocksIngested

	scanReport, err := o.scanner.ScanForDate(ctx, cycleDate, domain.ModeManual)
	if err != nil {
		return fail(fmt.Errorf("scan failed: %w", err))
	}
	result.SignalsGenerated = scanReport.SignalsGenerated

	if err := o.commitOffset(ctx, st.TradingOffset+1, st.Version); err != nil {
		return fail(fmt.Errorf("offset commit failed: %w", err))
	}
	o.clk.Invalidate()

	result.Success = true
	result.Duration = time.Since(cycleStart)
	return result, nil
}

// commitOffset applies the version-guarded offset update, re-reading the
// row on conflict. Conflicts are rare because the cycle lock serializes
// batches, but a bounded retry keeps a racing writer from failing the day.
func (o *Orchestrator) commitOffset(ctx context.Context, offset, version int) error {
	retries := o.cfg.ConflictRetries
	if retries < 1 {
		retries = 1
	}

	var err error
	for attempt := 0; attempt < retries; attempt++ {
		err = o.repo.UpdateOffset(ctx, offset, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}

		st, getErr := o.repo.Get(ctx)
		if getErr != nil {
			return getErr
		}
		if st.TradingOffset >= offset {
			// Another writer already advanced past us.
			return nil
		}
		version = st.Version
	}
	return err
}

// Reset rewinds the timeline to the base date. Rejected while a batch is
// cycling.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if err := o.repo.Reset(ctx); err != nil {
		return err
	}
	o.clk.Invalidate()

	st, err := o.repo.Get(ctx)
	if err != nil {
		return err
	}
	o.logger.Info("Simulation reset",
		zap.String("base_date", st.BaseDate.Format("2006-01-02")),
	)
	if err := o.publisher.PublishSimulationReset(st.BaseDate); err != nil {
		o.logger.Warn("Failed to publish reset event", zap.Error(err))
	}
	return nil
}

// Status reports the current simulation snapshot.
func (o *Orchestrator) Status(ctx context.Context) (*domain.SimulationStatus, error) {
	st, err := o.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	currentDate, err := o.clk.Today(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.SimulationStatus{
		BaseDate:      st.BaseDate,
		TradingOffset: st.TradingOffset,
		IsCycling:     st.IsCycling,
		CurrentDate:   currentDate,
	}, nil
}
