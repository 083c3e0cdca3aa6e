// Package state manages the per-date execution state machine: what ran,
// what may run, and what must never run twice.
package state

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantrail/nse-scanner/internal/clock"
	"github.com/quantrail/nse-scanner/internal/db/repository"
	"github.com/quantrail/nse-scanner/internal/domain"
)

// Service coordinates execution state transitions for trading dates. All
// timestamps come from the Clock, so simulated runs are stamped with
// simulated time.
type Service struct {
	repo   repository.ExecutionStateRepository
	clk    clock.Clock
	logger *zap.Logger
}

// NewService creates an execution state service.
func NewService(repo repository.ExecutionStateRepository, clk clock.Clock, logger *zap.Logger) *Service {
	return &Service{repo: repo, clk: clk, logger: logger}
}

// GetOrCreate returns the state for a trading date, creating the pending
// row on first access.
func (s *Service) GetOrCreate(ctx context.Context, tradingDate time.Time) (*domain.ExecutionState, error) {
	return s.repo.GetOrCreate(ctx, tradingDate)
}

// CanIngest reports whether an ingestion run may start for the date.
func (s *Service) CanIngest(ctx context.Context, tradingDate time.Time) (bool, error) {
	state, err := s.repo.GetOrCreate(ctx, tradingDate)
	if err != nil {
		return false, err
	}
	return state.CanIngest(), nil
}

// StartIngestion marks ingestion in progress.
func (s *Service) StartIngestion(ctx context.Context, tradingDate time.Time, mode domain.ExecutionMode) error {
	return s.transition(ctx, tradingDate, func(state *domain.ExecutionState, now time.Time) {
		state.StartIngestion(mode, now)
	})
}

// CompleteIngestion marks ingestion successful with data.
func (s *Service) CompleteIngestion(ctx context.Context, tradingDate time.Time, stocksIngested int, source domain.DataSourceStatus) error {
	return s.transition(ctx, tradingDate, func(state *domain.ExecutionState, now time.Time) {
		state.CompleteIngestion(stocksIngested, source, now)
	})
}

// CompleteIngestionNoData marks ingestion successful with an empty result.
func (s *Service) CompleteIngestionNoData(ctx context.Context, tradingDate time.Time, source domain.DataSourceStatus) error {
	return s.transition(ctx, tradingDate, func(state *domain.ExecutionState, now time.Time) {
		state.CompleteIngestionNoData(source, now)
	})
}

// FailIngestion marks ingestion failed. The date stays retryable.
func (s *Service) FailIngestion(ctx context.Context, tradingDate time.Time, errMsg string, source domain.DataSourceStatus) error {
	return s.transition(ctx, tradingDate, func(state *domain.ExecutionState, now time.Time) {
		state.FailIngestion(errMsg, source, now)
	})
}

// CanScan reports whether a scan may start for the date. A scan needs a
// successful ingestion that produced data.
func (s *Service) CanScan(ctx context.Context, tradingDate time.Time) (bool, error) {
	state, err := s.repo.GetOrCreate(ctx, tradingDate)
	if err != nil {
		return false, err
	}
	return state.CanScan(), nil
}

// StartScan marks the scan in progress.
func (s *Service) StartScan(ctx context.Context, tradingDate time.Time) error {
	return s.transition(ctx, tradingDate, func(state *domain.ExecutionState, now time.Time) {
		state.StartScan(now)
	})
}

// CompleteScan marks the scan successful.
func (s *Service) CompleteScan(ctx context.Context, tradingDate time.Time, signalsGenerated int) error {
	return s.transition(ctx, tradingDate, func(state *domain.ExecutionState, now time.Time) {
		state.CompleteScan(signalsGenerated, now)
	})
}

// SkipScan marks the scan skipped with a reason, e.g. ingestion found no
// data for the date.
func (s *Service) SkipScan(ctx context.Context, tradingDate time.Time, reason string) error {
	return s.transition(ctx, tradingDate, func(state *domain.ExecutionState, now time.Time) {
		state.SkipScan(reason, now)
	})
}

// FailScan marks the scan failed. The date stays retryable.
func (s *Service) FailScan(ctx context.Context, tradingDate time.Time, errMsg string) error {
	return s.transition(ctx, tradingDate, func(state *domain.ExecutionState, now time.Time) {
		state.FailScan(errMsg, now)
	})
}

// TodayState returns the state for the clock's current date.
func (s *Service) TodayState(ctx context.Context) (*domain.ExecutionState, error) {
	today, err := s.clk.Today(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current date: %w", err)
	}
	return s.repo.GetOrCreate(ctx, today)
}

// ListRecent returns the most recent execution states.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*domain.ExecutionState, error) {
	return s.repo.ListRecent(ctx, limit)
}

// transition applies a mutation to the date's state and persists it. Each
// transition is saved immediately so the audit trail survives a later
// failure in the same run.
func (s *Service) transition(ctx context.Context, tradingDate time.Time, apply func(*domain.ExecutionState, time.Time)) error {
	state, err := s.repo.GetOrCreate(ctx, tradingDate)
	if err != nil {
		return err
	}

	now, err := s.clk.Now(ctx)
	if err != nil {
		return fmt.Errorf("failed to read clock: %w", err)
	}

	apply(state, now)
	if err := s.repo.Save(ctx, state); err != nil {
		return err
	}

	s.logger.Debug("Execution state transition",
		zap.String("trading_date", tradingDate.Format("2006-01-02")),
		zap.String("ingestion_status", state.IngestionStatus.String()),
		zap.String("scan_status", state.ScanStatus.String()),
	)
	return nil
}
