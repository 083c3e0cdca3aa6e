// Package scanner evaluates scan rules over the stock universe and records
// the resulting signals.
package scanner

import (
	"context"
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
	"github.com/quantrail/nse-scanner/internal/scanner/indicators"
	"github.com/quantrail/nse-scanner/internal/state"
)

// Engine runs the scan pipeline for trading dates.
type Engine struct {
	rules     []Rule
	prices    repository.StockPriceRepository
	universe  repository.UniverseRepository
	results   repository.ScanResultRepository
	runs      repository.ScannerRunRepository
	state     *state.Service
	clk       clock.Clock
	publisher events.Publisher
	cfg       config.ScanConfig
	version   string
	logger    *zap.Logger
}

// NewEngine creates a scan engine. The version string is stamped on every
// signal for reproducibility.
func NewEngine(
	rules []Rule,
	prices repository.StockPriceRepository,
	universe repository.UniverseRepository,
	results repository.ScanResultRepository,
	runs repository.ScannerRunRepository,
	stateSvc *state.Service,
	clk clock.Clock,
	publisher events.Publisher,
	cfg config.ScanConfig,
	version string,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		rules:     rules,
		prices:    prices,
		universe:  universe,
		results:   results,
		runs:      runs,
		state:     stateSvc,
		clk:       clk,
		publisher: publisher,
		cfg:       cfg,
		version:   version,
		logger:    logger,
	}
}

// ScanForDate evaluates every enabled rule against every universe symbol
// for one trading date. A date whose ingestion produced no data is marked
// skipped rather than scanned.
func (e *Engine) ScanForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.ScanReport, error) {
	date = calendar.DateOf(date)

	st, err := e.state.GetOrCreate(ctx, date)
	if err != nil {
		return nil, err
	}
	if !st.CanScan() {
		if st.IngestionStatus == domain.ExecutionSuccessNoData && st.ScanStatus == domain.ExecutionPending {
			if err := e.state.SkipScan(ctx, date, "no market data ingested"); err != nil {
				return nil, err
			}
			report := &domain.ScanReport{Date: date}
			e.publishCompleted(report)
			return report, nil
		}
		return nil, fmt.Errorf("%w: scan not runnable for %s (ingestion=%s scan=%s)",
			domain.ErrInvalidState, date.Format("2006-01-02"), st.IngestionStatus, st.ScanStatus)
	}

	if err := e.state.StartScan(ctx, date); err != nil {
		return nil, err
	}

	now, err := e.clk.Now(ctx)
	if err != nil {
		return nil, e.fail(ctx, date, fmt.Sprintf("failed to read clock: %v", err))
	}

	run := &domain.ScannerRun{
		ID:        uuid.New(),
		RunDate:   date,
		StartedAt: now,
		Mode:      mode,
	}
	if err := e.runs.Create(ctx, run); err != nil {
		return nil, e.fail(ctx, date, fmt.Sprintf("failed to create run record: %v", err))
	}

	stocks, err := e.universe.ListActive(ctx)
	if err != nil {
		return nil, e.fail(ctx, date, fmt.Sprintf("failed to load universe: %v", err))
	}

	params := indicators.Parameters{
		RSIPeriod:       e.cfg.Breakout.RSIPeriod,
		SMAShortPeriod:  e.cfg.Breakout.SMAShortPeriod,
		SMAMediumPeriod: e.cfg.Breakout.SMAMediumPeriod,
		SMALongPeriod:   e.cfg.Breakout.SMALongPeriod,
	}
	historyLimit := e.cfg.Breakout.SMALongPeriod + e.cfg.Breakout.LookbackWindow

	var scanned, flagged int
	var signals []*domain.ScanResult
	var pending []*domain.ScanResult

	for _, stock := range stocks {
		prices, err := e.prices.HistoryUpTo(ctx, stock.Symbol, date, historyLimit)
		if err != nil {
			e.logger.Error("Failed to load price history",
				zap.String("symbol", stock.Symbol), zap.Error(err))
			continue
		}
		if len(prices) == 0 {
			continue
		}
		scanned++

		bundle := indicators.Calculate(prices, params)

		for _, rule := range e.rules {
			if !rule.Matches(stock.Symbol, prices, bundle) {
				continue
			}

			result := &domain.ScanResult{
				ID:                uuid.New(),
				RunID:             run.ID,
				Symbol:            stock.Symbol,
				ScanDate:          date,
				RuleName:          rule.Name(),
				RuleVersion:       rule.Version(),
				Confidence:        rule.Confidence(stock.Symbol, prices, bundle),
				ParameterSnapshot: rule.ParameterSnapshot(),
				ScannerVersion:    e.version,
				Metadata:          rule.Metadata(stock.Symbol, prices, bundle),
				CreatedAt:         now,
			}
			signals = append(signals, result)
			pending = append(pending, result)
			flagged++

			e.logger.Info("Signal generated",
				zap.String("symbol", stock.Symbol),
				zap.String("rule", rule.Name()),
				zap.Float64("confidence", result.Confidence),
			)

			if len(pending) >= e.cfg.BatchSize {
				if err := e.results.CreateBatch(ctx, pending); err != nil {
					return nil, e.fail(ctx, date, fmt.Sprintf("failed to store signals: %v", err))
				}
				pending = pending[:0]
			}
		}
	}

	if len(pending) > 0 {
		if err := e.results.CreateBatch(ctx, pending); err != nil {
			return nil, e.fail(ctx, date, fmt.Sprintf("failed to store signals: %v", err))
		}
	}

	finishedAt, err := e.clk.Now(ctx)
	if err != nil {
		finishedAt = now
	}
	if err := e.runs.Finish(ctx, run.ID, finishedAt, scanned, flagged); err != nil {
		return nil, e.fail(ctx, date, fmt.Sprintf("failed to finish run record: %v", err))
	}
	if err := e.state.CompleteScan(ctx, date, flagged); err != nil {
		return nil, err
	}

	report := &domain.ScanReport{Date: date, StocksScanned: scanned, SignalsGenerated: flagged}
	e.logger.Info("Scan completed",
		zap.String("trading_date", date.Format("2006-01-02")),
		zap.Int("stocks_scanned", scanned),
		zap.Int("signals_generated", flagged),
	)

	e.publishCompleted(report)
	for _, signal := range signals {
		if err := e.publisher.PublishSignal(signal); err != nil {
			e.logger.Warn("Failed to publish signal event", zap.Error(err))
		}
	}
	return report, nil
}

func (e *Engine) fail(ctx context.Context, date time.Time, reason string) error {
	if err := e.state.FailScan(ctx, date, reason); err != nil {
		e.logger.Error("Failed to record scan failure", zap.Error(err))
	}
	return fmt.Errorf("scan failed for %s: %s", date.Format("2006-01-02"), reason)
}

func (e *Engine) publishCompleted(report *domain.ScanReport) {
	if err := e.publisher.PublishScanCompleted(report); err != nil {
		e.logger.Warn("Failed to publish scan event", zap.Error(err))
	}
}
