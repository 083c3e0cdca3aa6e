// Package ingest runs the daily price ingestion pipeline: fetch bars for
// every universe symbol, persist them, and record the outcome on the date's
// execution state.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantrail/nse-scanner/internal/calendar"
	"github.com/quantrail/nse-scanner/internal/db/repository"
	"github.com/quantrail/nse-scanner/internal/domain"
	"github.com/quantrail/nse-scanner/internal/events"
	"github.com/quantrail/nse-scanner/internal/provider"
	"github.com/quantrail/nse-scanner/internal/state"
)

// Fetch windows in calendar days. A symbol with recent bars only needs a
// top-up; a cold symbol gets enough history to compute 200-day indicators.
const (
	topUpWindowDays    = 7
	backfillWindowDays = 400
)

// Fetcher is the resilient provider surface the ingest pipeline consumes.
type Fetcher interface {
	FetchHistorical(ctx context.Context, symbol string, start, end time.Time) provider.Result
}

// Service ingests daily bars for trading dates.
type Service struct {
	universe  repository.UniverseRepository
	prices    repository.StockPriceRepository
	state     *state.Service
	fetcher   Fetcher
	publisher events.Publisher
	logger    *zap.Logger
}

// NewService creates an ingestion service.
func NewService(
	universe repository.UniverseRepository,
	prices repository.StockPriceRepository,
	stateSvc *state.Service,
	fetcher Fetcher,
	publisher events.Publisher,
	logger *zap.Logger,
) *Service {
	return &Service{
		universe:  universe,
		prices:    prices,
		state:     stateSvc,
		fetcher:   fetcher,
		publisher: publisher,
		logger:    logger,
	}
}

// IngestForDate runs ingestion for one trading date. The date's execution
// state gates re-runs: a completed ingestion is never repeated, a failed one
// may be retried. Prices commit per symbol, so a partial failure keeps the
// bars that did arrive.
func (s *Service) IngestForDate(ctx context.Context, date time.Time, mode domain.ExecutionMode) (*domain.IngestReport, error) {
	date = calendar.DateOf(date)

	ok, err := s.state.CanIngest(ctx, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ingestion already ran for %s", domain.ErrInvalidState, date.Format("2006-01-02"))
	}

	if err := s.state.StartIngestion(ctx, date, mode); err != nil {
		return nil, err
	}

	stocks, err := s.universe.ListActive(ctx)
	if err != nil {
		return nil, s.fail(ctx, date, fmt.Sprintf("failed to load universe: %v", err), domain.SourceUnknown)
	}
	if len(stocks) == 0 {
		if err := s.state.CompleteIngestionNoData(ctx, date, domain.SourceNoData); err != nil {
			return nil, err
		}
		report := &domain.IngestReport{Date: date, SourceStatus: domain.SourceNoData}
		s.publishCompleted(report)
		return report, nil
	}

	var succeeded, failed, withBar int
	for _, stock := range stocks {
		start, err := s.fetchStart(ctx, stock.Symbol, date)
		if err != nil {
			return nil, s.fail(ctx, date, fmt.Sprintf("failed to inspect price history: %v", err), domain.SourceUnknown)
		}

		result := s.fetcher.FetchHistorical(ctx, stock.Symbol, start, date)
		if result.CircuitOpen {
			// The breaker blocks everything; counting the rest as failed
			// one by one would only burn time.
			failed += len(stocks) - succeeded - failed
			s.logger.Warn("Ingestion aborted by open circuit",
				zap.String("trading_date", date.Format("2006-01-02")),
				zap.String("symbol", stock.Symbol),
			)
			break
		}
		if result.Err != nil {
			failed++
			continue
		}

		bars := barsUpTo(result.Prices, date)
		if err := s.prices.UpsertBatch(ctx, bars); err != nil {
			return nil, s.fail(ctx, date, fmt.Sprintf("failed to store prices: %v", err), domain.SourceDegraded)
		}
		succeeded++
		if hasBarOn(bars, date) {
			withBar++
		}
	}

	status := provider.Classify(succeeded, failed, withBar)
	report := &domain.IngestReport{
		Date:           date,
		StocksIngested: withBar,
		StocksFailed:   failed,
		SourceStatus:   status,
	}

	switch {
	case succeeded == 0 && failed > 0:
		reason := fmt.Sprintf("all %d symbols failed", failed)
		if err := s.state.FailIngestion(ctx, date, reason, status); err != nil {
			return nil, err
		}
		if pubErr := s.publisher.PublishIngestionFailed(date, reason); pubErr != nil {
			s.logger.Warn("Failed to publish ingestion event", zap.Error(pubErr))
		}
		return report, fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, reason)
	case withBar == 0:
		if err := s.state.CompleteIngestionNoData(ctx, date, status); err != nil {
			return nil, err
		}
	default:
		if err := s.state.CompleteIngestion(ctx, date, withBar, status); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Ingestion completed",
		zap.String("trading_date", date.Format("2006-01-02")),
		zap.Int("stocks_ingested", withBar),
		zap.Int("stocks_failed", failed),
		zap.String("source_status", status.String()),
	)
	s.publishCompleted(report)
	return report, nil
}

// fetchStart picks the window start for a symbol: a short top-up when
// recent bars exist, a deep backfill otherwise.
func (s *Service) fetchStart(ctx context.Context, symbol string, date time.Time) (time.Time, error) {
	recent, err := s.prices.HistoryUpTo(ctx, symbol, date, 1)
	if err != nil {
		return time.Time{}, err
	}
	if len(recent) > 0 && !recent[0].Date.Before(date.AddDate(0, 0, -topUpWindowDays)) {
		return date.AddDate(0, 0, -topUpWindowDays), nil
	}
	return date.AddDate(0, 0, -backfillWindowDays), nil
}

func (s *Service) fail(ctx context.Context, date time.Time, reason string, source domain.DataSourceStatus) error {
	if err := s.state.FailIngestion(ctx, date, reason, source); err != nil {
		s.logger.Error("Failed to record ingestion failure", zap.Error(err))
	}
	if err := s.publisher.PublishIngestionFailed(date, reason); err != nil {
		s.logger.Warn("Failed to publish ingestion event", zap.Error(err))
	}
	return fmt.Errorf("ingestion failed for %s: %s", date.Format("2006-01-02"), reason)
}

func (s *Service) publishCompleted(report *domain.IngestReport) {
	if err := s.publisher.PublishIngestionCompleted(report); err != nil {
		s.logger.Warn("Failed to publish ingestion event", zap.Error(err))
	}
}

func barsUpTo(prices []domain.StockPrice, date time.Time) []domain.StockPrice {
	out := prices[:0:0]
	for _, p := range prices {
		if !p.Date.After(date) {
			out = append(out, p)
		}
	}
	return out
}

func hasBarOn(prices []domain.StockPrice, date time.Time) bool {
	for _, p := range prices {
		if p.Date.Equal(date) {
			return true
		}
	}
	return false
}
