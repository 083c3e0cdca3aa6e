package provider

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/quantrail/nse-scanner/internal/config"
	"github.com/quantrail/nse-scanner/internal/domain"
)

// RetryService wraps a provider with exponential backoff retries behind the
// circuit breaker. When the breaker is open the call is refused outright and
// no retry attempts are consumed.
type RetryService struct {
	provider MarketDataProvider
	breaker  *CircuitBreaker
	cfg      config.RetryConfig
	logger   *zap.Logger
}

// NewRetryService creates a retry service.
func NewRetryService(p MarketDataProvider, breaker *CircuitBreaker, cfg config.RetryConfig, logger *zap.Logger) *RetryService {
	return &RetryService{provider: p, breaker: breaker, cfg: cfg, logger: logger}
}

// FetchHistorical fetches daily bars with retries. Every attempt's outcome
// feeds the breaker, so a run of bad symbols can trip it.
func (s *RetryService) FetchHistorical(ctx context.Context, symbol string, start, end time.Time) Result {
	if !s.breaker.Allow(ctx) {
		return Result{CircuitOpen: true}
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		prices, err := s.provider.FetchHistoricalData(ctx, symbol, start, end)
		if err == nil {
			s.breaker.RecordSuccess()
			return Result{Prices: prices}
		}

		lastErr = err
		s.breaker.RecordFailure(ctx)
		s.logger.Warn("Provider fetch failed",
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt < s.cfg.MaxAttempts {
			if err := s.sleep(ctx, s.backoff(attempt)); err != nil {
				return Result{Err: err}
			}
		}
	}
	return Result{Err: lastErr}
}

// backoff is base doubled per attempt plus random jitter.
func (s *RetryService) backoff(attempt int) time.Duration {
	d := s.cfg.BaseBackoff() << (attempt - 1)
	if jitter := s.cfg.JitterMax(); jitter > 0 {
		d += time.Duration(rand.Int63n(int64(jitter) + 1))
	}
	return d
}

func (s *RetryService) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Breaker exposes the underlying circuit breaker for status reporting.
func (s *RetryService) Breaker() *CircuitBreaker {
	return s.breaker
}

// Classify maps a batch of per-symbol results onto a data source health
// status: all failed means unavailable, some failed means degraded, success
// with no bars anywhere means no data.
func Classify(succeeded, failed, barsFetched int) domain.DataSourceStatus {
	switch {
	case succeeded == 0 && failed > 0:
		return domain.SourceUnavailable
	case failed > 0:
		return domain.SourceDegraded
	case barsFetched == 0:
		return domain.SourceNoData
	default:
		return domain.SourceHealthy
	}
}
