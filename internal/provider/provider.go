// Package provider fetches daily market data. The live implementation talks
// to Yahoo Finance; a deterministic synthetic implementation backs
// simulation runs. All calls go through the retry service, which wraps the
// circuit breaker around the raw provider.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/quantrail/nse-scanner/internal/domain"
)

// MarketDataProvider is a source of daily OHLCV bars.
type MarketDataProvider interface {
	// FetchHistoricalData retrieves daily bars for a symbol in [start, end].
	FetchHistoricalData(ctx context.Context, symbol string, start, end time.Time) ([]domain.StockPrice, error)

	// FetchLatestData retrieves the most recent bar for a symbol.
	FetchLatestData(ctx context.Context, symbol string) (*domain.StockPrice, error)

	// Healthy reports whether the provider currently serves data for the
	// symbol.
	Healthy(ctx context.Context, symbol string) bool
}

// ProviderError wraps a failed provider call.
type ProviderError struct {
	Symbol  string
	Message string
	Err     error
}

func (e ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error for %s: %s: %v", e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("provider error for %s: %s", e.Symbol, e.Message)
}

func (e ProviderError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return domain.ErrProviderUnavailable
}

// SymbolNotFoundError reports a symbol the provider does not know.
type SymbolNotFoundError struct {
	Symbol string
}

func (e SymbolNotFoundError) Error() string {
	return fmt.Sprintf("symbol not found: %s", e.Symbol)
}

func (e SymbolNotFoundError) Unwrap() error {
	return domain.ErrNotFound
}

// Result carries the outcome of a resilient fetch. Exactly one of the three
// shapes holds: data on success, CircuitOpen when the breaker blocked the
// call without consuming attempts, or Err when retries were exhausted.
type Result struct {
	Prices      []domain.StockPrice
	CircuitOpen bool
	Err         error
}

// Success reports whether data was fetched.
func (r Result) Success() bool {
	return !r.CircuitOpen && r.Err == nil
}
