package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quantrail/nse-scanner/internal/calendar"
	"github.com/quantrail/nse-scanner/internal/clock"
	"github.com/quantrail/nse-scanner/internal/domain"
)

// YahooProvider fetches daily bars from the Yahoo Finance v8 chart API.
//
// API: {base}/v8/finance/chart/{symbol}?period1={start}&period2={end}&interval=1d
type YahooProvider struct {
	baseURL string
	client  *http.Client
	clk     clock.Clock
	logger  *zap.Logger
}

// NewYahooProvider creates a Yahoo Finance provider.
func NewYahooProvider(baseURL string, timeout time.Duration, clk clock.Clock, logger *zap.Logger) *YahooProvider {
	return &YahooProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		clk:     clk,
		logger:  logger,
	}
}

var _ MarketDataProvider = (*YahooProvider)(nil)

// chartResponse mirrors the subset of the v8 chart payload the scanner
// reads. Bar fields are pointer slices: Yahoo emits JSON null for missing
// values.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

func (p *YahooProvider) FetchHistoricalData(ctx context.Context, symbol string, start, end time.Time) ([]domain.StockPrice, error) {
	period1 := calendar.DateOf(start).Unix()
	period2 := calendar.DateOf(end).Add(24*time.Hour - time.Second).Unix()

	url := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&includeAdjustedClose=true",
		p.baseURL, formatTicker(symbol), period1, period2)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ProviderError{Symbol: symbol, Message: "failed to build request", Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, ProviderError{Symbol: symbol, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, SymbolNotFoundError{Symbol: symbol}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ProviderError{Symbol: symbol, Message: fmt.Sprintf("API returned status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ProviderError{Symbol: symbol, Message: "failed to read response", Err: err}
	}

	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ProviderError{Symbol: symbol, Message: "failed to parse response", Err: err}
	}

	if payload.Chart.Error != nil {
		p.logger.Error("Yahoo Finance error",
			zap.String("symbol", symbol),
			zap.String("description", payload.Chart.Error.Description),
		)
		return nil, SymbolNotFoundError{Symbol: symbol}
	}
	if len(payload.Chart.Result) == 0 {
		p.logger.Warn("No data returned", zap.String("symbol", symbol))
		return nil, SymbolNotFoundError{Symbol: symbol}
	}

	result := payload.Chart.Result[0]
	if len(result.Timestamp) == 0 {
		p.logger.Warn("No timestamps returned", zap.String("symbol", symbol))
		return nil, SymbolNotFoundError{Symbol: symbol}
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, ProviderError{Symbol: symbol, Message: "response missing quote data"}
	}

	quote := result.Indicators.Quote[0]
	var adjClose []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjClose = result.Indicators.AdjClose[0].AdjClose
	}

	prices := make([]domain.StockPrice, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePrice := floatAt(quote.Close, i)
		// A bar without a close price is unusable.
		if closePrice == 0 {
			continue
		}

		adj := floatAt(adjClose, i)
		if adj == 0 {
			adj = closePrice
		}

		prices = append(prices, domain.StockPrice{
			Symbol:   symbol,
			Date:     calendar.DateOf(time.Unix(ts, 0).UTC()),
			Open:     floatAt(quote.Open, i),
			High:     floatAt(quote.High, i),
			Low:      floatAt(quote.Low, i),
			Close:    closePrice,
			AdjClose: adj,
			Volume:   intAt(quote.Volume, i),
		})
	}

	p.logger.Debug("Fetched prices",
		zap.String("symbol", symbol),
		zap.Int("bars", len(prices)),
	)
	return prices, nil
}

func (p *YahooProvider) FetchLatestData(ctx context.Context, symbol string) (*domain.StockPrice, error) {
	today, err := p.clk.Today(ctx)
	if err != nil {
		return nil, ProviderError{Symbol: symbol, Message: "failed to resolve current date", Err: err}
	}

	// A one-week window tolerates weekends and holiday runs.
	prices, err := p.FetchHistoricalData(ctx, symbol, today.AddDate(0, 0, -7), today)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, SymbolNotFoundError{Symbol: symbol}
	}
	return &prices[len(prices)-1], nil
}

func (p *YahooProvider) Healthy(ctx context.Context, symbol string) bool {
	_, err := p.FetchLatestData(ctx, symbol)
	if err != nil {
		p.logger.Error("Provider health check failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return false
	}
	return true
}

// formatTicker maps an NSE symbol to its Yahoo ticker.
func formatTicker(symbol string) string {
	return symbol + ".NS"
}

func floatAt(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

func intAt(values []*int64, i int) int64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}
