package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quantrail/nse-scanner/internal/calendar"
	"github.com/quantrail/nse-scanner/internal/domain"
)

const chartPayload = `{
	"chart": {
		"result": [{
			"timestamp": [1704153600, 1704240000, 1704326400],
			"indicators": {
				"quote": [{
					"open":   [100.0, 102.5, null],
					"high":   [103.0, 104.0, null],
					"low":    [99.0, 101.0, null],
					"close":  [102.0, 103.5, null],
					"volume": [500000, 750000, null]
				}],
				"adjclose": [{
					"adjclose": [101.5, null, null]
				}]
			}
		}],
		"error": null
	}
}`

func TestYahooFetchHistoricalData(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(chartPayload))
	}))
	defer server.Close()

	clk := newManualClock(time.Date(2024, time.January, 5, 10, 0, 0, 0, time.UTC))
	p := NewYahooProvider(server.URL, 5*time.Second, clk, zaptest.NewLogger(t))

	prices, err := p.FetchHistoricalData(context.Background(), "RELIANCE",
		calendar.Date(2024, time.January, 1), calendar.Date(2024, time.January, 4))
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/RELIANCE.NS", gotPath)
	assert.Contains(t, gotQuery, "interval=1d")

	// The third bar has a null close and is dropped.
	require.Len(t, prices, 2)

	first := prices[0]
	assert.Equal(t, "RELIANCE", first.Symbol)
	assert.Equal(t, calendar.Date(2024, time.January, 2), first.Date)
	assert.Equal(t, 102.0, first.Close)
	assert.Equal(t, 101.5, first.AdjClose)
	assert.Equal(t, int64(500000), first.Volume)

	// Missing adjclose falls back to close.
	second := prices[1]
	assert.Equal(t, 103.5, second.Close)
	assert.Equal(t, 103.5, second.AdjClose)
}

func TestYahooNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	clk := newManualClock(time.Now())
	p := NewYahooProvider(server.URL, 5*time.Second, clk, zaptest.NewLogger(t))

	_, err := p.FetchHistoricalData(context.Background(), "NOPE",
		calendar.Date(2024, time.January, 1), calendar.Date(2024, time.January, 4))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var notFound SymbolNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "NOPE", notFound.Symbol)
}

func TestYahooChartError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found"}}}`))
	}))
	defer server.Close()

	clk := newManualClock(time.Now())
	p := NewYahooProvider(server.URL, 5*time.Second, clk, zaptest.NewLogger(t))

	_, err := p.FetchHistoricalData(context.Background(), "GONE",
		calendar.Date(2024, time.January, 1), calendar.Date(2024, time.January, 4))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestYahooServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	clk := newManualClock(time.Now())
	p := NewYahooProvider(server.URL, 5*time.Second, clk, zaptest.NewLogger(t))

	_, err := p.FetchHistoricalData(context.Background(), "RELIANCE",
		calendar.Date(2024, time.January, 1), calendar.Date(2024, time.January, 4))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestSyntheticDeterminism(t *testing.T) {
	clk := newManualClock(time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC))
	p := NewSyntheticProvider(clk)
	ctx := context.Background()

	start := calendar.Date(2024, time.January, 1)
	end := calendar.Date(2024, time.January, 10)

	first, err := p.FetchHistoricalData(ctx, "TCS", start, end)
	require.NoError(t, err)
	second, err := p.FetchHistoricalData(ctx, "TCS", start, end)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Weekends produce no bars: 10 calendar days span 8 weekdays.
	assert.Len(t, first, 8)

	for _, bar := range first {
		assert.Greater(t, bar.Close, 0.0)
		assert.GreaterOrEqual(t, bar.High, bar.Low)
		assert.Greater(t, bar.Volume, int64(0))
	}

	// Different symbols diverge.
	other, err := p.FetchHistoricalData(ctx, "INFY", start, end)
	require.NoError(t, err)
	assert.NotEqual(t, first[0].Close, other[0].Close)
}

func TestSimulationGuardRefusesLiveCalls(t *testing.T) {
	inner := &countingProvider{}
	guard := NewSimulationGuard(inner, true)
	ctx := context.Background()

	_, err := guard.FetchHistoricalData(ctx, "RELIANCE",
		calendar.Date(2024, time.January, 1), calendar.Date(2024, time.January, 4))
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = guard.FetchLatestData(ctx, "RELIANCE")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	assert.False(t, guard.Healthy(ctx, "RELIANCE"))
	assert.Equal(t, 0, inner.calls)

	// Outside simulation mode calls pass through.
	open := NewSimulationGuard(inner, false)
	_, err = open.FetchHistoricalData(ctx, "RELIANCE",
		calendar.Date(2024, time.January, 1), calendar.Date(2024, time.January, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}
