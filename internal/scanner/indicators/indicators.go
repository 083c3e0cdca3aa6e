// Package indicators computes technical indicators over daily bars. Input
// slices must be ordered oldest to newest; every function treats the last
// element as the current bar.
package indicators

import (
	"math"

	"github.com/quantrail/nse-scanner/internal/domain"
)

// Parameters holds the lookback windows for one indicator pass.
type Parameters struct {
	RSIPeriod       int
	SMAShortPeriod  int
	SMAMediumPeriod int
	SMALongPeriod   int
}

// Bundle is the pre-computed indicator set handed to scan rules. Nil fields
// mean the series was too short for that window.
type Bundle struct {
	RSI         *float64
	SMA20       *float64
	SMA50       *float64
	SMA200      *float64
	AvgVolume20 *int64
	ATR         *float64
	AboveSMA20  *bool
	AboveSMA50  *bool
	AboveSMA200 *bool
}

func (b Bundle) HasRSI() bool       { return b.RSI != nil }
func (b Bundle) HasSMA20() bool     { return b.SMA20 != nil }
func (b Bundle) HasAvgVolume() bool { return b.AvgVolume20 != nil }

// Calculate runs the full indicator pass for one symbol's price series.
func Calculate(prices []domain.StockPrice, params Parameters) Bundle {
	var bundle Bundle
	if len(prices) == 0 {
		return bundle
	}

	bundle.RSI = RSI(prices, params.RSIPeriod)

	if len(prices) >= params.SMAShortPeriod {
		bundle.SMA20 = SMA(prices, params.SMAShortPeriod)
		bundle.AvgVolume20 = AvgVolume(prices, params.SMAShortPeriod)
	}
	if len(prices) >= params.SMAMediumPeriod {
		bundle.SMA50 = SMA(prices, params.SMAMediumPeriod)
	}
	if len(prices) >= params.SMALongPeriod {
		bundle.SMA200 = SMA(prices, params.SMALongPeriod)
	}

	current := prices[len(prices)-1].AdjClose
	if bundle.SMA20 != nil {
		above := current > *bundle.SMA20
		bundle.AboveSMA20 = &above
	}
	if bundle.SMA50 != nil {
		above := current > *bundle.SMA50
		bundle.AboveSMA50 = &above
	}
	if bundle.SMA200 != nil {
		above := current > *bundle.SMA200
		bundle.AboveSMA200 = &above
	}

	return bundle
}

// RSI computes a simple-average relative strength index over the last
// period bars. Returns nil when the series is too short. A series with no
// losses saturates at 100.
func RSI(prices []domain.StockPrice, period int) *float64 {
	if period <= 0 || len(prices) < period+1 {
		return nil
	}

	var gainSum, lossSum float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i].AdjClose - prices[i-1].AdjClose
		if change > 0 {
			gainSum += change
		} else {
			lossSum += math.Abs(change)
		}
	}

	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	if avgLoss == 0 {
		v := 100.0
		return &v
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	return &rsi
}

// SMA computes the simple moving average of adjusted closes over the last
// period bars.
func SMA(prices []domain.StockPrice, period int) *float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	var sum float64
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i].AdjClose
	}
	avg := sum / float64(period)
	return &avg
}

// AvgVolume computes the mean volume over the last period bars, ignoring
// zero-volume bars.
func AvgVolume(prices []domain.StockPrice, period int) *int64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	var sum int64
	var count int64
	for i := len(prices) - period; i < len(prices); i++ {
		if prices[i].Volume > 0 {
			sum += prices[i].Volume
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := sum / count
	return &avg
}

// ATR computes the average true range over the last period bars.
func ATR(prices []domain.StockPrice, period int) *float64 {
	if period <= 0 || len(prices) < period+1 {
		return nil
	}

	var trSum float64
	for i := len(prices) - period; i < len(prices); i++ {
		high := prices[i].High
		low := prices[i].Low
		prevClose := prices[i-1].AdjClose

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trSum += tr
	}
	atr := trSum / float64(period)
	return &atr
}
