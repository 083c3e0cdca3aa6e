package scanner

import (
	"encoding/json"

	"github.com/quantrail/nse-scanner/internal/config"
	"github.com/quantrail/nse-scanner/internal/domain"
	"github.com/quantrail/nse-scanner/internal/scanner/indicators"
)

const breakoutRuleVersion = "1.1"

// BreakoutConfirmedRule flags stocks closing above their recent high with
// volume and momentum confirmation.
type BreakoutConfirmedRule struct {
	cfg config.BreakoutConfig
}

// NewBreakoutConfirmedRule creates the rule with the given parameters.
func NewBreakoutConfirmedRule(cfg config.BreakoutConfig) *BreakoutConfirmedRule {
	return &BreakoutConfirmedRule{cfg: cfg}
}

var _ Rule = (*BreakoutConfirmedRule)(nil)

func (r *BreakoutConfirmedRule) Name() string    { return "Breakout Confirmed" }
func (r *BreakoutConfirmedRule) Version() string { return breakoutRuleVersion }

// ParameterSnapshot serializes the active parameters. encoding/json sorts
// map keys, which keeps snapshots byte-comparable across runs.
func (r *BreakoutConfirmedRule) ParameterSnapshot() string {
	params := map[string]any{
		"lookbackWindow":             r.cfg.LookbackWindow,
		"rsiPeriod":                  r.cfg.RSIPeriod,
		"smaShortPeriod":             r.cfg.SMAShortPeriod,
		"smaMediumPeriod":            r.cfg.SMAMediumPeriod,
		"smaLongPeriod":              r.cfg.SMALongPeriod,
		"maxGap":                     r.cfg.MaxGap,
		"rsiThresholdMatch":          r.cfg.RSIThresholdMatch,
		"volumeMultiplierMatch":      r.cfg.VolumeMultiplierMatch,
		"rsiThresholdConfidence":     r.cfg.RSIThresholdConfidence,
		"volumeMultiplierConfidence": r.cfg.VolumeMultiplierConfidence,
		"baseConfidence":             r.cfg.BaseConfidence,
		"confidenceIncrement":        r.cfg.ConfidenceIncrement,
		"maxConfidenceCap":           r.cfg.MaxConfidenceCap,
	}
	data, err := json.Marshal(params)
	if err != nil {
		return `{"error":"serialization failed"}`
	}
	return string(data)
}

func (r *BreakoutConfirmedRule) Matches(symbol string, prices []domain.StockPrice, ind indicators.Bundle) bool {
	if len(prices) < r.cfg.LookbackWindow {
		return false
	}
	if !ind.HasRSI() || !ind.HasSMA20() || !ind.HasAvgVolume() {
		return false
	}

	today := prices[len(prices)-1]

	recentHigh := 0.0
	for i := len(prices) - r.cfg.LookbackWindow; i < len(prices)-1; i++ {
		if prices[i].High > recentHigh {
			recentHigh = prices[i].High
		}
	}
	if recentHigh == 0 {
		return false
	}

	priceBreakout := today.AdjClose > recentHigh
	gapPercent := (today.AdjClose - recentHigh) / recentHigh
	reasonableGap := gapPercent < r.cfg.MaxGap
	volumeConfirmation := float64(today.Volume) > float64(*ind.AvgVolume20)*r.cfg.VolumeMultiplierMatch
	rsiSupport := *ind.RSI > r.cfg.RSIThresholdMatch
	aboveSMA20 := ind.AboveSMA20 != nil && *ind.AboveSMA20

	return priceBreakout && reasonableGap && volumeConfirmation && rsiSupport && aboveSMA20
}

func (r *BreakoutConfirmedRule) Confidence(symbol string, prices []domain.StockPrice, ind indicators.Bundle) float64 {
	if !r.Matches(symbol, prices, ind) {
		return 0
	}

	confidence := r.cfg.BaseConfidence
	today := prices[len(prices)-1]

	if ind.HasRSI() && *ind.RSI > r.cfg.RSIThresholdConfidence {
		confidence += r.cfg.ConfidenceIncrement
	}
	if ind.AboveSMA50 != nil && *ind.AboveSMA50 {
		confidence += r.cfg.ConfidenceIncrement
	}
	if ind.HasAvgVolume() && float64(today.Volume) > float64(*ind.AvgVolume20)*r.cfg.VolumeMultiplierConfidence {
		confidence += r.cfg.ConfidenceIncrement
	}
	if ind.AboveSMA200 != nil && *ind.AboveSMA200 {
		confidence += r.cfg.ConfidenceIncrement
	}

	if confidence > r.cfg.MaxConfidenceCap {
		confidence = r.cfg.MaxConfidenceCap
	}
	return confidence
}

func (r *BreakoutConfirmedRule) Metadata(symbol string, prices []domain.StockPrice, ind indicators.Bundle) string {
	if len(prices) == 0 {
		return "{}"
	}

	today := prices[len(prices)-1]
	metadata := map[string]any{
		"close":       today.AdjClose,
		"volume":      today.Volume,
		"rsi":         ind.RSI,
		"sma20":       ind.SMA20,
		"avgVolume20": ind.AvgVolume20,
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(data)
}
