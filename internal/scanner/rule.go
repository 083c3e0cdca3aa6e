package scanner

import (
	"github.com/quantrail/nse-scanner/internal/domain"
	"github.com/quantrail/nse-scanner/internal/scanner/indicators"
)

// Rule is one scan rule. Rules receive prices ordered oldest to newest and
// a pre-computed indicator bundle; they never compute indicators themselves.
type Rule interface {
	// Name returns the rule's display name, recorded on every signal.
	Name() string

	// Version returns the rule logic version, recorded on every signal so
	// historical results stay attributable after the rule changes.
	Version() string

	// ParameterSnapshot returns the rule's active parameters as JSON with
	// deterministic key order.
	ParameterSnapshot() string

	// Matches reports whether the rule fires for the symbol's series.
	Matches(symbol string, prices []domain.StockPrice, ind indicators.Bundle) bool

	// Confidence scores a match in [0, 1]. Zero when Matches is false.
	Confidence(symbol string, prices []domain.StockPrice, ind indicators.Bundle) float64

	// Metadata returns a JSON snapshot of the values that drove the match.
	Metadata(symbol string, prices []domain.StockPrice, ind indicators.Bundle) string
}
