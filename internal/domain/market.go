package domain

import (
	"time"

	"github.com/google/uuid"
)

// StockPrice is one daily OHLCV bar for a symbol. Rows are unique on
// (symbol, date). Open/High/Low/Volume may be zero when the provider
// returned partial data; AdjClose always carries a usable price.
type StockPrice struct {
	ID       int64     `json:"id"`
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   int64     `json:"volume"`
}

// UniverseStock is one entry of the scan universe.
type UniverseStock struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	IsActive bool   `json:"is_active"`
}

// ScanResult is one signal emitted by a scanner rule for a symbol on a scan
// date. ParameterSnapshot captures the exact rule parameters so historical
// signals stay interpretable after the configuration changes.
type ScanResult struct {
	ID                uuid.UUID `json:"id"`
	RunID             uuid.UUID `json:"run_id"`
	Symbol            string    `json:"symbol"`
	ScanDate          time.Time `json:"scan_date"`
	RuleName          string    `json:"rule_name"`
	RuleVersion       string    `json:"rule_version"`
	Confidence        float64   `json:"confidence"`
	ParameterSnapshot string    `json:"parameter_snapshot"`
	ScannerVersion    string    `json:"scanner_version"`
	Metadata          string    `json:"metadata,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// ScannerRun is the audit record of one scanner execution.
type ScannerRun struct {
	ID               uuid.UUID     `json:"id"`
	RunDate          time.Time     `json:"run_date"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       *time.Time    `json:"finished_at,omitempty"`
	Mode             ExecutionMode `json:"mode"`
	StocksScanned    int           `json:"stocks_scanned"`
	SignalsGenerated int           `json:"signals_generated"`
}

// EmergencyClosure marks a date on which the exchange was unexpectedly
// closed. Rows are keyed by date.
type EmergencyClosure struct {
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// IngestReport summarizes one ingestion run for a trading date.
type IngestReport struct {
	Date           time.Time        `json:"date"`
	StocksIngested int              `json:"stocks_ingested"`
	StocksFailed   int              `json:"stocks_failed"`
	SourceStatus   DataSourceStatus `json:"source_status"`
}

// ScanReport summarizes one scan run for a trading date.
type ScanReport struct {
	Date             time.Time `json:"date"`
	StocksScanned    int       `json:"stocks_scanned"`
	SignalsGenerated int       `json:"signals_generated"`
}
