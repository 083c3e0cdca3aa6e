// Package events provides event publishing for the scanner pipeline.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/quantrail/nse-scanner/internal/domain"
)

// Routing keys for events.
const (
	RoutingKeyIngestionCompleted = "ingestion.completed"
	RoutingKeyIngestionFailed    = "ingestion.failed"
	RoutingKeyScanCompleted      = "scan.completed"
	RoutingKeySignalGenerated    = "signal.generated"
	RoutingKeyCycleCompleted     = "cycle.completed"
	RoutingKeyCycleFailed        = "cycle.failed"
	RoutingKeySimulationReset    = "simulation.reset"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// NewBaseEvent creates a new BaseEvent with auto-generated event_id.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
		Source:    "nse-scanner",
	}
}

// IngestionCompletedEvent is published when an ingestion run finishes.
type IngestionCompletedEvent struct {
	BaseEvent
	TradingDate    string `json:"trading_date"`
	StocksIngested int    `json:"stocks_ingested"`
	StocksFailed   int    `json:"stocks_failed"`
	SourceStatus   string `json:"source_status"`
}

// NewIngestionCompletedEvent creates a new IngestionCompletedEvent.
func NewIngestionCompletedEvent(report *domain.IngestReport) *IngestionCompletedEvent {
	return &IngestionCompletedEvent{
		BaseEvent:      NewBaseEvent(RoutingKeyIngestionCompleted),
		TradingDate:    report.Date.Format("2006-01-02"),
		StocksIngested: report.StocksIngested,
		StocksFailed:   report.StocksFailed,
		SourceStatus:   report.SourceStatus.String(),
	}
}

// IngestionFailedEvent is published when an ingestion run fails outright.
type IngestionFailedEvent struct {
	BaseEvent
	TradingDate string `json:"trading_date"`
	Reason      string `json:"reason"`
}

// NewIngestionFailedEvent creates a new IngestionFailedEvent.
func NewIngestionFailedEvent(date time.Time, reason string) *IngestionFailedEvent {
	return &IngestionFailedEvent{
		BaseEvent:   NewBaseEvent(RoutingKeyIngestionFailed),
		TradingDate: date.Format("2006-01-02"),
		Reason:      reason,
	}
}

// ScanCompletedEvent is published when a scan run finishes.
type ScanCompletedEvent struct {
	BaseEvent
	TradingDate      string `json:"trading_date"`
	StocksScanned    int    `json:"stocks_scanned"`
	SignalsGenerated int    `json:"signals_generated"`
}

// NewScanCompletedEvent creates a new ScanCompletedEvent.
func NewScanCompletedEvent(report *domain.ScanReport) *ScanCompletedEvent {
	return &ScanCompletedEvent{
		BaseEvent:        NewBaseEvent(RoutingKeyScanCompleted),
		TradingDate:      report.Date.Format("2006-01-02"),
		StocksScanned:    report.StocksScanned,
		SignalsGenerated: report.SignalsGenerated,
	}
}

// SignalGeneratedEvent is published for each signal a scan emits.
type SignalGeneratedEvent struct {
	BaseEvent
	Symbol     string  `json:"symbol"`
	ScanDate   string  `json:"scan_date"`
	RuleName   string  `json:"rule_name"`
	Confidence float64 `json:"confidence"`
}

// NewSignalGeneratedEvent creates a new SignalGeneratedEvent.
func NewSignalGeneratedEvent(result *domain.ScanResult) *SignalGeneratedEvent {
	return &SignalGeneratedEvent{
		BaseEvent:  NewBaseEvent(RoutingKeySignalGenerated),
		Symbol:     result.Symbol,
		ScanDate:   result.ScanDate.Format("2006-01-02"),
		RuleName:   result.RuleName,
		Confidence: result.Confidence,
	}
}

// CycleCompletedEvent is published after each completed simulated day.
type CycleCompletedEvent struct {
	BaseEvent
	CycleDate        string `json:"cycle_date"`
	TradingOffset    int    `json:"trading_offset"`
	StocksIngested   int    `json:"stocks_ingested"`
	SignalsGenerated int    `json:"signals_generated"`
	DurationMs       int64  `json:"duration_ms"`
}

// NewCycleCompletedEvent creates a new CycleCompletedEvent.
func NewCycleCompletedEvent(result *domain.CycleResult) *CycleCompletedEvent {
	return &CycleCompletedEvent{
		BaseEvent:        NewBaseEvent(RoutingKeyCycleCompleted),
		CycleDate:        result.CycleDate.Format("2006-01-02"),
		TradingOffset:    result.TradingOffset,
		StocksIngested:   result.StocksIngested,
		SignalsGenerated: result.SignalsGenerated,
		DurationMs:       result.Duration.Milliseconds(),
	}
}

// CycleFailedEvent is published when a simulated day aborts its batch.
type CycleFailedEvent struct {
	BaseEvent
	CycleDate string `json:"cycle_date"`
	Reason    string `json:"reason"`
}

// NewCycleFailedEvent creates a new CycleFailedEvent.
func NewCycleFailedEvent(result *domain.CycleResult) *CycleFailedEvent {
	return &CycleFailedEvent{
		BaseEvent: NewBaseEvent(RoutingKeyCycleFailed),
		CycleDate: result.CycleDate.Format("2006-01-02"),
		Reason:    result.FailureReason,
	}
}

// SimulationResetEvent is published when the simulated timeline rewinds.
type SimulationResetEvent struct {
	BaseEvent
	BaseDate string `json:"base_date"`
}

// NewSimulationResetEvent creates a new SimulationResetEvent.
func NewSimulationResetEvent(baseDate time.Time) *SimulationResetEvent {
	return &SimulationResetEvent{
		BaseEvent: NewBaseEvent(RoutingKeySimulationReset),
		BaseDate:  baseDate.Format("2006-01-02"),
	}
}
