package domain

import "time"

// SimulationStateID is the fixed primary key of the singleton
// simulation_state row.
const SimulationStateID = 1

// SimulationState is the singleton record anchoring the simulated timeline.
// The current simulated date is never stored: it is always derived as
// baseDate advanced by tradingOffset trading days, so it cannot drift onto a
// non-trading day. Version is the optimistic-concurrency token; IsCycling
// plus CyclingStartedAt form the advisory lock held for the duration of a
// multi-day batch.
type SimulationState struct {
	ID               int
	Version          int
	BaseDate         time.Time
	TradingOffset    int
	IsCycling        bool
	CyclingStartedAt *time.Time
}

// NewSimulationState creates the initial state anchored at baseDate.
func NewSimulationState(baseDate time.Time) *SimulationState {
	return &SimulationState{
		ID:            SimulationStateID,
		BaseDate:      baseDate,
		TradingOffset: 0,
	}
}

// CycleResult records the outcome of one simulated trading day.
type CycleResult struct {
	TradingOffset    int           `json:"trading_offset"`
	CycleDate        time.Time     `json:"cycle_date"`
	StocksIngested   int           `json:"stocks_ingested"`
	SignalsGenerated int           `json:"signals_generated"`
	Duration         time.Duration `json:"duration_ms"`
	Success          bool          `json:"success"`
	FailureReason    string        `json:"failure_reason,omitempty"`
}

// BatchResult aggregates the per-day results of one simulation batch.
// CycleResults always enumerates exactly the days that were attempted:
// every completed day plus, when the batch aborted, the failed day with
// its failure reason. Days after the failure are never attempted.
type BatchResult struct {
	CyclesRequested int           `json:"cycles_requested"`
	CyclesCompleted int           `json:"cycles_completed"`
	TotalDuration   time.Duration `json:"total_duration_ms"`
	CycleResults    []CycleResult `json:"cycle_results"`
}

// SimulationStatus is the externally visible snapshot of the simulation.
type SimulationStatus struct {
	BaseDate      time.Time `json:"base_date"`
	TradingOffset int       `json:"trading_offset"`
	IsCycling     bool      `json:"is_cycling"`
	CurrentDate   time.Time `json:"current_date"`
}
