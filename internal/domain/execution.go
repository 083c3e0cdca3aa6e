package domain

import "time"

// ExecutionState is the durable record of ingestion and scan progress for one
// trading date. It is created lazily on first access and never deleted: it is
// the audit trail of what ran and when. The ingestion and scan tracks advance
// independently through guarded transition methods; callers must not write
// the status fields directly.
type ExecutionState struct {
	ID                int64            `json:"id"`
	TradingDate       time.Time        `json:"trading_date"`
	IngestionStatus   ExecutionStatus  `json:"ingestion_status"`
	ScanStatus        ExecutionStatus  `json:"scan_status"`
	DataSourceStatus  DataSourceStatus `json:"data_source_status"`
	ExecutionMode     ExecutionMode    `json:"execution_mode"`
	LastIngestionTime *time.Time       `json:"last_ingestion_time,omitempty"`
	LastScanTime      *time.Time       `json:"last_scan_time,omitempty"`
	StocksIngested    int              `json:"stocks_ingested"`
	SignalsGenerated  int              `json:"signals_generated"`
	ErrorMessage      string           `json:"error_message,omitempty"`
}

// NewExecutionState creates the initial state for a trading date.
func NewExecutionState(tradingDate time.Time) *ExecutionState {
	return &ExecutionState{
		TradingDate:      tradingDate,
		IngestionStatus:  ExecutionPending,
		ScanStatus:       ExecutionPending,
		DataSourceStatus: SourceUnknown,
	}
}

// HasData returns true if ingestion succeeded with at least one stock.
func (s *ExecutionState) HasData() bool {
	return s.IngestionStatus == ExecutionSuccess && s.StocksIngested > 0
}

// CanIngest returns true if an ingestion run may start: only from Pending
// (never ran) or Failed (idempotent retry). A completed ingestion is never
// re-run.
func (s *ExecutionState) CanIngest() bool {
	return s.IngestionStatus == ExecutionPending || s.IngestionStatus == ExecutionFailed
}

// CanScan returns true if a scan may start: ingestion must have succeeded
// with data, and the scan track must be in Pending or Failed.
func (s *ExecutionState) CanScan() bool {
	if !s.HasData() {
		return false
	}
	return s.ScanStatus == ExecutionPending || s.ScanStatus == ExecutionFailed
}

// StartIngestion transitions the ingestion track to InProgress.
func (s *ExecutionState) StartIngestion(mode ExecutionMode, now time.Time) {
	s.IngestionStatus = ExecutionInProgress
	s.ExecutionMode = mode
	s.LastIngestionTime = &now
}

// CompleteIngestion transitions the ingestion track to Success.
func (s *ExecutionState) CompleteIngestion(stocksIngested int, source DataSourceStatus, now time.Time) {
	s.IngestionStatus = ExecutionSuccess
	s.StocksIngested = stocksIngested
	s.DataSourceStatus = source
	s.LastIngestionTime = &now
}

// CompleteIngestionNoData transitions the ingestion track to SuccessNoData.
// The provider answered but had nothing for the date.
func (s *ExecutionState) CompleteIngestionNoData(source DataSourceStatus, now time.Time) {
	s.IngestionStatus = ExecutionSuccessNoData
	s.StocksIngested = 0
	s.DataSourceStatus = source
	s.LastIngestionTime = &now
}

// FailIngestion transitions the ingestion track to Failed.
func (s *ExecutionState) FailIngestion(errMsg string, source DataSourceStatus, now time.Time) {
	s.IngestionStatus = ExecutionFailed
	s.ErrorMessage = errMsg
	s.DataSourceStatus = source
	s.LastIngestionTime = &now
}

// StartScan transitions the scan track to InProgress.
func (s *ExecutionState) StartScan(now time.Time) {
	s.ScanStatus = ExecutionInProgress
	s.LastScanTime = &now
}

// CompleteScan transitions the scan track to Success.
func (s *ExecutionState) CompleteScan(signalsGenerated int, now time.Time) {
	s.ScanStatus = ExecutionSuccess
	s.SignalsGenerated = signalsGenerated
	s.LastScanTime = &now
}

// SkipScan transitions the scan track to Skipped with a reason.
func (s *ExecutionState) SkipScan(reason string, now time.Time) {
	s.ScanStatus = ExecutionSkipped
	s.ErrorMessage = reason
	s.LastScanTime = &now
}

// FailScan transitions the scan track to Failed.
func (s *ExecutionState) FailScan(errMsg string, now time.Time) {
	s.ScanStatus = ExecutionFailed
	s.ErrorMessage = errMsg
	s.LastScanTime = &now
}
