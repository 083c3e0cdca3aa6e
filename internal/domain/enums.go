// Package domain contains the core domain models for the scanner backend.
package domain

// SessionType classifies a calendar date for the exchange.
type SessionType string

const (
	SessionTrading           SessionType = "trading"
	SessionSpecialSession    SessionType = "special_session"
	SessionHoliday           SessionType = "holiday"
	SessionUnexpectedClosure SessionType = "unexpected_closure"
	SessionWeekend           SessionType = "weekend"
)

// IsTradingSession returns true if trading occurs on this session type.
func (s SessionType) IsTradingSession() bool {
	return s == SessionTrading || s == SessionSpecialSession
}

// String returns the string representation of the session type.
func (s SessionType) String() string {
	return string(s)
}

// ExecutionStatus represents the status of one track (ingestion or scan)
// of a trading date's execution state.
type ExecutionStatus string

const (
	ExecutionPending       ExecutionStatus = "pending"
	ExecutionInProgress    ExecutionStatus = "in_progress"
	ExecutionSuccess       ExecutionStatus = "success"
	ExecutionSuccessNoData ExecutionStatus = "success_no_data"
	ExecutionFailed        ExecutionStatus = "failed"
	ExecutionSkipped       ExecutionStatus = "skipped"
)

// IsValid returns true if the status is a valid ExecutionStatus.
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case ExecutionPending, ExecutionInProgress, ExecutionSuccess,
		ExecutionSuccessNoData, ExecutionFailed, ExecutionSkipped:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s ExecutionStatus) String() string {
	return string(s)
}

// ExecutionStatusFromString converts a string to ExecutionStatus.
func ExecutionStatusFromString(s string) ExecutionStatus {
	status := ExecutionStatus(s)
	if status.IsValid() {
		return status
	}
	return ExecutionPending
}

// DataSourceStatus classifies the health of the market data provider as
// observed during an ingestion run.
type DataSourceStatus string

const (
	SourceHealthy     DataSourceStatus = "healthy"
	SourceNoData      DataSourceStatus = "no_data"
	SourceDegraded    DataSourceStatus = "degraded"
	SourceUnavailable DataSourceStatus = "unavailable"
	SourceUnknown     DataSourceStatus = "unknown"
)

// IsValid returns true if the status is a valid DataSourceStatus.
func (s DataSourceStatus) IsValid() bool {
	switch s {
	case SourceHealthy, SourceNoData, SourceDegraded, SourceUnavailable, SourceUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s DataSourceStatus) String() string {
	return string(s)
}

// DataSourceStatusFromString converts a string to DataSourceStatus.
func DataSourceStatusFromString(s string) DataSourceStatus {
	status := DataSourceStatus(s)
	if status.IsValid() {
		return status
	}
	return SourceUnknown
}

// ExecutionMode records what triggered an ingestion run.
type ExecutionMode string

const (
	ModeManual    ExecutionMode = "manual"
	ModeScheduled ExecutionMode = "scheduled"
	ModeAPI       ExecutionMode = "api"
)

// IsValid returns true if the mode is a valid ExecutionMode.
func (m ExecutionMode) IsValid() bool {
	switch m {
	case ModeManual, ModeScheduled, ModeAPI:
		return true
	default:
		return false
	}
}

// String returns the string representation of the mode.
func (m ExecutionMode) String() string {
	return string(m)
}

// ExecutionModeFromString converts a string to ExecutionMode.
func ExecutionModeFromString(s string) ExecutionMode {
	mode := ExecutionMode(s)
	if mode.IsValid() {
		return mode
	}
	return ModeManual
}
