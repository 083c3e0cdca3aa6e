package domain

import (
	"errors"
	"fmt"
	"time"
)

// Common domain errors.
var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidArgument is returned when input validation fails.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState is returned when an operation is attempted against a
	// state that does not permit it.
	ErrInvalidState = errors.New("invalid state")

	// ErrConcurrencyConflict is returned when an optimistic-lock update loses
	// a race and local retries are exhausted.
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")

	// ErrProviderUnavailable is returned when the market data provider cannot
	// be reached: circuit open or retries exhausted.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrCalendarBounds is returned when a trading-day walk exceeds the
	// safety horizon. Always fatal: it signals a corrupt holiday set.
	ErrCalendarBounds = errors.New("calendar bounds exceeded")

	// ErrCyclingInProgress is returned when a simulation batch is requested
	// while another batch holds the cycling lock.
	ErrCyclingInProgress = errors.New("simulation cycle already in progress")
)

// NotFoundError wraps ErrNotFound with additional context.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e NotFoundError) Error() string {
	return e.Resource + " not found: " + e.Key
}

func (e NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, key string) NotFoundError {
	return NotFoundError{Resource: resource, Key: key}
}

// NonTradingDayError wraps ErrInvalidArgument for operations that require a
// trading day.
type NonTradingDayError struct {
	Date time.Time
}

func (e NonTradingDayError) Error() string {
	return fmt.Sprintf("date %s is not a trading day", e.Date.Format("2006-01-02"))
}

func (e NonTradingDayError) Unwrap() error {
	return ErrInvalidArgument
}

// CalendarBoundsError wraps ErrCalendarBounds with the offending operation.
type CalendarBoundsError struct {
	Op   string
	Date time.Time
}

func (e CalendarBoundsError) Error() string {
	return fmt.Sprintf("%s from %s exceeded the calendar safety horizon", e.Op, e.Date.Format("2006-01-02"))
}

func (e CalendarBoundsError) Unwrap() error {
	return ErrCalendarBounds
}
