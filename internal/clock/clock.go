// Package clock is the single time authority for the scanner. Every
// component that needs "today" or "now" goes through a Clock; nothing else
// in the system reads the wall clock directly.
package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantrail/nse-scanner/internal/calendar"
	"github.com/quantrail/nse-scanner/internal/domain"
)

// simulationSessionTime is the fixed intraday time reported while
// simulating: just after market open.
var simulationSessionTime = struct{ hour, minute int }{9, 15}

// Clock provides the current date and time in the exchange timezone.
type Clock interface {
	// Today returns the current calendar date, normalized to midnight UTC.
	Today(ctx context.Context) (time.Time, error)

	// Now returns the current date and time in the exchange timezone.
	Now(ctx context.Context) (time.Time, error)

	// Zone returns the exchange timezone.
	Zone() *time.Location
}

// SystemClock reads the operating system clock in the exchange timezone.
type SystemClock struct {
	zone *time.Location
}

// NewSystemClock creates a production clock for the given exchange timezone.
func NewSystemClock(zone *time.Location) *SystemClock {
	return &SystemClock{zone: zone}
}

var _ Clock = (*SystemClock)(nil)

func (c *SystemClock) Today(_ context.Context) (time.Time, error) {
	return calendar.DateOf(time.Now().In(c.zone)), nil
}

func (c *SystemClock) Now(_ context.Context) (time.Time, error) {
	return time.Now().In(c.zone), nil
}

func (c *SystemClock) Zone() *time.Location {
	return c.zone
}

// StateReader loads the persisted simulation state.
type StateReader interface {
	Get(ctx context.Context) (*domain.SimulationState, error)
}

// SimulationClock derives "today" from the persisted simulation state:
// base date plus trading offset, resolved through the trading calendar.
// The derived date is cached so repeated reads do not hit the database;
// Invalidate must be called after every simulation state change.
type SimulationClock struct {
	zone  *time.Location
	state StateReader
	cal   calendar.Calendar

	mu           sync.RWMutex
	cachedOffset *int
	cachedToday  time.Time
}

// NewSimulationClock creates a simulation clock.
func NewSimulationClock(zone *time.Location, state StateReader, cal calendar.Calendar) *SimulationClock {
	return &SimulationClock{zone: zone, state: state, cal: cal}
}

var _ Clock = (*SimulationClock)(nil)

func (c *SimulationClock) Today(ctx context.Context) (time.Time, error) {
	c.mu.RLock()
	if c.cachedOffset != nil {
		today := c.cachedToday
		c.mu.RUnlock()
		return today, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedOffset != nil {
		return c.cachedToday, nil
	}

	state, err := c.state.Get(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load simulation state: %w", err)
	}
	today, err := c.cal.AddTradingDays(ctx, state.BaseDate, state.TradingOffset)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to resolve simulation date: %w", err)
	}

	offset := state.TradingOffset
	c.cachedOffset = &offset
	c.cachedToday = today
	return today, nil
}

// Now returns the simulated date at the fixed session time in the exchange
// timezone.
func (c *SimulationClock) Now(ctx context.Context) (time.Time, error) {
	today, err := c.Today(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(today.Year(), today.Month(), today.Day(),
		simulationSessionTime.hour, simulationSessionTime.minute, 0, 0, c.zone), nil
}

func (c *SimulationClock) Zone() *time.Location {
	return c.zone
}

// Invalidate drops the cached simulation date. Must be called after any
// change to the persisted simulation state, or Today keeps serving the
// stale date.
func (c *SimulationClock) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedOffset = nil
	c.cachedToday = time.Time{}
}
