// Package calendar provides the exchange trading calendar: session
// classification and trading-day arithmetic.
package calendar

import (
	"context"
	"time"

	"github.com/quantrail/nse-scanner/internal/domain"
)

// Walk bounds. A scan past these limits means the holiday configuration is
// corrupt, so the walk fails fast instead of looping unboundedly.
const (
	maxScanDays       = 365 * 10  // next/previous trading day search horizon
	maxAddTradingDays = 252 * 100 // ~100 years of trading days
	maxBetweenDays    = 365 * 100
)

// Calendar classifies dates and performs trading-day arithmetic.
type Calendar interface {
	// Session returns the session classification for a date.
	Session(ctx context.Context, date time.Time) (domain.SessionType, error)

	// IsTradingDay returns true if the date is a regular or special session.
	IsTradingDay(ctx context.Context, date time.Time) (bool, error)

	// NextTradingDay returns the first trading day strictly after date.
	NextTradingDay(ctx context.Context, date time.Time) (time.Time, error)

	// PreviousTradingDay returns the first trading day strictly before date.
	PreviousTradingDay(ctx context.Context, date time.Time) (time.Time, error)

	// AddTradingDays walks n trading days forward (n>0) or backward (n<0).
	// n=0 requires date to already be a trading day and returns it unchanged;
	// a zero-day add on a non-trading day is a caller error, not a snap to
	// the nearest session.
	AddTradingDays(ctx context.Context, date time.Time, n int) (time.Time, error)

	// TradingDaysBetween counts trading days in (startExclusive, endInclusive].
	// The count is negated when end precedes start, so
	// TradingDaysBetween(a,b) == -TradingDaysBetween(b,a) for a != b.
	TradingDaysBetween(ctx context.Context, startExclusive, endInclusive time.Time) (int, error)
}

// HolidaySource answers holiday, special-session and emergency-closure
// queries for single dates.
type HolidaySource interface {
	IsHoliday(date time.Time) bool
	IsSpecialSession(date time.Time) bool
	IsEmergencyClosure(ctx context.Context, date time.Time) (bool, error)
}

type defaultCalendar struct {
	holidays HolidaySource
}

// New creates a Calendar backed by the given holiday source.
func New(holidays HolidaySource) Calendar {
	return &defaultCalendar{holidays: holidays}
}

// Session classifies a date. Precedence, most specific first: dynamic
// emergency closure, special session, scheduled holiday, weekend, trading.
func (c *defaultCalendar) Session(ctx context.Context, date time.Time) (domain.SessionType, error) {
	date = DateOf(date)

	closed, err := c.holidays.IsEmergencyClosure(ctx, date)
	if err != nil {
		return "", err
	}
	if closed {
		return domain.SessionUnexpectedClosure, nil
	}
	if c.holidays.IsSpecialSession(date) {
		return domain.SessionSpecialSession, nil
	}
	if c.holidays.IsHoliday(date) {
		return domain.SessionHoliday, nil
	}
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return domain.SessionWeekend, nil
	}
	return domain.SessionTrading, nil
}

func (c *defaultCalendar) IsTradingDay(ctx context.Context, date time.Time) (bool, error) {
	session, err := c.Session(ctx, date)
	if err != nil {
		return false, err
	}
	return session.IsTradingSession(), nil
}

func (c *defaultCalendar) NextTradingDay(ctx context.Context, date time.Time) (time.Time, error) {
	return c.step(ctx, DateOf(date), 1, "next trading day")
}

func (c *defaultCalendar) PreviousTradingDay(ctx context.Context, date time.Time) (time.Time, error) {
	return c.step(ctx, DateOf(date), -1, "previous trading day")
}

// step walks one calendar day at a time until it finds a trading day.
func (c *defaultCalendar) step(ctx context.Context, date time.Time, dir int, op string) (time.Time, error) {
	current := date
	for i := 0; i < maxScanDays; i++ {
		current = current.AddDate(0, 0, dir)
		trading, err := c.IsTradingDay(ctx, current)
		if err != nil {
			return time.Time{}, err
		}
		if trading {
			return current, nil
		}
	}
	return time.Time{}, domain.CalendarBoundsError{Op: op, Date: date}
}

func (c *defaultCalendar) AddTradingDays(ctx context.Context, date time.Time, n int) (time.Time, error) {
	date = DateOf(date)

	if n == 0 {
		trading, err := c.IsTradingDay(ctx, date)
		if err != nil {
			return time.Time{}, err
		}
		if !trading {
			return time.Time{}, domain.NonTradingDayError{Date: date}
		}
		return date, nil
	}

	abs := n
	if abs < 0 {
		abs = -abs
	}
	if abs > maxAddTradingDays {
		return time.Time{}, domain.CalendarBoundsError{Op: "add trading days", Date: date}
	}

	step := c.NextTradingDay
	if n < 0 {
		step = c.PreviousTradingDay
	}

	result := date
	for i := 0; i < abs; i++ {
		next, err := step(ctx, result)
		if err != nil {
			return time.Time{}, err
		}
		result = next
	}
	return result, nil
}

func (c *defaultCalendar) TradingDaysBetween(ctx context.Context, startExclusive, endInclusive time.Time) (int, error) {
	start := DateOf(startExclusive)
	end := DateOf(endInclusive)

	if start.Equal(end) {
		return 0, nil
	}

	diff := end.Sub(start) / (24 * time.Hour)
	if diff < 0 {
		diff = -diff
	}
	if diff > maxBetweenDays {
		return 0, domain.CalendarBoundsError{Op: "trading days between", Date: start}
	}

	if end.Before(start) {
		count, err := c.TradingDaysBetween(ctx, end, start)
		if err != nil {
			return 0, err
		}
		return -count, nil
	}

	count := 0
	for current := start.AddDate(0, 0, 1); !current.After(end); current = current.AddDate(0, 0, 1) {
		trading, err := c.IsTradingDay(ctx, current)
		if err != nil {
			return 0, err
		}
		if trading {
			count++
		}
	}
	return count, nil
}

// DateOf truncates a timestamp to its calendar date at midnight UTC. All
// dates in the system are normalized through this before comparison or
// storage.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a normalized calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
