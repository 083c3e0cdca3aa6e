package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantrail/nse-scanner/internal/domain"
)

type memoryClosureStore struct {
	closed map[time.Time]*domain.EmergencyClosure
}

func newMemoryClosureStore() *memoryClosureStore {
	return &memoryClosureStore{closed: make(map[time.Time]*domain.EmergencyClosure)}
}

func (s *memoryClosureStore) ExistsByDate(_ context.Context, date time.Time) (bool, error) {
	_, ok := s.closed[date]
	return ok, nil
}

func (s *memoryClosureStore) Create(_ context.Context, closure *domain.EmergencyClosure) error {
	s.closed[closure.Date] = closure
	return nil
}

func (s *memoryClosureStore) DeleteByDate(_ context.Context, date time.Time) error {
	delete(s.closed, date)
	return nil
}

func newTestCalendar() (Calendar, *NSEHolidays) {
	holidays := NewNSEHolidays(newMemoryClosureStore())
	return New(holidays), holidays
}

func TestSessionClassification(t *testing.T) {
	cal, _ := newTestCalendar()
	ctx := context.Background()

	tests := []struct {
		name string
		date time.Time
		want domain.SessionType
	}{
		{"regular weekday", Date(2024, time.January, 2), domain.SessionTrading},
		{"saturday", Date(2024, time.January, 6), domain.SessionWeekend},
		{"sunday", Date(2024, time.January, 7), domain.SessionWeekend},
		{"republic day", Date(2024, time.January, 26), domain.SessionHoliday},
		{"christmas", Date(2025, time.December, 25), domain.SessionHoliday},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := cal.Session(ctx, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, session)
		})
	}
}

func TestEmergencyClosureOverridesEverything(t *testing.T) {
	cal, holidays := newTestCalendar()
	ctx := context.Background()

	// A regular trading day becomes an unexpected closure once marked.
	day := Date(2024, time.January, 2)
	require.NoError(t, holidays.MarkEmergencyClosure(ctx, day, "exchange outage"))

	session, err := cal.Session(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionUnexpectedClosure, session)

	trading, err := cal.IsTradingDay(ctx, day)
	require.NoError(t, err)
	assert.False(t, trading)

	// Closure takes precedence even over a scheduled holiday.
	holiday := Date(2024, time.January, 26)
	require.NoError(t, holidays.MarkEmergencyClosure(ctx, holiday, ""))
	session, err = cal.Session(ctx, holiday)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionUnexpectedClosure, session)

	// Clearing restores the underlying classification.
	require.NoError(t, holidays.ClearEmergencyClosure(ctx, day))
	session, err = cal.Session(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionTrading, session)
}

func TestMarkAndClearAreIdempotent(t *testing.T) {
	_, holidays := newTestCalendar()
	ctx := context.Background()
	day := Date(2024, time.March, 4)

	require.NoError(t, holidays.MarkEmergencyClosure(ctx, day, "flood"))
	require.NoError(t, holidays.MarkEmergencyClosure(ctx, day, "flood"))

	closed, err := holidays.IsEmergencyClosure(ctx, day)
	require.NoError(t, err)
	assert.True(t, closed)

	require.NoError(t, holidays.ClearEmergencyClosure(ctx, day))
	require.NoError(t, holidays.ClearEmergencyClosure(ctx, day))

	closed, err = holidays.IsEmergencyClosure(ctx, day)
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestNextTradingDaySkipsWeekendsAndHolidays(t *testing.T) {
	cal, _ := newTestCalendar()
	ctx := context.Background()

	// Friday 2024-01-05 -> Monday 2024-01-08.
	next, err := cal.NextTradingDay(ctx, Date(2024, time.January, 5))
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.January, 8), next)

	// Thursday 2024-01-25 -> Friday is Republic Day -> Monday 2024-01-29.
	next, err = cal.NextTradingDay(ctx, Date(2024, time.January, 25))
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.January, 29), next)
}

func TestPreviousTradingDay(t *testing.T) {
	cal, _ := newTestCalendar()
	ctx := context.Background()

	// Monday 2024-01-29 -> Thursday 2024-01-25 (Friday was Republic Day).
	prev, err := cal.PreviousTradingDay(ctx, Date(2024, time.January, 29))
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.January, 25), prev)
}

func TestAddTradingDays(t *testing.T) {
	cal, _ := newTestCalendar()
	ctx := context.Background()

	// Five trading days from Monday 2024-01-01 spans the first full week.
	got, err := cal.AddTradingDays(ctx, Date(2024, time.January, 1), 5)
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.January, 8), got)

	// Negative counts walk backward.
	got, err = cal.AddTradingDays(ctx, Date(2024, time.January, 8), -5)
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.January, 1), got)

	// Zero on a trading day is identity.
	got, err = cal.AddTradingDays(ctx, Date(2024, time.January, 2), 0)
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.January, 2), got)
}

func TestAddTradingDaysZeroOnNonTradingDay(t *testing.T) {
	cal, _ := newTestCalendar()

	_, err := cal.AddTradingDays(context.Background(), Date(2024, time.January, 6), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	var ntd domain.NonTradingDayError
	assert.True(t, errors.As(err, &ntd))
}

func TestAddTradingDaysBounds(t *testing.T) {
	cal, _ := newTestCalendar()

	_, err := cal.AddTradingDays(context.Background(), Date(2024, time.January, 2), maxAddTradingDays+1)
	assert.ErrorIs(t, err, domain.ErrCalendarBounds)

	_, err = cal.AddTradingDays(context.Background(), Date(2024, time.January, 2), -(maxAddTradingDays + 1))
	assert.ErrorIs(t, err, domain.ErrCalendarBounds)
}

func TestTradingDaysBetween(t *testing.T) {
	cal, _ := newTestCalendar()
	ctx := context.Background()

	// (Mon Jan 1, Mon Jan 8] covers Tue-Fri plus Monday: 5 trading days.
	count, err := cal.TradingDaysBetween(ctx, Date(2024, time.January, 1), Date(2024, time.January, 8))
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// Reversed endpoints negate the count.
	count, err = cal.TradingDaysBetween(ctx, Date(2024, time.January, 8), Date(2024, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, -5, count)

	// Equal endpoints count zero.
	count, err = cal.TradingDaysBetween(ctx, Date(2024, time.January, 8), Date(2024, time.January, 8))
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// A pure weekend span counts zero.
	count, err = cal.TradingDaysBetween(ctx, Date(2024, time.January, 5), Date(2024, time.January, 7))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestTradingDaysBetweenBounds(t *testing.T) {
	cal, _ := newTestCalendar()

	_, err := cal.TradingDaysBetween(context.Background(), Date(1900, time.January, 1), Date(2024, time.January, 1))
	assert.ErrorIs(t, err, domain.ErrCalendarBounds)
}

func TestDateOfNormalizes(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	stamp := time.Date(2024, time.June, 3, 15, 30, 12, 0, ist)
	assert.Equal(t, Date(2024, time.June, 3), DateOf(stamp))
}
