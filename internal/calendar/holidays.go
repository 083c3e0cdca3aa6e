package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/quantrail/nse-scanner/internal/domain"
)

// nseHolidays lists NSE scheduled trading holidays, per the NSE published
// calendar. Dates are yyyy-mm-dd at midnight UTC.
var nseHolidays = buildDateSet(
	// 2023
	Date(2023, time.January, 26),  // Republic Day
	Date(2023, time.March, 7),     // Holi
	Date(2023, time.March, 30),    // Ram Navami
	Date(2023, time.April, 4),     // Mahavir Jayanti
	Date(2023, time.April, 7),     // Good Friday
	Date(2023, time.April, 14),    // Dr. Baba Saheb Ambedkar Jayanti
	Date(2023, time.May, 1),       // Maharashtra Day
	Date(2023, time.June, 28),     // Bakri Id
	Date(2023, time.August, 15),   // Independence Day
	Date(2023, time.September, 19), // Ganesh Chaturthi
	Date(2023, time.October, 2),   // Mahatma Gandhi Jayanti
	Date(2023, time.October, 24),  // Dussehra
	Date(2023, time.November, 14), // Diwali-Balipratipada
	Date(2023, time.November, 27), // Gurunanak Jayanti
	Date(2023, time.December, 25), // Christmas

	// 2024
	Date(2024, time.January, 26),  // Republic Day
	Date(2024, time.March, 8),     // Mahashivratri
	Date(2024, time.March, 25),    // Holi
	Date(2024, time.March, 29),    // Good Friday
	Date(2024, time.April, 11),    // Id-Ul-Fitr
	Date(2024, time.April, 17),    // Shri Ram Navmi
	Date(2024, time.May, 1),       // Maharashtra Day
	Date(2024, time.June, 17),     // Bakri Id
	Date(2024, time.July, 17),     // Moharram
	Date(2024, time.August, 15),   // Independence Day
	Date(2024, time.October, 2),   // Mahatma Gandhi Jayanti
	Date(2024, time.November, 1),  // Diwali Laxmi Pujan
	Date(2024, time.November, 15), // Gurunanak Jayanti
	Date(2024, time.December, 25), // Christmas

	// 2025
	Date(2025, time.February, 26), // Mahashivratri
	Date(2025, time.March, 14),    // Holi
	Date(2025, time.March, 31),    // Id-Ul-Fitr
	Date(2025, time.April, 10),    // Shri Mahavir Jayanti
	Date(2025, time.April, 14),    // Dr. Baba Saheb Ambedkar Jayanti
	Date(2025, time.April, 18),    // Good Friday
	Date(2025, time.May, 1),       // Maharashtra Day
	Date(2025, time.August, 15),   // Independence Day
	Date(2025, time.August, 27),   // Ganesh Chaturthi
	Date(2025, time.October, 2),   // Mahatma Gandhi Jayanti
	Date(2025, time.October, 21),  // Diwali Laxmi Pujan
	Date(2025, time.October, 22),  // Diwali-Balipratipada
	Date(2025, time.November, 5),  // Guru Nanak Jayanti
	Date(2025, time.December, 25), // Christmas

	// 2026
	Date(2026, time.January, 26), // Republic Day
	Date(2026, time.March, 3),    // Holi
	Date(2026, time.March, 26),   // Shri Ram Navami
	Date(2026, time.March, 31),   // Shri Mahavir Jayanti
	Date(2026, time.April, 3),    // Good Friday
	Date(2026, time.April, 14),   // Dr. Baba Saheb Ambedkar Jayanti
	Date(2026, time.May, 1),      // Maharashtra Day
	Date(2026, time.June, 26),    // Muharram
	// Independence Day (Aug 15) falls on a Saturday
	Date(2026, time.October, 2),   // Mahatma Gandhi Jayanti
	Date(2026, time.October, 12),  // Dussehra
	// Diwali (Nov 8) falls on a Sunday
	Date(2026, time.November, 9),  // Diwali-Balipratipada
	Date(2026, time.November, 27), // Guru Nanak Jayanti
	Date(2026, time.December, 25), // Christmas
)

// nseSpecialSessions lists dates with out-of-schedule trading sessions such
// as Muhurat trading. None configured yet.
var nseSpecialSessions = buildDateSet()

func buildDateSet(dates ...time.Time) map[time.Time]struct{} {
	set := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// ClosureStore persists emergency market closures.
type ClosureStore interface {
	ExistsByDate(ctx context.Context, date time.Time) (bool, error)
	Create(ctx context.Context, closure *domain.EmergencyClosure) error
	DeleteByDate(ctx context.Context, date time.Time) error
}

// NSEHolidays is the HolidaySource for the National Stock Exchange of India.
// Scheduled holidays and special sessions come from static tables; emergency
// closures are persisted through the ClosureStore so they survive restarts.
type NSEHolidays struct {
	closures ClosureStore
}

// NewNSEHolidays creates the NSE holiday source.
func NewNSEHolidays(closures ClosureStore) *NSEHolidays {
	return &NSEHolidays{closures: closures}
}

var _ HolidaySource = (*NSEHolidays)(nil)

func (h *NSEHolidays) IsHoliday(date time.Time) bool {
	_, ok := nseHolidays[DateOf(date)]
	return ok
}

func (h *NSEHolidays) IsSpecialSession(date time.Time) bool {
	_, ok := nseSpecialSessions[DateOf(date)]
	return ok
}

func (h *NSEHolidays) IsEmergencyClosure(ctx context.Context, date time.Time) (bool, error) {
	exists, err := h.closures.ExistsByDate(ctx, DateOf(date))
	if err != nil {
		return false, fmt.Errorf("failed to check emergency closure: %w", err)
	}
	return exists, nil
}

// MarkEmergencyClosure persistently marks a date as an emergency market
// closure. Marking an already closed date is a no-op.
func (h *NSEHolidays) MarkEmergencyClosure(ctx context.Context, date time.Time, reason string) error {
	date = DateOf(date)
	if reason == "" {
		reason = "Unspecified"
	}
	exists, err := h.closures.ExistsByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to check emergency closure: %w", err)
	}
	if exists {
		return nil
	}
	closure := &domain.EmergencyClosure{Date: date, Reason: reason}
	if err := h.closures.Create(ctx, closure); err != nil {
		return fmt.Errorf("failed to mark emergency closure: %w", err)
	}
	return nil
}

// ClearEmergencyClosure removes a previously marked closure. Clearing a date
// that was never marked is a no-op.
func (h *NSEHolidays) ClearEmergencyClosure(ctx context.Context, date time.Time) error {
	if err := h.closures.DeleteByDate(ctx, DateOf(date)); err != nil {
		return fmt.Errorf("failed to clear emergency closure: %w", err)
	}
	return nil
}
