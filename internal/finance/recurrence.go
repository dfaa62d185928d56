package finance

import (
	"fmt"
	"time"

	"flowledger/internal/core"
)

// DueDateAdvancer is the strategy interface for advancing a due date by
// one cadence interval. Each implementation encapsulates the calendar
// rules for a specific cadence.
type DueDateAdvancer interface {
	// Advance returns the next due date after the given one.
	Advance(due time.Time) time.Time
}

// WeeklyAdvancer implements DueDateAdvancer for weekly subscriptions.
type WeeklyAdvancer struct{}

// Advance moves the due date forward by 7 calendar days.
func (WeeklyAdvancer) Advance(due time.Time) time.Time {
	return due.AddDate(0, 0, 7)
}

// MonthlyAdvancer implements DueDateAdvancer for monthly subscriptions.
type MonthlyAdvancer struct{}

// Advance moves the due date forward by one calendar month, keeping the
// day of month. When the target month is shorter, the day clamps to the
// month's last valid day (Jan 31 -> Feb 28).
func (MonthlyAdvancer) Advance(due time.Time) time.Time {
	return addMonthsClamped(due, 1)
}

// QuarterlyAdvancer implements DueDateAdvancer for quarterly subscriptions.
type QuarterlyAdvancer struct{}

// Advance moves the due date forward by three calendar months with the
// same day-of-month clamping as monthly.
func (QuarterlyAdvancer) Advance(due time.Time) time.Time {
	return addMonthsClamped(due, 3)
}

// YearlyAdvancer implements DueDateAdvancer for yearly subscriptions.
type YearlyAdvancer struct{}

// Advance moves the due date forward by one calendar year. Feb 29 clamps
// to Feb 28 when the target year is not a leap year.
func (YearlyAdvancer) Advance(due time.Time) time.Time {
	return addMonthsClamped(due, 12)
}

// addMonthsClamped adds whole calendar months without the normalization
// time.AddDate performs (which would turn Jan 31 + 1 month into Mar 3).
// The day of month clamps to the last valid day of the target month.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	total := int(month) - 1 + months
	year += total / 12
	month = time.Month(total%12 + 1)

	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// cadenceAdvancers maps cadences to their advancers. The registry keeps
// lookup O(1) and lets new cadences slot in without touching callers.
var cadenceAdvancers = map[core.Cadence]DueDateAdvancer{
	core.Weekly:    WeeklyAdvancer{},
	core.Monthly:   MonthlyAdvancer{},
	core.Quarterly: QuarterlyAdvancer{},
	core.Yearly:    YearlyAdvancer{},
}

// GetAdvancer returns the advancer for a cadence, or an error for an
// unknown cadence. Callers treat the error as "cannot compute date" and
// fall back; a plausible-looking wrong date is never fabricated.
func GetAdvancer(cadence core.Cadence) (DueDateAdvancer, error) {
	adv, ok := cadenceAdvancers[cadence]
	if !ok {
		return nil, fmt.Errorf("unknown cadence: %s: %w", cadence, core.ErrInvalidCadence)
	}
	return adv, nil
}

// AdvanceDueDate computes the next due date for a subscription's cadence.
// Pure function of (due, cadence); it mutates nothing.
func AdvanceDueDate(due time.Time, cadence core.Cadence) (time.Time, error) {
	adv, err := GetAdvancer(cadence)
	if err != nil {
		return time.Time{}, err
	}
	return adv.Advance(due), nil
}
