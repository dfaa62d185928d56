package finance

import (
	"time"

	"flowledger/internal/core"
)

// ForecastDays is the length of the cash-flow projection window.
const ForecastDays = 30

const dayKeyLayout = "2006-01-02"

// MonthBounds returns the first and last calendar day of now's month.
// Both bounds are at midnight in now's location; range checks compare
// calendar days, so any time of day on the last day is still inside.
func MonthBounds(now time.Time) (start, end time.Time) {
	year, month, _ := now.Date()
	start = time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	end = start.AddDate(0, 1, -1)
	return start, end
}

// StartOfDay truncates a timestamp to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// dayInRange reports whether t's calendar day falls inside [start, end].
func dayInRange(t, start, end time.Time) bool {
	d := StartOfDay(t)
	return !d.Before(StartOfDay(start)) && !d.After(StartOfDay(end))
}

// ComputeMonthlyMetrics aggregates the current month's cash position:
// income from invoices paid this month, bills from active subscriptions
// due this month, and their difference.
//
// Paused subscriptions never contribute to BillsDue, regardless of the
// set the caller supplies. Read-only and idempotent.
func ComputeMonthlyMetrics(now time.Time, paidInvoices []core.Invoice, subscriptions []core.Subscription) core.MonthlyMetrics {
	start, end := MonthBounds(now)

	paidIncome := core.ZeroMoney()
	for _, inv := range paidInvoices {
		if inv.Status != core.StatusPaid || inv.PaidDate == nil {
			continue
		}
		if dayInRange(*inv.PaidDate, start, end) {
			paidIncome = paidIncome.Add(inv.Total)
		}
	}

	billsDue := core.ZeroMoney()
	for _, sub := range subscriptions {
		if sub.Paused {
			continue
		}
		if dayInRange(sub.NextDueDate, start, end) {
			billsDue = billsDue.Add(sub.Amount)
		}
	}

	return core.MonthlyMetrics{
		PaidIncome: paidIncome,
		BillsDue:   billsDue,
		Net:        paidIncome.Sub(billsDue),
	}
}

// ComputeForecast projects the next 30 days of cash flow starting at
// today (truncated to start of day). The result always holds exactly
// ForecastDays points in ascending date order, one per consecutive
// calendar day, with zero-valued points where nothing falls due.
//
// Inflow on a day is the total of sent invoices whose due date falls on
// that calendar day. Outflow is the amount of subscriptions due that
// day; paused subscriptions are included here, unlike in the monthly
// billsDue figure, matching the product's dashboard behavior.
//
// Invoices and subscriptions are indexed by calendar day up front so the
// scan is linear in the collection sizes rather than days x size; the
// observable result is identical to the direct per-day filter.
func ComputeForecast(today time.Time, sentInvoices []core.Invoice, subscriptions []core.Subscription) []core.ForecastPoint {
	day0 := StartOfDay(today)

	inflowByDay := make(map[string]core.Money, len(sentInvoices))
	for _, inv := range sentInvoices {
		if inv.Status != core.StatusSent || inv.DueDate == nil {
			continue
		}
		key := inv.DueDate.Format(dayKeyLayout)
		inflowByDay[key] = inflowByDay[key].Add(inv.Total)
	}

	outflowByDay := make(map[string]core.Money, len(subscriptions))
	for _, sub := range subscriptions {
		key := sub.NextDueDate.Format(dayKeyLayout)
		outflowByDay[key] = outflowByDay[key].Add(sub.Amount)
	}

	points := make([]core.ForecastPoint, 0, ForecastDays)
	for offset := 0; offset < ForecastDays; offset++ {
		date := day0.AddDate(0, 0, offset)
		key := date.Format(dayKeyLayout)
		points = append(points, core.ForecastPoint{
			Date:    date,
			Inflow:  inflowByDay[key],
			Outflow: outflowByDay[key],
		})
	}
	return points
}
