package core

import "time"

// MonthlyMetrics is the dashboard summary for one calendar month.
type MonthlyMetrics struct {
	PaidIncome Money
	BillsDue   Money
	Net        Money
}

// ForecastPoint is a single day's projected inflow/outflow pair.
type ForecastPoint struct {
	Date    time.Time
	Inflow  Money
	Outflow Money
}
