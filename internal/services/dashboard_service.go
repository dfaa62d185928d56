package services

import (
	"context"
	"fmt"
	"time"

	"flowledger/internal/core"
	"flowledger/internal/finance"
)

// DashboardStore is the slice of storage the dashboard needs.
type DashboardStore interface {
	ListInvoicesByStatus(ctx context.Context, status core.InvoiceStatus) ([]core.Invoice, error)
	ListSubscriptions(ctx context.Context) ([]core.Subscription, error)
}

// DashboardService assembles the read-only monthly metrics and the
// 30-day cash-flow forecast.
type DashboardService struct {
	storage DashboardStore
}

func NewDashboardService(storage DashboardStore) *DashboardService {
	return &DashboardService{storage: storage}
}

// MonthlyMetrics returns the current month's paid income, bills due and
// net position.
func (s *DashboardService) MonthlyMetrics(ctx context.Context, now time.Time) (core.MonthlyMetrics, error) {
	paid, err := s.storage.ListInvoicesByStatus(ctx, core.StatusPaid)
	if err != nil {
		return core.MonthlyMetrics{}, fmt.Errorf("list paid invoices: %w", err)
	}

	subs, err := s.storage.ListSubscriptions(ctx)
	if err != nil {
		return core.MonthlyMetrics{}, fmt.Errorf("list subscriptions: %w", err)
	}

	return finance.ComputeMonthlyMetrics(now, paid, subs), nil
}

// Forecast projects the next 30 days of cash flow. Paused
// subscriptions stay in the projection: the dashboard shows what the
// commitments would cost if everything resumed.
func (s *DashboardService) Forecast(ctx context.Context, today time.Time) ([]core.ForecastPoint, error) {
	sent, err := s.storage.ListInvoicesByStatus(ctx, core.StatusSent)
	if err != nil {
		return nil, fmt.Errorf("list sent invoices: %w", err)
	}

	subs, err := s.storage.ListSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	return finance.ComputeForecast(today, sent, subs), nil
}
