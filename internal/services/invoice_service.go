// Package services orchestrates domain operations across storage and
// messaging.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"flowledger/internal/core"
	"flowledger/internal/finance"
)

// InvoiceStore is the slice of storage the invoice service needs.
type InvoiceStore interface {
	CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error)
	UpdateInvoice(ctx context.Context, inv core.Invoice) error
	GetInvoice(ctx context.Context, id string) (core.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error
	ListInvoices(ctx context.Context) ([]core.Invoice, error)
	ListInvoicesByStatus(ctx context.Context, status core.InvoiceStatus) ([]core.Invoice, error)
}

// InvoiceService owns the invoice lifecycle. Totals are always
// recomputed server-side; client-supplied totals are ignored.
type InvoiceService struct {
	storage        InvoiceStore
	defaultTaxRate decimal.Decimal
}

func NewInvoiceService(storage InvoiceStore, defaultTaxRate decimal.Decimal) *InvoiceService {
	return &InvoiceService{
		storage:        storage,
		defaultTaxRate: defaultTaxRate,
	}
}

// CreateInvoice fills defaults, recomputes totals, and persists.
// A missing number is generated; a missing issued date becomes now; a
// negative tax rate falls back to the configured default.
func (s *InvoiceService) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	now := time.Now().UTC()

	if inv.Status == "" {
		inv.Status = core.StatusDraft
	}
	if inv.IssuedDate.IsZero() {
		inv.IssuedDate = now
	}
	if inv.Number == "" {
		inv.Number = generateInvoiceNumber(inv.IssuedDate)
	}
	if inv.TaxRate.IsNegative() {
		inv.TaxRate = s.defaultTaxRate
	}

	inv.Subtotal, inv.Tax, inv.Total = finance.ComputeInvoiceTotals(inv.LineItems, inv.TaxRate, inv.Discount)

	if err := inv.Validate(); err != nil {
		return core.Invoice{}, fmt.Errorf("validate invoice: %w", err)
	}

	saved, err := s.storage.CreateInvoice(ctx, inv)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}
	return saved, nil
}

// UpdateInvoice recomputes totals from the submitted line items, tax
// rate and discount, then replaces the stored aggregate.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	existing, err := s.storage.GetInvoice(ctx, inv.ID)
	if err != nil {
		return core.Invoice{}, err
	}
	inv.CreatedAt = existing.CreatedAt

	inv.Subtotal, inv.Tax, inv.Total = finance.ComputeInvoiceTotals(inv.LineItems, inv.TaxRate, inv.Discount)

	if err := inv.Validate(); err != nil {
		return core.Invoice{}, fmt.Errorf("validate invoice: %w", err)
	}

	if err := s.storage.UpdateInvoice(ctx, inv); err != nil {
		return core.Invoice{}, fmt.Errorf("update invoice: %w", err)
	}
	return inv, nil
}

// SetStatus moves an invoice between draft, sent and paid. Entering
// paid stamps PaidDate (now when the caller does not supply one);
// leaving paid clears it.
func (s *InvoiceService) SetStatus(ctx context.Context, id string, status core.InvoiceStatus, paidDate *time.Time) (core.Invoice, error) {
	inv, err := s.storage.GetInvoice(ctx, id)
	if err != nil {
		return core.Invoice{}, err
	}

	inv.Status = status
	switch status {
	case core.StatusPaid:
		if paidDate != nil {
			inv.PaidDate = paidDate
		} else if inv.PaidDate == nil {
			now := time.Now().UTC()
			inv.PaidDate = &now
		}
	case core.StatusDraft, core.StatusSent:
		inv.PaidDate = nil
	default:
		return core.Invoice{}, fmt.Errorf("status %q: %w", status, core.ErrInvalidStatus)
	}

	if err := inv.Validate(); err != nil {
		return core.Invoice{}, fmt.Errorf("validate invoice: %w", err)
	}

	if err := s.storage.UpdateInvoice(ctx, inv); err != nil {
		return core.Invoice{}, fmt.Errorf("update invoice status: %w", err)
	}
	return inv, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	return s.storage.GetInvoice(ctx, id)
}

func (s *InvoiceService) DeleteInvoice(ctx context.Context, id string) error {
	return s.storage.DeleteInvoice(ctx, id)
}

func (s *InvoiceService) ListInvoices(ctx context.Context) ([]core.Invoice, error) {
	return s.storage.ListInvoices(ctx)
}

func (s *InvoiceService) ListInvoicesByStatus(ctx context.Context, status core.InvoiceStatus) ([]core.Invoice, error) {
	return s.storage.ListInvoicesByStatus(ctx, status)
}

// generateInvoiceNumber builds numbers like INV-20250301-A4F2: the
// issue date plus a short random suffix to disambiguate same-day
// invoices.
func generateInvoiceNumber(issued time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("INV-%s-%s", issued.Format("20060102"), suffix)
}
