package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowledger/internal/core"
	"flowledger/internal/storage"
)

func testInvoice() core.Invoice {
	return core.Invoice{
		ClientName: "Acme Corp",
		LineItems: []core.LineItem{
			{Description: "Consulting", Quantity: 2, UnitPrice: core.MustMoney("50.00")},
		},
		TaxRate:  decimal.RequireFromString("0.18"),
		Discount: core.MustMoney("10"),
	}
}

func TestInvoiceService_CreateInvoice_ComputesTotalsAndDefaults(t *testing.T) {
	store := newFakeStore()
	svc := NewInvoiceService(store, decimal.RequireFromString("0.22"))

	saved, err := svc.CreateInvoice(context.Background(), testInvoice())
	require.NoError(t, err)

	assert.Equal(t, core.StatusDraft, saved.Status)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.IssuedDate.IsZero())
	assert.Equal(t, "100", saved.Subtotal.String())
	assert.Equal(t, "16.2", saved.Tax.String())
	assert.Equal(t, "106.2", saved.Total.String())
}

func TestInvoiceService_CreateInvoice_GeneratesNumber(t *testing.T) {
	store := newFakeStore()
	svc := NewInvoiceService(store, decimal.Zero)

	inv := testInvoice()
	inv.IssuedDate = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	saved, err := svc.CreateInvoice(context.Background(), inv)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^INV-20250301-[0-9A-F]{4}$`), saved.Number)
}

func TestInvoiceService_CreateInvoice_KeepsExplicitNumber(t *testing.T) {
	store := newFakeStore()
	svc := NewInvoiceService(store, decimal.Zero)

	inv := testInvoice()
	inv.Number = "INV-CUSTOM-0001"

	saved, err := svc.CreateInvoice(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "INV-CUSTOM-0001", saved.Number)
}

func TestInvoiceService_CreateInvoice_NegativeTaxRateFallsBackToDefault(t *testing.T) {
	store := newFakeStore()
	svc := NewInvoiceService(store, decimal.RequireFromString("0.22"))

	inv := testInvoice()
	inv.TaxRate = decimal.RequireFromString("-1")

	saved, err := svc.CreateInvoice(context.Background(), inv)
	require.NoError(t, err)
	assert.True(t, saved.TaxRate.Equal(decimal.RequireFromString("0.22")))
}

func TestInvoiceService_CreateInvoice_RejectsInvalidLineItem(t *testing.T) {
	store := newFakeStore()
	svc := NewInvoiceService(store, decimal.Zero)

	inv := testInvoice()
	inv.LineItems = []core.LineItem{{Description: "", Quantity: 1, UnitPrice: core.MustMoney("5")}}

	_, err := svc.CreateInvoice(context.Background(), inv)
	assert.ErrorIs(t, err, core.ErrEmptyDescription)
	assert.Empty(t, store.invoices)
}

func TestInvoiceService_UpdateInvoice_RecomputesTotals(t *testing.T) {
	store := newFakeStore()
	svc := NewInvoiceService(store, decimal.Zero)

	saved, err := svc.CreateInvoice(context.Background(), testInvoice())
	require.NoError(t, err)

	saved.LineItems = append(saved.LineItems, core.LineItem{
		Description: "Extra work", Quantity: 1, UnitPrice: core.MustMoney("49.49"),
	})

	updated, err := svc.UpdateInvoice(context.Background(), saved)
	require.NoError(t, err)
	assert.Equal(t, "149.49", updated.Subtotal.String())
	assert.Equal(t, saved.CreatedAt, updated.CreatedAt)
}

func TestInvoiceService_SetStatus_PaidStampsDate(t *testing.T) {
	store := newFakeStore()
	svc := NewInvoiceService(store, decimal.Zero)

	saved, err := svc.CreateInvoice(context.Background(), testInvoice())
	require.NoError(t, err)

	paid, err := svc.SetStatus(context.Background(), saved.ID, core.StatusPaid, nil)
	require.NoError(t, err)
	require.NotNil(t, paid.PaidDate)
	assert.WithinDuration(t, time.Now(), *paid.PaidDate, time.Minute)

	// Moving back to sent clears the paid date
	sent, err := svc.SetStatus(context.Background(), saved.ID, core.StatusSent, nil)
	require.NoError(t, err)
	assert.Nil(t, sent.PaidDate)
}

func TestInvoiceService_SetStatus_UnknownStatus(t *testing.T) {
	store := newFakeStore()
	svc := NewInvoiceService(store, decimal.Zero)

	saved, err := svc.CreateInvoice(context.Background(), testInvoice())
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), saved.ID, "archived", nil)
	assert.ErrorIs(t, err, core.ErrInvalidStatus)
}

func TestInvoiceService_SetStatus_MissingInvoice(t *testing.T) {
	store := newFakeStore()
	svc := NewInvoiceService(store, decimal.Zero)

	_, err := svc.SetStatus(context.Background(), "nope", core.StatusSent, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
