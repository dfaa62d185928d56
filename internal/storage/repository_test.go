package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowledger/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestInvoiceRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	due := time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)
	inv := core.Invoice{
		Number:     "INV-20250401-A1B2",
		Status:     core.StatusSent,
		ClientName: "Acme Corp",
		LineItems: []core.LineItem{
			{Description: "Consulting", Quantity: 2, UnitPrice: core.MustMoney("50.00")},
			{Description: "Travel", Quantity: 1, UnitPrice: core.MustMoney("19.99")},
		},
		TaxRate:    decimal.RequireFromString("0.18"),
		Discount:   core.MustMoney("10"),
		Subtotal:   core.MustMoney("119.99"),
		Tax:        core.MustMoney("19.7982"),
		Total:      core.MustMoney("129.7882"),
		IssuedDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		DueDate:    &due,
		Notes:      "net 30",
	}

	saved, err := repo.CreateInvoice(ctx, inv)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := repo.GetInvoice(ctx, saved.ID)
	require.NoError(t, err)

	assert.Equal(t, saved.Number, got.Number)
	assert.Equal(t, core.StatusSent, got.Status)
	require.Len(t, got.LineItems, 2)
	assert.Equal(t, "Consulting", got.LineItems[0].Description)
	assert.Equal(t, "50", got.LineItems[0].UnitPrice.String())
	// Exact decimal text survives the round trip
	assert.Equal(t, "19.7982", got.Tax.String())
	assert.Equal(t, "129.7882", got.Total.String())
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.Equal(due))
	assert.Nil(t, got.PaidDate)
}

func TestInvoiceNegativeTotalsSurviveStorage(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Discount above subtotal yields negative derived totals
	inv := core.Invoice{
		Number:     "INV-20250401-FFFF",
		Status:     core.StatusDraft,
		ClientName: "Acme Corp",
		TaxRate:    decimal.RequireFromString("0.18"),
		Discount:   core.MustMoney("10"),
		Subtotal:   core.ZeroMoney(),
		Tax:        core.NewMoney(decimal.RequireFromString("-1.8")),
		Total:      core.NewMoney(decimal.RequireFromString("-11.8")),
		IssuedDate: time.Now().UTC(),
	}

	saved, err := repo.CreateInvoice(ctx, inv)
	require.NoError(t, err)

	got, err := repo.GetInvoice(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "-1.8", got.Tax.String())
	assert.Equal(t, "-11.8", got.Total.String())
}

func TestUpdateInvoiceReplacesLineItems(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.CreateInvoice(ctx, core.Invoice{
		Number: "INV-1", Status: core.StatusDraft, ClientName: "Acme",
		LineItems: []core.LineItem{
			{Description: "One", Quantity: 1, UnitPrice: core.MustMoney("1")},
			{Description: "Two", Quantity: 1, UnitPrice: core.MustMoney("2")},
		},
		IssuedDate: time.Now().UTC(),
	})
	require.NoError(t, err)

	saved.LineItems = []core.LineItem{
		{Description: "Only", Quantity: 3, UnitPrice: core.MustMoney("7.50")},
	}
	require.NoError(t, repo.UpdateInvoice(ctx, saved))

	got, err := repo.GetInvoice(ctx, saved.ID)
	require.NoError(t, err)
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, "Only", got.LineItems[0].Description)
}

func TestDeleteInvoiceCascadesLineItems(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.CreateInvoice(ctx, core.Invoice{
		Number: "INV-1", Status: core.StatusDraft, ClientName: "Acme",
		LineItems: []core.LineItem{
			{Description: "One", Quantity: 1, UnitPrice: core.MustMoney("1")},
		},
		IssuedDate: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteInvoice(ctx, saved.ID))

	_, err = repo.GetInvoice(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var count int
	err = repo.db.QueryRow(`SELECT COUNT(*) FROM line_items`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListInvoicesByStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, status := range []core.InvoiceStatus{core.StatusDraft, core.StatusSent, core.StatusSent} {
		_, err := repo.CreateInvoice(ctx, core.Invoice{
			Number: "INV", Status: status, ClientName: "Acme",
			IssuedDate: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	sent, err := repo.ListInvoicesByStatus(ctx, core.StatusSent)
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	all, err := repo.ListInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testSub(due time.Time) core.Subscription {
	return core.Subscription{
		Name:               "Internet",
		Amount:             core.MustMoney("29.90"),
		Cadence:            core.Monthly,
		NextDueDate:        due,
		ReminderDaysBefore: 3,
	}
}

func TestSubscriptionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	due := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	saved, err := repo.CreateSubscription(ctx, testSub(due))
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := repo.GetSubscription(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Internet", got.Name)
	assert.Equal(t, "29.9", got.Amount.String())
	assert.Equal(t, core.Monthly, got.Cadence)
	assert.True(t, got.NextDueDate.Equal(due))
	assert.False(t, got.Paused)
}

func TestMarkSubscriptionPaid_AtomicAdvanceAndLog(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	due := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	saved, err := repo.CreateSubscription(ctx, testSub(due))
	require.NoError(t, err)

	nextDue := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	paidAt := time.Date(2025, 1, 30, 9, 0, 0, 0, time.UTC)

	payment, err := repo.MarkSubscriptionPaid(ctx, saved.ID, nextDue, paidAt)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, payment.SubscriptionID)
	assert.Equal(t, "29.9", payment.Amount.String())

	after, err := repo.GetSubscription(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, after.NextDueDate.Equal(nextDue))

	history, err := repo.ListBillPayments(ctx, saved.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, payment.ID, history[0].ID)
	assert.True(t, history[0].PaidDate.Equal(paidAt))

	got, err := repo.GetBillPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, got.ID)
}

func TestMarkSubscriptionPaid_UnknownSubscription(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.MarkSubscriptionPaid(context.Background(), "nope", time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReminderDedupCycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	due := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	saved, err := repo.CreateSubscription(ctx, testSub(due)) // 3-day lead
	require.NoError(t, err)

	// Outside the window: nothing due
	early, err := repo.ListSubscriptionsNeedingReminder(ctx, time.Date(2025, 4, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, early)

	// Window opens 3 days before
	candidates, err := repo.ListSubscriptionsNeedingReminder(ctx, time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	require.NoError(t, repo.MarkReminderSent(ctx, saved.ID, due))

	// Same due date never reminds twice
	again, err := repo.ListSubscriptionsNeedingReminder(ctx, time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, again)

	// A payment advances the due date and reopens the cycle
	nextDue := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	_, err = repo.MarkSubscriptionPaid(ctx, saved.ID, nextDue, time.Now().UTC())
	require.NoError(t, err)

	reopened, err := repo.ListSubscriptionsNeedingReminder(ctx, time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, reopened, 1)
}

func TestReminderSkipsPaused(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sub := testSub(time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC))
	sub.Paused = true
	_, err := repo.CreateSubscription(ctx, sub)
	require.NoError(t, err)

	candidates, err := repo.ListSubscriptionsNeedingReminder(ctx, time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestListActiveSubscriptionsExcludesPaused(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	active := testSub(time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC))
	paused := testSub(time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC))
	paused.Name = "Gym"
	paused.Paused = true

	_, err := repo.CreateSubscription(ctx, active)
	require.NoError(t, err)
	_, err = repo.CreateSubscription(ctx, paused)
	require.NoError(t, err)

	all, err := repo.ListSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyActive, err := repo.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, "Internet", onlyActive[0].Name)
}
