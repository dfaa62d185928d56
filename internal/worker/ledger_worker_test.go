package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowledger/internal/amqp"
	"flowledger/internal/core"
	"flowledger/internal/ledger/memory"
	"flowledger/internal/storage"
)

type fakePaymentStore struct {
	payments map[string]core.BillPayment
	subs     map[string]core.Subscription
}

func (f *fakePaymentStore) GetBillPayment(_ context.Context, id string) (core.BillPayment, error) {
	p, ok := f.payments[id]
	if !ok {
		return core.BillPayment{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakePaymentStore) GetSubscription(_ context.Context, id string) (core.Subscription, error) {
	s, ok := f.subs[id]
	if !ok {
		return core.Subscription{}, storage.ErrNotFound
	}
	return s, nil
}

func TestLedgerWorker_HandlePaymentMessage(t *testing.T) {
	store := &fakePaymentStore{
		payments: map[string]core.BillPayment{
			"pay-1": {
				ID:             "pay-1",
				SubscriptionID: "sub-1",
				Amount:         core.MustMoney("29.90"),
				PaidDate:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		subs: map[string]core.Subscription{
			"sub-1": {ID: "sub-1", Name: "Internet"},
		},
	}
	ledgerStore := memory.New()
	w := NewLedgerWorker(store, ledgerStore)

	msg := amqp.NewPaymentRecordedMessage("pay-1", "sub-1")
	err := w.HandlePaymentMessage(context.Background(), msg)
	require.NoError(t, err)

	entries := ledgerStore.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "pay-1", entries[0].ID)
	assert.Equal(t, "29.9", entries[0].Amount.String())
}

func TestLedgerWorker_HandlePaymentMessage_UnknownPayment(t *testing.T) {
	store := &fakePaymentStore{
		payments: map[string]core.BillPayment{},
		subs:     map[string]core.Subscription{},
	}
	w := NewLedgerWorker(store, memory.New())

	err := w.HandlePaymentMessage(context.Background(), amqp.NewPaymentRecordedMessage("nope", "sub-1"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
