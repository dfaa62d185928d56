package services

import (
	"context"
	"fmt"
	"time"

	"flowledger/internal/amqp"
	"flowledger/internal/core"
	"flowledger/internal/storage"
)

// fakeStore is an in-memory stand-in for the SQLite repository.
type fakeStore struct {
	invoices map[string]core.Invoice
	subs     map[string]core.Subscription
	payments []core.BillPayment
	reminded map[string]time.Time

	failNext error
	seq      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		invoices: make(map[string]core.Invoice),
		subs:     make(map[string]core.Subscription),
		reminded: make(map[string]time.Time),
	}
}

func (f *fakeStore) nextID() string {
	f.seq++
	return fmt.Sprintf("id-%d", f.seq)
}

func (f *fakeStore) takeErr() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeStore) CreateInvoice(_ context.Context, inv core.Invoice) (core.Invoice, error) {
	if err := f.takeErr(); err != nil {
		return core.Invoice{}, err
	}
	if inv.ID == "" {
		inv.ID = f.nextID()
	}
	inv.CreatedAt = time.Now()
	f.invoices[inv.ID] = inv
	return inv, nil
}

func (f *fakeStore) UpdateInvoice(_ context.Context, inv core.Invoice) error {
	if err := f.takeErr(); err != nil {
		return err
	}
	if _, ok := f.invoices[inv.ID]; !ok {
		return storage.ErrNotFound
	}
	f.invoices[inv.ID] = inv
	return nil
}

func (f *fakeStore) GetInvoice(_ context.Context, id string) (core.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return core.Invoice{}, storage.ErrNotFound
	}
	return inv, nil
}

func (f *fakeStore) DeleteInvoice(_ context.Context, id string) error {
	if _, ok := f.invoices[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.invoices, id)
	return nil
}

func (f *fakeStore) ListInvoices(_ context.Context) ([]core.Invoice, error) {
	var out []core.Invoice
	for _, inv := range f.invoices {
		out = append(out, inv)
	}
	return out, nil
}

func (f *fakeStore) ListInvoicesByStatus(_ context.Context, status core.InvoiceStatus) ([]core.Invoice, error) {
	var out []core.Invoice
	for _, inv := range f.invoices {
		if inv.Status == status {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateSubscription(_ context.Context, sub core.Subscription) (core.Subscription, error) {
	if err := f.takeErr(); err != nil {
		return core.Subscription{}, err
	}
	if sub.ID == "" {
		sub.ID = f.nextID()
	}
	sub.CreatedAt = time.Now()
	f.subs[sub.ID] = sub
	return sub, nil
}

func (f *fakeStore) UpdateSubscription(_ context.Context, sub core.Subscription) error {
	if _, ok := f.subs[sub.ID]; !ok {
		return storage.ErrNotFound
	}
	f.subs[sub.ID] = sub
	return nil
}

func (f *fakeStore) GetSubscription(_ context.Context, id string) (core.Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return core.Subscription{}, storage.ErrNotFound
	}
	return sub, nil
}

func (f *fakeStore) DeleteSubscription(_ context.Context, id string) error {
	if _, ok := f.subs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.subs, id)
	return nil
}

func (f *fakeStore) ListSubscriptions(_ context.Context) ([]core.Subscription, error) {
	var out []core.Subscription
	for _, sub := range f.subs {
		out = append(out, sub)
	}
	return out, nil
}

func (f *fakeStore) ListActiveSubscriptions(_ context.Context) ([]core.Subscription, error) {
	var out []core.Subscription
	for _, sub := range f.subs {
		if !sub.Paused {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkSubscriptionPaid(_ context.Context, subscriptionID string, nextDue, paidAt time.Time) (core.BillPayment, error) {
	if err := f.takeErr(); err != nil {
		return core.BillPayment{}, err
	}
	sub, ok := f.subs[subscriptionID]
	if !ok {
		return core.BillPayment{}, storage.ErrNotFound
	}
	sub.NextDueDate = nextDue
	f.subs[subscriptionID] = sub

	payment := core.BillPayment{
		ID:             f.nextID(),
		SubscriptionID: subscriptionID,
		Amount:         sub.Amount,
		PaidDate:       paidAt,
		CreatedAt:      time.Now(),
	}
	f.payments = append(f.payments, payment)
	return payment, nil
}

func (f *fakeStore) ListBillPayments(_ context.Context, subscriptionID string) ([]core.BillPayment, error) {
	var out []core.BillPayment
	for _, p := range f.payments {
		if p.SubscriptionID == subscriptionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSubscriptionsNeedingReminder(_ context.Context, now time.Time) ([]core.Subscription, error) {
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	var out []core.Subscription
	for _, sub := range f.subs {
		if sub.Paused {
			continue
		}
		if due, ok := f.reminded[sub.ID]; ok && due.Equal(sub.NextDueDate) {
			continue
		}
		window := sub.NextDueDate.AddDate(0, 0, -sub.ReminderDaysBefore)
		if !now.Before(window) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkReminderSent(_ context.Context, subscriptionID string, dueDate time.Time) error {
	if _, ok := f.subs[subscriptionID]; !ok {
		return storage.ErrNotFound
	}
	f.reminded[subscriptionID] = dueDate
	return nil
}

// fakePublisher records published messages instead of talking to AMQP.
type fakePublisher struct {
	payments  []amqp.PaymentRecordedMessage
	reminders []amqp.ReminderDueMessage
	failNext  error
}

func (f *fakePublisher) PublishPaymentRecorded(_ context.Context, paymentID, subscriptionID string) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.payments = append(f.payments, *amqp.NewPaymentRecordedMessage(paymentID, subscriptionID))
	return nil
}

func (f *fakePublisher) PublishReminderDue(_ context.Context, msg *amqp.ReminderDueMessage) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.reminders = append(f.reminders, *msg)
	return nil
}
