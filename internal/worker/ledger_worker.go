// Package worker exports recorded bill payments from SQLite to the
// configured ledger backend.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"flowledger/internal/amqp"
	"flowledger/internal/core"
	"flowledger/internal/ledger"
)

// PaymentStore is the slice of storage the worker needs.
type PaymentStore interface {
	GetBillPayment(ctx context.Context, id string) (core.BillPayment, error)
	GetSubscription(ctx context.Context, id string) (core.Subscription, error)
}

// LedgerWorker mirrors bill payments into an external ledger.
type LedgerWorker struct {
	storage  PaymentStore
	appender ledger.PaymentAppender
}

func NewLedgerWorker(storage PaymentStore, appender ledger.PaymentAppender) *LedgerWorker {
	return &LedgerWorker{
		storage:  storage,
		appender: appender,
	}
}

// HandlePaymentMessage processes one payment message. The message
// carries identifiers only, so both records are re-read from storage
// and the ledger row reflects what was actually committed.
func (w *LedgerWorker) HandlePaymentMessage(ctx context.Context, msg *amqp.PaymentRecordedMessage) error {
	slog.InfoContext(ctx, "Processing payment message",
		"payment_id", msg.PaymentID,
		"subscription_id", msg.SubscriptionID)

	payment, err := w.storage.GetBillPayment(ctx, msg.PaymentID)
	if err != nil {
		return fmt.Errorf("get bill payment from storage: %w", err)
	}

	sub, err := w.storage.GetSubscription(ctx, msg.SubscriptionID)
	if err != nil {
		return fmt.Errorf("get subscription from storage: %w", err)
	}

	ref, err := w.appender.Append(ctx, payment, sub)
	if err != nil {
		return fmt.Errorf("append to ledger: %w", err)
	}

	slog.InfoContext(ctx, "Exported payment to ledger",
		"payment_id", payment.ID,
		"subscription", sub.Name,
		"amount", payment.Amount.String(),
		"ledger_ref", ref)
	return nil
}
