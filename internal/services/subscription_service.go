package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"flowledger/internal/core"
	"flowledger/internal/finance"
)

// SubscriptionStore is the slice of storage the subscription service
// needs.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, sub core.Subscription) (core.Subscription, error)
	UpdateSubscription(ctx context.Context, sub core.Subscription) error
	GetSubscription(ctx context.Context, id string) (core.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
	ListSubscriptions(ctx context.Context) ([]core.Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]core.Subscription, error)
	MarkSubscriptionPaid(ctx context.Context, subscriptionID string, nextDue, paidAt time.Time) (core.BillPayment, error)
	ListBillPayments(ctx context.Context, subscriptionID string) ([]core.BillPayment, error)
}

// PaymentPublisher announces recorded payments to the message broker.
type PaymentPublisher interface {
	PublishPaymentRecorded(ctx context.Context, paymentID, subscriptionID string) error
}

// SubscriptionService orchestrates recurring bills across storage and
// AMQP.
type SubscriptionService struct {
	storage   SubscriptionStore
	publisher PaymentPublisher
}

func NewSubscriptionService(storage SubscriptionStore, publisher PaymentPublisher) *SubscriptionService {
	return &SubscriptionService{
		storage:   storage,
		publisher: publisher,
	}
}

func (s *SubscriptionService) CreateSubscription(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, fmt.Errorf("validate subscription: %w", err)
	}

	saved, err := s.storage.CreateSubscription(ctx, sub)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("save subscription: %w", err)
	}
	return saved, nil
}

func (s *SubscriptionService) UpdateSubscription(ctx context.Context, sub core.Subscription) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("validate subscription: %w", err)
	}
	return s.storage.UpdateSubscription(ctx, sub)
}

func (s *SubscriptionService) GetSubscription(ctx context.Context, id string) (core.Subscription, error) {
	return s.storage.GetSubscription(ctx, id)
}

func (s *SubscriptionService) DeleteSubscription(ctx context.Context, id string) error {
	return s.storage.DeleteSubscription(ctx, id)
}

func (s *SubscriptionService) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	return s.storage.ListSubscriptions(ctx)
}

// SetPaused flips the paused flag. Due dates keep advancing only
// through payments, so pausing freezes the schedule as-is.
func (s *SubscriptionService) SetPaused(ctx context.Context, id string, paused bool) (core.Subscription, error) {
	sub, err := s.storage.GetSubscription(ctx, id)
	if err != nil {
		return core.Subscription{}, err
	}
	sub.Paused = paused
	if err := s.storage.UpdateSubscription(ctx, sub); err != nil {
		return core.Subscription{}, fmt.Errorf("update paused flag: %w", err)
	}
	return sub, nil
}

// MarkPaid records a payment against the subscription: the due date
// advances one cadence step and the payment lands in the append-only
// log, both in the same transaction. The broker notification is
// best-effort; a publish failure never rolls back the payment.
func (s *SubscriptionService) MarkPaid(ctx context.Context, id string, paidAt time.Time) (core.BillPayment, error) {
	sub, err := s.storage.GetSubscription(ctx, id)
	if err != nil {
		return core.BillPayment{}, err
	}

	nextDue, err := finance.AdvanceDueDate(sub.NextDueDate, sub.Cadence)
	if err != nil {
		return core.BillPayment{}, fmt.Errorf("advance due date: %w", err)
	}

	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	payment, err := s.storage.MarkSubscriptionPaid(ctx, id, nextDue, paidAt)
	if err != nil {
		return core.BillPayment{}, fmt.Errorf("mark subscription paid: %w", err)
	}

	if err := s.publishPaymentRecorded(ctx, payment); err != nil {
		slog.ErrorContext(ctx, "Failed to publish payment message",
			"payment_id", payment.ID,
			"subscription_id", payment.SubscriptionID,
			"error", err)
		// Don't fail the request - the payment is committed locally
	}

	return payment, nil
}

func (s *SubscriptionService) ListBillPayments(ctx context.Context, subscriptionID string) ([]core.BillPayment, error) {
	if _, err := s.storage.GetSubscription(ctx, subscriptionID); err != nil {
		return nil, err
	}
	return s.storage.ListBillPayments(ctx, subscriptionID)
}

func (s *SubscriptionService) publishPaymentRecorded(ctx context.Context, payment core.BillPayment) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Payment publisher not available, skipping message")
		return nil
	}
	return s.publisher.PublishPaymentRecorded(ctx, payment.ID, payment.SubscriptionID)
}
