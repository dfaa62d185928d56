package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"flowledger/internal/amqp"
	"flowledger/internal/core"
)

// ReminderStore is the slice of storage the reminder processor needs.
type ReminderStore interface {
	ListSubscriptionsNeedingReminder(ctx context.Context, now time.Time) ([]core.Subscription, error)
	MarkReminderSent(ctx context.Context, subscriptionID string, dueDate time.Time) error
}

// ReminderPublisher announces upcoming bills to the message broker.
type ReminderPublisher interface {
	PublishReminderDue(ctx context.Context, msg *amqp.ReminderDueMessage) error
}

// ReminderProcessor scans for subscriptions entering their reminder
// window and publishes one notification per due date.
type ReminderProcessor struct {
	storage   ReminderStore
	publisher ReminderPublisher
}

func NewReminderProcessor(storage ReminderStore, publisher ReminderPublisher) *ReminderProcessor {
	return &ReminderProcessor{
		storage:   storage,
		publisher: publisher,
	}
}

// ProcessDueReminders publishes reminders for every active subscription
// whose window has opened. The sent marker carries the due date, so a
// subscription reminds again only after a payment advances it.
func (p *ReminderProcessor) ProcessDueReminders(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil || p.publisher == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	due, err := p.storage.ListSubscriptionsNeedingReminder(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions needing reminder: %w", err)
	}

	slog.InfoContext(ctx, "Processing due reminders",
		"candidates", len(due),
		"processing_date", now.Format("2006-01-02"))

	processedCount := 0

	for _, sub := range due {
		msg := amqp.NewReminderDueMessage(sub.ID, sub.Name, sub.NextDueDate, sub.ReminderDaysBefore)
		if err := p.publisher.PublishReminderDue(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish reminder",
				"subscription_id", sub.ID,
				"name", sub.Name,
				"error", err)
			continue
		}

		if err := p.storage.MarkReminderSent(ctx, sub.ID, sub.NextDueDate); err != nil {
			slog.ErrorContext(ctx, "Failed to mark reminder sent",
				"subscription_id", sub.ID,
				"error", err)
			// Continue anyway - the notification went out
		}

		processedCount++
		slog.InfoContext(ctx, "Published reminder",
			"subscription_id", sub.ID,
			"name", sub.Name,
			"due_date", sub.NextDueDate.Format("2006-01-02"),
			"lead_days", sub.ReminderDaysBefore)
	}

	slog.InfoContext(ctx, "Reminder processing complete",
		"published", processedCount,
		"candidates", len(due))

	return processedCount, nil
}
