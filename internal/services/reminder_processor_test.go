package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderProcessor_PublishesForSubscriptionsInWindow(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	proc := NewReminderProcessor(store, pub)

	now := time.Date(2025, 4, 13, 8, 0, 0, 0, time.UTC)

	inWindow := testSubscription(time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)) // lead 3 days
	outOfWindow := testSubscription(time.Date(2025, 4, 25, 0, 0, 0, 0, time.UTC))
	outOfWindow.Name = "Hosting"

	_, err := store.CreateSubscription(context.Background(), inWindow)
	require.NoError(t, err)
	_, err = store.CreateSubscription(context.Background(), outOfWindow)
	require.NoError(t, err)

	count, err := proc.ProcessDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, pub.reminders, 1)
	assert.Equal(t, "Internet", pub.reminders[0].Name)
	assert.Equal(t, 3, pub.reminders[0].LeadDays)
}

func TestReminderProcessor_DoesNotRemindTwiceForSameDueDate(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	proc := NewReminderProcessor(store, pub)

	now := time.Date(2025, 4, 13, 8, 0, 0, 0, time.UTC)
	_, err := store.CreateSubscription(context.Background(),
		testSubscription(time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	first, err := proc.ProcessDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := proc.ProcessDueReminders(context.Background(), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, second)
	assert.Len(t, pub.reminders, 1)
}

func TestReminderProcessor_RemindsAgainAfterPaymentAdvances(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	proc := NewReminderProcessor(store, pub)
	svc := NewSubscriptionService(store, &fakePublisher{})

	due := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	saved, err := store.CreateSubscription(context.Background(), testSubscription(due))
	require.NoError(t, err)

	_, err = proc.ProcessDueReminders(context.Background(), time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	_, err = svc.MarkPaid(context.Background(), saved.ID, time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// Next cycle is due May 15; its window opens May 12
	count, err := proc.ProcessDueReminders(context.Background(), time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, pub.reminders, 2)
}

func TestReminderProcessor_PublishFailureLeavesCandidate(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{failNext: errors.New("broker down")}
	proc := NewReminderProcessor(store, pub)

	now := time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC)
	_, err := store.CreateSubscription(context.Background(),
		testSubscription(time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	count, err := proc.ProcessDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// The failed publish did not mark the reminder as sent
	retry, err := proc.ProcessDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, retry)
}

func TestReminderProcessor_NotInitialized(t *testing.T) {
	proc := NewReminderProcessor(nil, nil)
	_, err := proc.ProcessDueReminders(context.Background(), time.Now())
	assert.Error(t, err)
}
