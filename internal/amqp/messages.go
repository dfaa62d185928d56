package amqp

import (
	"encoding/json"
	"time"
)

// PaymentRecordedMessage announces that a bill payment was written.
// It carries identifiers only; the worker fetches the full records from
// the database so the queue never holds stale amounts.
type PaymentRecordedMessage struct {
	PaymentID      string    `json:"payment_id"`
	SubscriptionID string    `json:"subscription_id"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewPaymentRecordedMessage(paymentID, subscriptionID string) *PaymentRecordedMessage {
	return &PaymentRecordedMessage{
		PaymentID:      paymentID,
		SubscriptionID: subscriptionID,
		Timestamp:      time.Now(),
	}
}

func (m *PaymentRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PaymentRecordedMessageFromJSON(data []byte) (*PaymentRecordedMessage, error) {
	var msg PaymentRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReminderDueMessage announces that a subscription has entered its
// reminder window.
type ReminderDueMessage struct {
	SubscriptionID string    `json:"subscription_id"`
	Name           string    `json:"name"`
	DueDate        time.Time `json:"due_date"`
	LeadDays       int       `json:"lead_days"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewReminderDueMessage(subscriptionID, name string, dueDate time.Time, leadDays int) *ReminderDueMessage {
	return &ReminderDueMessage{
		SubscriptionID: subscriptionID,
		Name:           name,
		DueDate:        dueDate,
		LeadDays:       leadDays,
		Timestamp:      time.Now(),
	}
}

func (m *ReminderDueMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderDueMessageFromJSON(data []byte) (*ReminderDueMessage, error) {
	var msg ReminderDueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
