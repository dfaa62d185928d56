package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusDraft InvoiceStatus = "draft"
	StatusSent  InvoiceStatus = "sent"
	StatusPaid  InvoiceStatus = "paid"
)

const (
	Weekly    Cadence = "weekly"
	Monthly   Cadence = "monthly"
	Quarterly Cadence = "quarterly"
	Yearly    Cadence = "yearly"
)

type (
	// InvoiceStatus is the lifecycle state of an invoice. Transitions are
	// caller-driven; nothing moves an invoice forward automatically.
	InvoiceStatus string

	// Cadence is the recurrence interval of a subscription.
	Cadence string

	// LineItem is one billable entry on an invoice. The invoice owns its
	// line items exclusively; items never point back at their invoice.
	LineItem struct {
		Description string
		Quantity    float64
		UnitPrice   Money
	}

	// Invoice aggregates line items with tax and discount. Subtotal, Tax
	// and Total are derived values; the owning service recomputes them
	// after every line item or rate change.
	Invoice struct {
		ID          string
		Number      string
		Status      InvoiceStatus
		ClientName  string
		ClientEmail string
		LineItems   []LineItem
		TaxRate     decimal.Decimal // fraction, e.g. 0.18
		Discount    Money           // absolute amount
		Subtotal    Money
		Tax         Money
		Total       Money
		IssuedDate  time.Time
		DueDate     *time.Time
		PaidDate    *time.Time
		Notes       string
		CreatedAt   time.Time
	}

	// Subscription is a recurring bill.
	Subscription struct {
		ID                 string
		Name               string
		Amount             Money
		Cadence            Cadence
		NextDueDate        time.Time
		ReminderDaysBefore int
		Paused             bool
		Notes              string
		CreatedAt          time.Time
	}

	// BillPayment records one payment of a subscription. The amount is a
	// snapshot taken at payment time, not a live reference. Payments are
	// append-only: never mutated, never deleted.
	BillPayment struct {
		ID             string
		SubscriptionID string
		Amount         Money
		PaidDate       time.Time
		CreatedAt      time.Time
	}
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidStatus        = errors.New("invalid invoice status")
	ErrInvalidCadence       = errors.New("invalid cadence")
	ErrInvalidTaxRate       = errors.New("invalid tax rate")
	ErrEmptyName            = errors.New("empty name")
	ErrEmptyDescription     = errors.New("empty description")
	ErrNegativeQuantity     = errors.New("negative quantity")
	ErrNegativeReminderLead = errors.New("negative reminder lead days")
	ErrZeroDueDate          = errors.New("due date cannot be zero")
	ErrDescriptionTooLong   = errors.New("description too long (max 200 characters)")
	ErrNameTooLong          = errors.New("name too long (max 200 characters)")
	ErrMissingPaidDate      = errors.New("paid invoice without paid date")
	ErrMissingSubscription  = errors.New("payment without subscription")
	ErrZeroPaymentDate      = errors.New("payment date cannot be zero")
)

// ParseInvoiceStatus decodes a persisted status string. Decoding lives
// at the storage boundary; the rest of the code works with the typed
// constants only.
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch InvoiceStatus(s) {
	case StatusDraft, StatusSent, StatusPaid:
		return InvoiceStatus(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

// ParseCadence decodes a persisted cadence string.
func ParseCadence(s string) (Cadence, error) {
	switch Cadence(s) {
	case Weekly, Monthly, Quarterly, Yearly:
		return Cadence(s), nil
	default:
		return "", ErrInvalidCadence
	}
}

// Total derives the line amount: quantity x unit price.
func (li LineItem) Total() Money {
	return li.UnitPrice.MulQuantity(li.Quantity)
}

func (li LineItem) Validate() error {
	if len(strings.TrimSpace(li.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(li.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if li.Quantity < 0 {
		return ErrNegativeQuantity
	}
	if li.UnitPrice.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (inv Invoice) Validate() error {
	if _, err := ParseInvoiceStatus(string(inv.Status)); err != nil {
		return err
	}
	if inv.TaxRate.IsNegative() {
		return ErrInvalidTaxRate
	}
	if inv.Discount.IsNegative() {
		return ErrInvalidAmount
	}
	for _, li := range inv.LineItems {
		if err := li.Validate(); err != nil {
			return err
		}
	}
	// A paid invoice must carry its paid date; the two are set together.
	if inv.Status == StatusPaid && inv.PaidDate == nil {
		return ErrMissingPaidDate
	}
	return nil
}

// IsDue reports whether a sent invoice's due date has passed as of now.
func (inv Invoice) IsDue(now time.Time) bool {
	if inv.Status != StatusSent || inv.DueDate == nil {
		return false
	}
	return !inv.DueDate.After(now)
}

func (s Subscription) Validate() error {
	if len(strings.TrimSpace(s.Name)) == 0 {
		return ErrEmptyName
	}
	if len(s.Name) > 200 {
		return ErrNameTooLong
	}
	if s.Amount.IsNegative() || s.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if _, err := ParseCadence(string(s.Cadence)); err != nil {
		return err
	}
	if s.NextDueDate.IsZero() {
		return ErrZeroDueDate
	}
	if s.ReminderDaysBefore < 0 {
		return ErrNegativeReminderLead
	}
	return nil
}

func (p BillPayment) Validate() error {
	if p.SubscriptionID == "" {
		return ErrMissingSubscription
	}
	if p.Amount.IsNegative() || p.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if p.PaidDate.IsZero() {
		return ErrZeroPaymentDate
	}
	return nil
}
