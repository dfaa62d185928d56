package http

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"flowledger/internal/core"
)

// Wire types for the JSON API. Amounts travel as decimal strings and
// dates as YYYY-MM-DD, matching what the storage layer preserves.

const dateLayout = "2006-01-02"

type lineItemPayload struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   string  `json:"unit_price"`
	Total       string  `json:"total,omitempty"`
}

type invoiceRequest struct {
	Number      string            `json:"number"`
	Status      string            `json:"status"`
	ClientName  string            `json:"client_name"`
	ClientEmail string            `json:"client_email"`
	LineItems   []lineItemPayload `json:"line_items"`
	TaxRate     *string           `json:"tax_rate"`
	Discount    string            `json:"discount"`
	IssuedDate  string            `json:"issued_date"`
	DueDate     string            `json:"due_date"`
	PaidDate    string            `json:"paid_date"`
	Notes       string            `json:"notes"`
}

type invoiceResponse struct {
	ID          string            `json:"id"`
	Number      string            `json:"number"`
	Status      string            `json:"status"`
	ClientName  string            `json:"client_name"`
	ClientEmail string            `json:"client_email,omitempty"`
	LineItems   []lineItemPayload `json:"line_items"`
	TaxRate     string            `json:"tax_rate"`
	Discount    string            `json:"discount"`
	Subtotal    string            `json:"subtotal"`
	Tax         string            `json:"tax"`
	Total       string            `json:"total"`
	IssuedDate  string            `json:"issued_date"`
	DueDate     string            `json:"due_date,omitempty"`
	PaidDate    string            `json:"paid_date,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	CreatedAt   string            `json:"created_at"`
}

type statusRequest struct {
	Status   string `json:"status"`
	PaidDate string `json:"paid_date"`
}

type subscriptionRequest struct {
	Name               string `json:"name"`
	Amount             string `json:"amount"`
	Cadence            string `json:"cadence"`
	NextDueDate        string `json:"next_due_date"`
	ReminderDaysBefore int    `json:"reminder_days_before"`
	Paused             bool   `json:"paused"`
	Notes              string `json:"notes"`
}

type subscriptionResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Amount             string `json:"amount"`
	Cadence            string `json:"cadence"`
	NextDueDate        string `json:"next_due_date"`
	ReminderDaysBefore int    `json:"reminder_days_before"`
	Paused             bool   `json:"paused"`
	Notes              string `json:"notes,omitempty"`
	CreatedAt          string `json:"created_at"`
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

type payRequest struct {
	PaidDate string `json:"paid_date"`
}

type billPaymentResponse struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`
	Amount         string `json:"amount"`
	PaidDate       string `json:"paid_date"`
	CreatedAt      string `json:"created_at"`
}

type metricsResponse struct {
	PaidIncome string `json:"paid_income"`
	BillsDue   string `json:"bills_due"`
	Net        string `json:"net"`
}

type forecastPointResponse struct {
	Date    string `json:"date"`
	Inflow  string `json:"inflow"`
	Outflow string `json:"outflow"`
}

func (req invoiceRequest) toDomain() (core.Invoice, error) {
	inv := core.Invoice{
		Number:      req.Number,
		Status:      core.InvoiceStatus(req.Status),
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		Notes:       req.Notes,
	}

	for _, li := range req.LineItems {
		price, err := core.ParseMoney(li.UnitPrice)
		if err != nil {
			return core.Invoice{}, fmt.Errorf("line item %q unit price: %w", li.Description, err)
		}
		inv.LineItems = append(inv.LineItems, core.LineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   price,
		})
	}

	if req.TaxRate != nil {
		rate, err := decimal.NewFromString(*req.TaxRate)
		if err != nil || rate.IsNegative() {
			return core.Invoice{}, fmt.Errorf("tax rate %q: %w", *req.TaxRate, core.ErrInvalidTaxRate)
		}
		inv.TaxRate = rate
	} else {
		// Signals the service to apply the configured default
		inv.TaxRate = decimal.NewFromInt(-1)
	}

	if req.Discount != "" {
		discount, err := core.ParseMoney(req.Discount)
		if err != nil {
			return core.Invoice{}, fmt.Errorf("discount: %w", err)
		}
		inv.Discount = discount
	}

	var err error
	if inv.IssuedDate, err = parseOptionalDate(req.IssuedDate); err != nil {
		return core.Invoice{}, fmt.Errorf("issued date: %w", err)
	}
	if inv.DueDate, err = parseOptionalDatePtr(req.DueDate); err != nil {
		return core.Invoice{}, fmt.Errorf("due date: %w", err)
	}
	if inv.PaidDate, err = parseOptionalDatePtr(req.PaidDate); err != nil {
		return core.Invoice{}, fmt.Errorf("paid date: %w", err)
	}

	return inv, nil
}

func (req subscriptionRequest) toDomain() (core.Subscription, error) {
	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("amount: %w", err)
	}

	due, err := parseOptionalDate(req.NextDueDate)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("next due date: %w", err)
	}

	return core.Subscription{
		Name:               req.Name,
		Amount:             amount,
		Cadence:            core.Cadence(req.Cadence),
		NextDueDate:        due,
		ReminderDaysBefore: req.ReminderDaysBefore,
		Paused:             req.Paused,
		Notes:              req.Notes,
	}, nil
}

func toInvoiceResponse(inv core.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:          inv.ID,
		Number:      inv.Number,
		Status:      string(inv.Status),
		ClientName:  inv.ClientName,
		ClientEmail: inv.ClientEmail,
		LineItems:   []lineItemPayload{},
		TaxRate:     inv.TaxRate.String(),
		Discount:    inv.Discount.String(),
		Subtotal:    inv.Subtotal.String(),
		Tax:         inv.Tax.String(),
		Total:       inv.Total.String(),
		IssuedDate:  inv.IssuedDate.Format(dateLayout),
		Notes:       inv.Notes,
		CreatedAt:   inv.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, li := range inv.LineItems {
		resp.LineItems = append(resp.LineItems, lineItemPayload{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice.String(),
			Total:       li.Total().String(),
		})
	}
	if inv.DueDate != nil {
		resp.DueDate = inv.DueDate.Format(dateLayout)
	}
	if inv.PaidDate != nil {
		resp.PaidDate = inv.PaidDate.Format(dateLayout)
	}
	return resp
}

func toSubscriptionResponse(sub core.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                 sub.ID,
		Name:               sub.Name,
		Amount:             sub.Amount.String(),
		Cadence:            string(sub.Cadence),
		NextDueDate:        sub.NextDueDate.Format(dateLayout),
		ReminderDaysBefore: sub.ReminderDaysBefore,
		Paused:             sub.Paused,
		Notes:              sub.Notes,
		CreatedAt:          sub.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toBillPaymentResponse(p core.BillPayment) billPaymentResponse {
	return billPaymentResponse{
		ID:             p.ID,
		SubscriptionID: p.SubscriptionID,
		Amount:         p.Amount.String(),
		PaidDate:       p.PaidDate.Format(dateLayout),
		CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func parseOptionalDatePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
