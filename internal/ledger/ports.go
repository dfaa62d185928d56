package ledger

import (
	"context"

	"flowledger/internal/core"
)

// Ports for outbound ledger adapters.
type (
	// PaymentAppender mirrors recorded bill payments into an external
	// ledger. Append returns a reference to where the row landed.
	PaymentAppender interface {
		Append(ctx context.Context, payment core.BillPayment, sub core.Subscription) (rowRef string, err error)
	}
)
