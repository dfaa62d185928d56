// Package storage persists the domain model in SQLite.
//
// Status and cadence are stored as strings and decoded back to the typed
// constants on read; money is stored as exact decimal text so nothing is
// lost between write and read. Identifiers and creation timestamps are
// generated here, never by the calculation engine.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"flowledger/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- invoices ---

// CreateInvoice stores an invoice with its line items and returns the
// persisted copy with ID and CreatedAt filled in.
func (r *SQLiteRepository) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, number, status, client_name, client_email,
			tax_rate, discount, subtotal, tax, total,
			issued_date, due_date, paid_date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Number, string(inv.Status), inv.ClientName, inv.ClientEmail,
		inv.TaxRate.String(), inv.Discount.String(), inv.Subtotal.String(), inv.Tax.String(), inv.Total.String(),
		fmtTime(inv.IssuedDate), fmtTimePtr(inv.DueDate), fmtTimePtr(inv.PaidDate), inv.Notes, fmtTime(inv.CreatedAt))
	if err != nil {
		return core.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}

	if err := insertLineItems(ctx, tx, inv.ID, inv.LineItems); err != nil {
		return core.Invoice{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.Invoice{}, fmt.Errorf("commit invoice: %w", err)
	}

	slog.InfoContext(ctx, "Invoice saved",
		"id", inv.ID,
		"number", inv.Number,
		"status", inv.Status,
		"total", inv.Total.String())
	return inv, nil
}

// UpdateInvoice replaces the invoice row and its line items as one
// aggregate. The invoice owns its items; partial item updates do not
// exist at this layer.
func (r *SQLiteRepository) UpdateInvoice(ctx context.Context, inv core.Invoice) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE invoices SET number = ?, status = ?, client_name = ?, client_email = ?,
			tax_rate = ?, discount = ?, subtotal = ?, tax = ?, total = ?,
			issued_date = ?, due_date = ?, paid_date = ?, notes = ?
		WHERE id = ?`,
		inv.Number, string(inv.Status), inv.ClientName, inv.ClientEmail,
		inv.TaxRate.String(), inv.Discount.String(), inv.Subtotal.String(), inv.Tax.String(), inv.Total.String(),
		fmtTime(inv.IssuedDate), fmtTimePtr(inv.DueDate), fmtTimePtr(inv.PaidDate), inv.Notes,
		inv.ID)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update invoice %s: %w", inv.ID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM line_items WHERE invoice_id = ?`, inv.ID); err != nil {
		return fmt.Errorf("clear line items: %w", err)
	}
	if err := insertLineItems(ctx, tx, inv.ID, inv.LineItems); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit invoice update: %w", err)
	}
	return nil
}

func insertLineItems(ctx context.Context, tx *sql.Tx, invoiceID string, items []core.LineItem) error {
	for i, li := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO line_items (id, invoice_id, position, description, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), invoiceID, i, li.Description, li.Quantity, li.UnitPrice.String())
		if err != nil {
			return fmt.Errorf("insert line item %d: %w", i, err)
		}
	}
	return nil
}

// GetInvoice loads one invoice with its line items in position order.
func (r *SQLiteRepository) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, number, status, client_name, client_email,
			tax_rate, discount, subtotal, tax, total,
			issued_date, due_date, paid_date, notes, created_at
		FROM invoices WHERE id = ?`, id)

	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Invoice{}, fmt.Errorf("invoice %s: %w", id, ErrNotFound)
		}
		return core.Invoice{}, fmt.Errorf("get invoice: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT description, quantity, unit_price
		FROM line_items WHERE invoice_id = ? ORDER BY position`, id)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var li core.LineItem
		var price string
		if err := rows.Scan(&li.Description, &li.Quantity, &price); err != nil {
			return core.Invoice{}, fmt.Errorf("scan line item: %w", err)
		}
		if li.UnitPrice, err = decodeMoney(price); err != nil {
			return core.Invoice{}, fmt.Errorf("decode unit price: %w", err)
		}
		inv.LineItems = append(inv.LineItems, li)
	}
	if err := rows.Err(); err != nil {
		return core.Invoice{}, fmt.Errorf("iterate line items: %w", err)
	}
	return inv, nil
}

// DeleteInvoice removes an invoice; its line items go with it.
func (r *SQLiteRepository) DeleteInvoice(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete invoice %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListInvoices returns all invoices newest first, without line items.
// Denormalized totals make the items unnecessary for list and dashboard
// reads; GetInvoice loads the full aggregate.
func (r *SQLiteRepository) ListInvoices(ctx context.Context) ([]core.Invoice, error) {
	return r.queryInvoices(ctx, `
		SELECT id, number, status, client_name, client_email,
			tax_rate, discount, subtotal, tax, total,
			issued_date, due_date, paid_date, notes, created_at
		FROM invoices ORDER BY created_at DESC`)
}

// ListInvoicesByStatus returns invoices in one status, newest first,
// without line items.
func (r *SQLiteRepository) ListInvoicesByStatus(ctx context.Context, status core.InvoiceStatus) ([]core.Invoice, error) {
	return r.queryInvoices(ctx, `
		SELECT id, number, status, client_name, client_email,
			tax_rate, discount, subtotal, tax, total,
			issued_date, due_date, paid_date, notes, created_at
		FROM invoices WHERE status = ? ORDER BY created_at DESC`, string(status))
}

func (r *SQLiteRepository) queryInvoices(ctx context.Context, query string, args ...any) ([]core.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return invoices, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (core.Invoice, error) {
	var (
		inv                          core.Invoice
		status                       string
		taxRate                      string
		discount, subtotal, tax, tot string
		issued, createdAt            string
		dueDate, paidDate            sql.NullString
	)
	err := row.Scan(&inv.ID, &inv.Number, &status, &inv.ClientName, &inv.ClientEmail,
		&taxRate, &discount, &subtotal, &tax, &tot,
		&issued, &dueDate, &paidDate, &inv.Notes, &createdAt)
	if err != nil {
		return core.Invoice{}, err
	}

	if inv.Status, err = core.ParseInvoiceStatus(status); err != nil {
		return core.Invoice{}, fmt.Errorf("decode status %q: %w", status, err)
	}
	if inv.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
		return core.Invoice{}, fmt.Errorf("decode tax rate: %w", err)
	}
	for _, f := range []struct {
		dst *core.Money
		src string
	}{
		{&inv.Discount, discount},
		{&inv.Subtotal, subtotal},
		{&inv.Tax, tax},
		{&inv.Total, tot},
	} {
		if *f.dst, err = decodeMoney(f.src); err != nil {
			return core.Invoice{}, fmt.Errorf("decode amount: %w", err)
		}
	}
	if inv.IssuedDate, err = parseTime(issued); err != nil {
		return core.Invoice{}, fmt.Errorf("decode issued date: %w", err)
	}
	if inv.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Invoice{}, fmt.Errorf("decode created at: %w", err)
	}
	if inv.DueDate, err = parseTimePtr(dueDate); err != nil {
		return core.Invoice{}, fmt.Errorf("decode due date: %w", err)
	}
	if inv.PaidDate, err = parseTimePtr(paidDate); err != nil {
		return core.Invoice{}, fmt.Errorf("decode paid date: %w", err)
	}
	return inv, nil
}

// --- subscriptions ---

func (r *SQLiteRepository) CreateSubscription(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, name, amount, cadence, next_due_date,
			reminder_days_before, paused, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Name, sub.Amount.String(), string(sub.Cadence), fmtTime(sub.NextDueDate),
		sub.ReminderDaysBefore, boolToInt(sub.Paused), sub.Notes, fmtTime(sub.CreatedAt))
	if err != nil {
		return core.Subscription{}, fmt.Errorf("insert subscription: %w", err)
	}

	slog.InfoContext(ctx, "Subscription saved",
		"id", sub.ID,
		"name", sub.Name,
		"cadence", sub.Cadence,
		"next_due", sub.NextDueDate.Format("2006-01-02"))
	return sub, nil
}

func (r *SQLiteRepository) UpdateSubscription(ctx context.Context, sub core.Subscription) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET name = ?, amount = ?, cadence = ?, next_due_date = ?,
			reminder_days_before = ?, paused = ?, notes = ?
		WHERE id = ?`,
		sub.Name, sub.Amount.String(), string(sub.Cadence), fmtTime(sub.NextDueDate),
		sub.ReminderDaysBefore, boolToInt(sub.Paused), sub.Notes, sub.ID)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update subscription %s: %w", sub.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) GetSubscription(ctx context.Context, id string) (core.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, amount, cadence, next_due_date, reminder_days_before, paused, notes, created_at
		FROM subscriptions WHERE id = ?`, id)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Subscription{}, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
		}
		return core.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (r *SQLiteRepository) DeleteSubscription(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete subscription %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListSubscriptions returns every subscription, soonest due first.
func (r *SQLiteRepository) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	return r.querySubscriptions(ctx, `
		SELECT id, name, amount, cadence, next_due_date, reminder_days_before, paused, notes, created_at
		FROM subscriptions ORDER BY next_due_date`)
}

// ListActiveSubscriptions returns non-paused subscriptions, soonest due
// first.
func (r *SQLiteRepository) ListActiveSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	return r.querySubscriptions(ctx, `
		SELECT id, name, amount, cadence, next_due_date, reminder_days_before, paused, notes, created_at
		FROM subscriptions WHERE paused = 0 ORDER BY next_due_date`)
}

func (r *SQLiteRepository) querySubscriptions(ctx context.Context, query string, args ...any) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []core.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

func scanSubscription(row rowScanner) (core.Subscription, error) {
	var (
		sub              core.Subscription
		amount, cadence  string
		nextDue, created string
		paused           int
	)
	err := row.Scan(&sub.ID, &sub.Name, &amount, &cadence, &nextDue,
		&sub.ReminderDaysBefore, &paused, &sub.Notes, &created)
	if err != nil {
		return core.Subscription{}, err
	}

	if sub.Amount, err = decodeMoney(amount); err != nil {
		return core.Subscription{}, fmt.Errorf("decode amount: %w", err)
	}
	if sub.Cadence, err = core.ParseCadence(cadence); err != nil {
		return core.Subscription{}, fmt.Errorf("decode cadence %q: %w", cadence, err)
	}
	if sub.NextDueDate, err = parseTime(nextDue); err != nil {
		return core.Subscription{}, fmt.Errorf("decode next due date: %w", err)
	}
	if sub.CreatedAt, err = parseTime(created); err != nil {
		return core.Subscription{}, fmt.Errorf("decode created at: %w", err)
	}
	sub.Paused = paused != 0
	return sub, nil
}

// MarkSubscriptionPaid advances the due date and appends the payment
// record in one transaction: both commit together or neither does.
func (r *SQLiteRepository) MarkSubscriptionPaid(ctx context.Context, subscriptionID string, nextDue, paidAt time.Time) (core.BillPayment, error) {
	sub, err := r.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return core.BillPayment{}, err
	}

	payment := core.BillPayment{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		Amount:         sub.Amount, // snapshot, not a live reference
		PaidDate:       paidAt,
		CreatedAt:      time.Now().UTC(),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.BillPayment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET next_due_date = ? WHERE id = ?`,
		fmtTime(nextDue), sub.ID); err != nil {
		return core.BillPayment{}, fmt.Errorf("advance due date: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bill_payments (id, subscription_id, amount, paid_date, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		payment.ID, payment.SubscriptionID, payment.Amount.String(),
		fmtTime(payment.PaidDate), fmtTime(payment.CreatedAt)); err != nil {
		return core.BillPayment{}, fmt.Errorf("append bill payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.BillPayment{}, fmt.Errorf("commit mark paid: %w", err)
	}

	slog.InfoContext(ctx, "Subscription marked paid",
		"subscription_id", sub.ID,
		"payment_id", payment.ID,
		"amount", payment.Amount.String(),
		"next_due", nextDue.Format("2006-01-02"))
	return payment, nil
}

// --- bill payments ---

func (r *SQLiteRepository) GetBillPayment(ctx context.Context, id string) (core.BillPayment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, subscription_id, amount, paid_date, created_at
		FROM bill_payments WHERE id = ?`, id)

	p, err := scanBillPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.BillPayment{}, fmt.Errorf("bill payment %s: %w", id, ErrNotFound)
		}
		return core.BillPayment{}, fmt.Errorf("get bill payment: %w", err)
	}
	return p, nil
}

// ListBillPayments returns a subscription's payment history, newest
// first. The log is append-only; there is no update or delete.
func (r *SQLiteRepository) ListBillPayments(ctx context.Context, subscriptionID string) ([]core.BillPayment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subscription_id, amount, paid_date, created_at
		FROM bill_payments WHERE subscription_id = ? ORDER BY paid_date DESC`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("query bill payments: %w", err)
	}
	defer rows.Close()

	var payments []core.BillPayment
	for rows.Next() {
		p, err := scanBillPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bill payments: %w", err)
	}
	return payments, nil
}

func scanBillPayment(row rowScanner) (core.BillPayment, error) {
	var (
		p               core.BillPayment
		amount          string
		paidAt, created string
	)
	err := row.Scan(&p.ID, &p.SubscriptionID, &amount, &paidAt, &created)
	if err != nil {
		return core.BillPayment{}, err
	}
	if p.Amount, err = decodeMoney(amount); err != nil {
		return core.BillPayment{}, fmt.Errorf("decode amount: %w", err)
	}
	if p.PaidDate, err = parseTime(paidAt); err != nil {
		return core.BillPayment{}, fmt.Errorf("decode paid date: %w", err)
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return core.BillPayment{}, fmt.Errorf("decode created at: %w", err)
	}
	return p, nil
}

// --- reminders ---

// ListSubscriptionsNeedingReminder returns active subscriptions whose
// reminder window has opened and that have not been reminded for the
// current due date yet.
func (r *SQLiteRepository) ListSubscriptionsNeedingReminder(ctx context.Context, now time.Time) ([]core.Subscription, error) {
	return r.querySubscriptions(ctx, `
		SELECT id, name, amount, cadence, next_due_date, reminder_days_before, paused, notes, created_at
		FROM subscriptions
		WHERE paused = 0
		  AND (last_reminder_due IS NULL OR last_reminder_due != next_due_date)
		  AND date(next_due_date, '-' || reminder_days_before || ' days') <= date(?)
		ORDER BY next_due_date`, fmtTime(now))
}

// MarkReminderSent records that a reminder went out for the given due
// date, so the same cycle is not reminded twice.
func (r *SQLiteRepository) MarkReminderSent(ctx context.Context, subscriptionID string, dueDate time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_reminder_due = ? WHERE id = ?`,
		fmtTime(dueDate), subscriptionID)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark reminder sent %s: %w", subscriptionID, ErrNotFound)
	}
	return nil
}

// --- codecs ---

// decodeMoney accepts signed decimal text. ParseMoney is deliberately
// not used here: stored totals can legitimately be negative under the
// unclamped-discount rule.
func decodeMoney(s string) (core.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	return core.NewMoney(d), nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
