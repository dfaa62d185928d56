// Package core holds the domain model: money arithmetic, invoices,
// subscriptions and the payment log.
//
// All currency values use exact base-10 decimal arithmetic. Binary
// floating point never touches an amount; display rounding happens only
// at the formatting helpers.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal currency amount. The zero value is zero money.
type Money struct {
	amount decimal.Decimal
}

// NewMoney wraps a decimal amount as Money.
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// ZeroMoney returns the zero amount.
func ZeroMoney() Money {
	return Money{}
}

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Signs are rejected: user-entered amounts are always non-negative,
// negative values only ever arise from arithmetic (unclamped discounts).
//
// Examples:
//
//	ParseMoney("12.34") -> 12.34, nil
//	ParseMoney("12,34") -> 12.34, nil
//	ParseMoney("-1")    -> 0, ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{amount: d}, nil
}

// MustMoney parses a decimal string or panics. Intended for constants
// and test fixtures only.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(fmt.Sprintf("core: bad money literal %q", s))
	}
	return m
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Sub returns m - other. The result may be negative.
func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// MulQuantity scales the amount by a plain quantity (line item quantity
// times unit price). The quantity is converted to decimal via its
// shortest exact representation, so reasonable magnitudes lose nothing.
func (m Money) MulQuantity(q float64) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromFloat(q))}
}

// MulRate scales the amount by a decimal fraction (e.g. a 0.18 tax rate).
func (m Money) MulRate(rate decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(rate)}
}

// Neg returns the amount with its sign flipped.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg()}
}

// Cmp compares two amounts: -1 if m < other, 0 if equal, 1 if m > other.
func (m Money) Cmp(other Money) int {
	return m.amount.Cmp(other.amount)
}

// Equal reports whether two amounts are numerically equal.
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// String returns the exact decimal representation without display rounding.
func (m Money) String() string {
	return m.amount.String()
}

// Display returns the amount rounded to two fraction digits for
// presentation. Calculations never go through this.
func (m Money) Display() string {
	return m.amount.StringFixed(2)
}

// MarshalJSON encodes the amount as a decimal string to keep exactness
// over the wire.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.amount.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("unmarshal money: %w", ErrInvalidAmount)
	}
	m.amount = d
	return nil
}
