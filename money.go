package main

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a Money value is constructed without an
// explicit currency code.
const DefaultCurrency = "USD"

// moneyScale is the number of fractional digits every Money value is
// quantised to.
const moneyScale = 2

// Money is an exact, non-negative decimal amount tagged with a 3-letter
// currency code. It is always quantised to two fractional digits using
// half-up rounding; shopspring/decimal's Round rounds half away from
// zero, which for a non-negative amount is exactly half-up.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney constructs a Money value, quantising amount to two fractional
// digits. It fails if amount is negative.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("money: amount must not be negative, got %s", amount)
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: quantise(amount), Currency: currency}, nil
}

// MustMoney is NewMoney but panics on error; useful for constants and tests.
func MustMoney(amount decimal.Decimal, currency string) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// ZeroMoney returns the zero amount in the given currency.
func ZeroMoney(currency string) Money {
	return MustMoney(decimal.Zero, currency)
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Add returns m+other, re-quantised to scale 2. Fails if currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("money: currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return NewMoney(m.Amount.Add(other.Amount), m.Currency)
}

// Sub returns m-other, re-quantised to scale 2. Fails if currencies differ
// or the result would be negative.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("money: currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return NewMoney(m.Amount.Sub(other.Amount), m.Currency)
}

// Mul multiplies the amount by a dimensionless rate and re-quantises.
// The result is not validated for non-negativity by the caller's rate
// (callers are expected to pass non-negative rates).
func (m Money) Mul(rate decimal.Decimal) Money {
	return Money{Amount: quantise(m.Amount.Mul(rate)), Currency: m.Currency}
}

// String formats the amount with exactly two fractional digits, e.g. "100.00".
func (m Money) String() string {
	return m.Amount.StringFixed(moneyScale)
}

// quantise rounds d to moneyScale fractional digits using half-up rounding.
func quantise(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyScale)
}
