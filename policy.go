package main

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeePolicy computes a fee from a gross amount. It is immutable once
// constructed.
type FeePolicy struct {
	feeRate decimal.Decimal
}

// NewFeePolicy validates and returns a FeePolicy. feeRate must be >= 0.
func NewFeePolicy(feeRate decimal.Decimal) (FeePolicy, error) {
	if feeRate.IsNegative() {
		return FeePolicy{}, fmt.Errorf("policy: fee rate must not be negative, got %s", feeRate)
	}
	return FeePolicy{feeRate: feeRate}, nil
}

// DefaultFeePolicy is the 1% fee rate used unless overridden by config.
func DefaultFeePolicy() FeePolicy {
	p, err := NewFeePolicy(decimal.NewFromFloat(0.01))
	if err != nil {
		panic(err)
	}
	return p
}

// Fee computes quantise(amount * feeRate) with half-up rounding at scale 2.
func (p FeePolicy) Fee(amount Money) Money {
	return amount.Mul(p.feeRate)
}

// SplitPolicy splits a fee into a safety portion and a growth portion.
// It is immutable once constructed.
type SplitPolicy struct {
	safetyShare decimal.Decimal
}

// NewSplitPolicy validates and returns a SplitPolicy. safetyShare must be
// in [0, 1].
func NewSplitPolicy(safetyShare decimal.Decimal) (SplitPolicy, error) {
	if safetyShare.IsNegative() || safetyShare.GreaterThan(decimal.NewFromInt(1)) {
		return SplitPolicy{}, fmt.Errorf("policy: safety share must be within [0, 1], got %s", safetyShare)
	}
	return SplitPolicy{safetyShare: safetyShare}, nil
}

// DefaultSplitPolicy is the 50/50 safety/growth split used unless
// overridden by config.
func DefaultSplitPolicy() SplitPolicy {
	p, err := NewSplitPolicy(decimal.NewFromFloat(0.5))
	if err != nil {
		panic(err)
	}
	return p
}

// Split returns (safety, growth) such that safety+growth == fee exactly.
// growth is computed as fee-safety rather than quantise(fee*(1-safetyShare))
// specifically to guarantee that equality as decimals.
func (p SplitPolicy) Split(fee Money) (safety, growth Money) {
	safety = fee.Mul(p.safetyShare)
	// growth is derived by subtraction, not a second multiplication, so
	// safety+growth always equals fee exactly.
	growthAmount := fee.Amount.Sub(safety.Amount)
	growth = Money{Amount: growthAmount, Currency: fee.Currency}
	return safety, growth
}
