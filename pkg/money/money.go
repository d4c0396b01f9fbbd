// Package money holds decimal helpers for two-decimal currency amounts.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor-unit digits stored for every amount.
const Scale = 2

var (
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrTooManyDecimal = errors.New("amount_precision_exceeded")
)

// Parse reads a decimal string such as "1250.50".
func Parse(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ValidatePositive checks amount > 0 with at most Scale decimal places.
func ValidatePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !HasValidScale(amount) {
		return ErrTooManyDecimal
	}
	return nil
}

func HasValidScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(Scale))
}

// Round normalizes an amount to Scale using banker's rounding.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundBank(Scale)
}

func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Max0 clamps negative amounts to zero.
func Max0(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// String formats with exactly Scale decimal places.
func String(amount decimal.Decimal) string {
	return amount.StringFixed(Scale)
}
