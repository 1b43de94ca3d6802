// Package money converts between user-facing decimal strings and the int64
// minor units (cents) every ledger amount is stored in.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

const minorExp = -2

// ParseMinor reads a plain decimal such as "12.5" or ".05" into minor units.
// Exponents, separators and more than two fraction digits are rejected.
func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || strings.ContainsAny(trimmed, "eE,_ ") {
		return 0, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if frac, ok := fraction(trimmed); ok && len(frac) > 2 {
		return 0, ErrTooManyDecimals
	}
	minor := value.Shift(2)
	if !minor.IsInteger() || minor.Abs().GreaterThan(decimal.NewFromInt(1<<62)) {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

func FormatMinor(value int64) string {
	return ToDecimal(value).StringFixed(2)
}

// ApplyRate returns amountMinor multiplied by rate, rounded half-to-even to
// the nearest minor unit.
func ApplyRate(amountMinor int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amountMinor).Mul(rate).RoundBank(0).IntPart()
}

// FromDecimal converts a major-unit decimal into minor units.
func FromDecimal(value decimal.Decimal) int64 {
	return value.Shift(2).RoundBank(0).IntPart()
}

func ToDecimal(valueMinor int64) decimal.Decimal {
	return decimal.New(valueMinor, minorExp)
}

func fraction(input string) (string, bool) {
	_, frac, ok := strings.Cut(input, ".")
	return frac, ok
}
