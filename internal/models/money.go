package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits money values may carry.
const MoneyScale = 2

// ToMinor converts an amount to integer minor units (cents).
// The amount must already satisfy CheckMoney.
func ToMinor(d decimal.Decimal) int64 {
	return d.Shift(MoneyScale).IntPart()
}

// FromMinor converts integer minor units back to a decimal amount.
func FromMinor(n int64) decimal.Decimal {
	return decimal.New(n, -MoneyScale)
}

// CheckMoney rejects amounts that cannot be stored as int64 minor units.
func CheckMoney(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(MoneyScale)) {
		return fmt.Errorf("%w: %s must have at most %d decimal places", ErrValidation, field, MoneyScale)
	}
	if !InMinorRange(d) {
		return fmt.Errorf("%w: %s is out of range", ErrValidation, field)
	}
	return nil
}

// InMinorRange reports whether d, shifted to minor units, fits in an int64.
func InMinorRange(d decimal.Decimal) bool {
	return d.Shift(MoneyScale).BigInt().IsInt64()
}
