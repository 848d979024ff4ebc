package core

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	oneCent  = decimal.NewFromInt(1)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// ToCents converts a monetary value to integer cents, rounding half away
// from zero on the third decimal place. Values outside the int64 range are
// not representable; check them with Cents first.
//
// Examples:
//
//	ToCents(12.34)  -> 1234
//	ToCents(12.345) -> 1235
//	ToCents(12.344) -> 1234
func ToCents(v decimal.Decimal) int64 {
	return v.Round(2).Shift(2).IntPart()
}

// Cents returns the stored form of a positive value. ok is false when the
// rounded amount is below one cent or does not fit in an int64.
func Cents(v decimal.Decimal) (cents int64, ok bool) {
	c := v.Round(2).Shift(2)
	if c.LessThan(oneCent) || c.GreaterThan(maxCents) {
		return 0, false
	}
	return c.IntPart(), true
}

// StoredCents is Cents for the persistence layer: an amount that cannot be
// stored is reported with the value validation message.
func StoredCents(v decimal.Decimal) (int64, error) {
	cents, ok := Cents(v)
	if !ok {
		return 0, NewBusinessRuleError(MsgValorInvalido)
	}
	return cents, nil
}

// FromCents is the inverse of ToCents.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
