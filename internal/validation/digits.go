package validation

import (
	"math/big"

	"github.com/shopspring/decimal"

	"FairValue/internal/model"
)

// DigitLimit bounds the integer and fractional digits of a decimal column.
type DigitLimit struct {
	Integer  int
	Fraction int
}

var (
	// RateDigits applies to percentage-scale rates.
	RateDigits = DigitLimit{Integer: 10, Fraction: 6}
	// PerShareDigits applies to per-share values and prices.
	PerShareDigits = DigitLimit{Integer: 20, Fraction: 6}
	// AggregateDigits applies to company-level dollar figures.
	AggregateDigits = DigitLimit{Integer: 25, Fraction: 2}
)

var (
	bigZero = big.NewInt(0)
	bigTen  = big.NewInt(10)
)

// Digits returns the integer and fractional digit counts of v after
// trailing zeros are stripped, so 10.1000 counts as (2, 1).
func Digits(v decimal.Decimal) (integer, fraction int) {
	coef := new(big.Int).Abs(v.Coefficient())
	if coef.Sign() == 0 {
		return 1, 0
	}
	exp := int(v.Exponent())

	q, r := new(big.Int), new(big.Int)
	for {
		q.QuoRem(coef, bigTen, r)
		if r.Cmp(bigZero) != 0 {
			break
		}
		coef.Set(q)
		exp++
	}

	precision := len(coef.String())
	scale := -exp
	integer = precision - scale
	if integer < 0 {
		integer = 0
	}
	if scale > 0 {
		fraction = scale
	}
	return integer, fraction
}

// CheckDigits reports a validation error when v does not fit limit.
// The fractional part is checked first.
func CheckDigits(field string, v decimal.Decimal, limit DigitLimit) error {
	integer, fraction := Digits(v)
	if fraction > limit.Fraction {
		return model.Validation(CodeScaleExceeded,
			"%s has %d fractional digits, at most %d allowed", field, fraction, limit.Fraction)
	}
	if integer > limit.Integer {
		return model.Validation(CodePrecisionExceeded,
			"%s has %d integer digits, at most %d allowed", field, integer, limit.Integer)
	}
	return nil
}
