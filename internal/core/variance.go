package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PriceVariance quantifies the discrepancy between the price actually
// charged on a receipt line and the period-locked expected price.
type PriceVariance struct {
	Variance        decimal.Decimal // 4dp, actual − expected, positive = overcharge
	VariancePercent decimal.Decimal // 2dp
	VarianceAmount  decimal.Decimal // 2dp, variance × quantity
	HasVariance     bool
}

// CheckPriceVariance compares the actual against the expected unit price.
//
// Policy: zero tolerance. Any non-zero deviation, down to a sub-cent
// difference surviving 4dp rounding, counts as a variance and produces an
// NCR; triage is a human job. Do not add a threshold here.
//
// When the expected price is 0 and the actual is positive, the percent is
// defined as 100 (full deviation from a zero baseline); when both are 0 it
// is 0.
func CheckPriceVariance(actualUnitPrice, expectedUnitPrice, quantity decimal.Decimal) (PriceVariance, error) {
	if actualUnitPrice.IsNegative() {
		return PriceVariance{}, fmt.Errorf("%w: actual unit price %s is negative", ErrInvalidInput, actualUnitPrice)
	}
	if expectedUnitPrice.IsNegative() {
		return PriceVariance{}, fmt.Errorf("%w: expected unit price %s is negative", ErrInvalidInput, expectedUnitPrice)
	}
	if !quantity.IsPositive() {
		return PriceVariance{}, fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidInput, quantity)
	}

	variance := actualUnitPrice.Sub(expectedUnitPrice)

	var percent decimal.Decimal
	switch {
	case expectedUnitPrice.IsPositive():
		percent = variance.Div(expectedUnitPrice).Mul(hundred)
	case actualUnitPrice.IsPositive():
		percent = hundred
	default:
		percent = decimal.Zero
	}

	return PriceVariance{
		Variance:        variance.Round(UnitPrecision),
		VariancePercent: percent.Round(MoneyPrecision),
		VarianceAmount:  variance.Mul(quantity).Round(MoneyPrecision),
		HasVariance:     !variance.IsZero(),
	}, nil
}
