package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Precision applied to computation outputs: per-unit costs and quantities
// carry 4 fractional digits, monetary values the currency's 2 minor-unit
// digits.
const (
	UnitPrecision  = 4
	MoneyPrecision = 2
)

// WACResult is the outcome of one weighted-average-cost recalculation.
// NewValue always equals CurrentValue + ReceiptValue to within one minor
// unit because rounding happens once, on the final figures.
type WACResult struct {
	PreviousWAC  decimal.Decimal // 4dp
	NewWAC       decimal.Decimal // 4dp
	NewQuantity  decimal.Decimal // 4dp
	CurrentValue decimal.Decimal // 2dp, quantity × WAC before the receipt
	ReceiptValue decimal.Decimal // 2dp, received quantity × receipt price
	NewValue     decimal.Decimal // 2dp, inventory value after the receipt
}

// RecalculateWAC blends an incoming receipt into the current stock position:
//
//	newWAC = (currentQty×currentWAC + receivedQty×unitPrice) / (currentQty + receivedQty)
//
// A first-ever receipt (currentQty = 0, currentWAC = 0) reduces to
// newWAC = unitPrice. The function is pure and deterministic; identical
// inputs always yield identical results.
//
// Negative current quantity or WAC, non-positive received quantity, or a
// negative unit price indicate a corrupted position or a caller bug and are
// rejected with ErrInvalidInput. Rounding is applied once, to the outputs,
// never to intermediates, so repeated receipts do not compound rounding
// error.
func RecalculateWAC(currentQty, currentWAC, receivedQty, unitPrice decimal.Decimal) (WACResult, error) {
	if currentQty.IsNegative() {
		return WACResult{}, fmt.Errorf("%w: current quantity %s is negative", ErrInvalidInput, currentQty)
	}
	if currentWAC.IsNegative() {
		return WACResult{}, fmt.Errorf("%w: current WAC %s is negative", ErrInvalidInput, currentWAC)
	}
	if !receivedQty.IsPositive() {
		return WACResult{}, fmt.Errorf("%w: received quantity must be positive, got %s", ErrInvalidInput, receivedQty)
	}
	if unitPrice.IsNegative() {
		return WACResult{}, fmt.Errorf("%w: unit price %s is negative", ErrInvalidInput, unitPrice)
	}

	currentValue := currentQty.Mul(currentWAC)
	receiptValue := receivedQty.Mul(unitPrice)
	newQty := currentQty.Add(receivedQty)
	// newQty > 0 is guaranteed: receivedQty > 0 and currentQty >= 0.
	newWAC := currentValue.Add(receiptValue).Div(newQty)

	return WACResult{
		PreviousWAC:  currentWAC.Round(UnitPrecision),
		NewWAC:       newWAC.Round(UnitPrecision),
		NewQuantity:  newQty.Round(UnitPrecision),
		CurrentValue: currentValue.Round(MoneyPrecision),
		ReceiptValue: receiptValue.Round(MoneyPrecision),
		NewValue:     currentValue.Add(receiptValue).Round(MoneyPrecision),
	}, nil
}
