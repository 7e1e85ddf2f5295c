package core_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"stockcost/internal/core"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRecalculateWAC(t *testing.T) {
	tests := []struct {
		name                                        string
		currentQty, currentWAC, receivedQty, price  string
		wantWAC, wantQty, wantValue                 string
		wantCurrentValue, wantReceiptValue          string
	}{
		{
			name:       "blend 100@10 with 50@12",
			currentQty: "100", currentWAC: "10.00", receivedQty: "50", price: "12.00",
			wantWAC: "10.6667", wantQty: "150.0000", wantValue: "1600.00",
			wantCurrentValue: "1000.00", wantReceiptValue: "600.00",
		},
		{
			name:       "first receipt seeds WAC at receipt price",
			currentQty: "0", currentWAC: "0", receivedQty: "20", price: "5.50",
			wantWAC: "5.5000", wantQty: "20.0000", wantValue: "110.00",
			wantCurrentValue: "0.00", wantReceiptValue: "110.00",
		},
		{
			name:       "free stock does not change value",
			currentQty: "10", currentWAC: "4.00", receivedQty: "5", price: "0",
			wantWAC: "2.6667", wantQty: "15.0000", wantValue: "40.00",
			wantCurrentValue: "40.00", wantReceiptValue: "0.00",
		},
		{
			name:       "fractional quantities",
			currentQty: "2.5", currentWAC: "3.3333", receivedQty: "0.5", price: "4.1",
			wantWAC: "3.4611", wantQty: "3.0000", wantValue: "10.38",
			wantCurrentValue: "8.33", wantReceiptValue: "2.05",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := core.RecalculateWAC(d(tt.currentQty), d(tt.currentWAC), d(tt.receivedQty), d(tt.price))
			if err != nil {
				t.Fatalf("RecalculateWAC failed: %v", err)
			}
			if got.NewWAC.String() != d(tt.wantWAC).String() {
				t.Errorf("NewWAC = %s, want %s", got.NewWAC, tt.wantWAC)
			}
			if !got.NewQuantity.Equal(d(tt.wantQty)) {
				t.Errorf("NewQuantity = %s, want %s", got.NewQuantity, tt.wantQty)
			}
			if !got.NewValue.Equal(d(tt.wantValue)) {
				t.Errorf("NewValue = %s, want %s", got.NewValue, tt.wantValue)
			}
			if !got.CurrentValue.Equal(d(tt.wantCurrentValue)) {
				t.Errorf("CurrentValue = %s, want %s", got.CurrentValue, tt.wantCurrentValue)
			}
			if !got.ReceiptValue.Equal(d(tt.wantReceiptValue)) {
				t.Errorf("ReceiptValue = %s, want %s", got.ReceiptValue, tt.wantReceiptValue)
			}
			if got.NewWAC.IsNegative() || got.NewQuantity.IsNegative() {
				t.Errorf("non-negativity violated: wac=%s qty=%s", got.NewWAC, got.NewQuantity)
			}
		})
	}
}

func TestRecalculateWAC_InvalidInput(t *testing.T) {
	tests := []struct {
		name                                       string
		currentQty, currentWAC, receivedQty, price string
	}{
		{"negative current quantity", "-1", "10", "5", "2"},
		{"negative current WAC", "10", "-0.01", "5", "2"},
		{"zero received quantity", "10", "10", "0", "2"},
		{"negative received quantity", "10", "10", "-5", "2"},
		{"negative price", "10", "10", "5", "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := core.RecalculateWAC(d(tt.currentQty), d(tt.currentWAC), d(tt.receivedQty), d(tt.price))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

// Sequential receipts model reality; the conserved property is value, not
// order-independence of the average itself.
func TestRecalculateWAC_ValueConservation(t *testing.T) {
	qty, wac := d("0"), d("0")
	receipts := []struct{ q, p string }{
		{"100", "10.00"},
		{"50", "12.00"},
		{"33.3333", "9.95"},
		{"7", "11.113"},
		{"250", "10.4999"},
	}

	totalValue := decimal.Zero
	for _, rc := range receipts {
		got, err := core.RecalculateWAC(qty, wac, d(rc.q), d(rc.p))
		if err != nil {
			t.Fatalf("RecalculateWAC(%s, %s, %s, %s) failed: %v", qty, wac, rc.q, rc.p, err)
		}

		// newQuantity × newWAC must equal currentValue + receiptValue up to
		// the unit-cost rounding step, which scales with quantity.
		implied := got.NewQuantity.Mul(got.NewWAC).Round(core.MoneyPrecision)
		tolerance := got.NewQuantity.Mul(d("0.00005")).Add(d("0.01"))
		diff := implied.Sub(got.NewValue).Abs()
		if diff.GreaterThan(tolerance) {
			t.Errorf("value drift %s after receipt %s@%s: implied %s, tracked %s",
				diff, rc.q, rc.p, implied, got.NewValue)
		}

		totalValue = totalValue.Add(d(rc.q).Mul(d(rc.p)))
		if diff := got.NewValue.Sub(totalValue.Round(core.MoneyPrecision)).Abs(); diff.GreaterThan(tolerance) {
			t.Errorf("cumulative value drift %s: got %s, want %s", diff, got.NewValue, totalValue)
		}

		qty, wac = got.NewQuantity, got.NewWAC
	}
}

func TestRecalculateWAC_Deterministic(t *testing.T) {
	a, err := core.RecalculateWAC(d("33.3333"), d("7.1234"), d("11.5"), d("6.99"))
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	b, err := core.RecalculateWAC(d("33.3333"), d("7.1234"), d("11.5"), d("6.99"))
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if a.NewWAC.String() != b.NewWAC.String() ||
		a.NewQuantity.String() != b.NewQuantity.String() ||
		a.NewValue.String() != b.NewValue.String() {
		t.Errorf("identical inputs produced different results: %+v vs %+v", a, b)
	}
}
