package core_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"stockcost/internal/core"
)

var testPostedAt = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func TestPostBatch_CommitsCleanBatch(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	result, err := svc.receipts.PostBatch(ctx, core.PostBatchInput{
		LocationCode: "MAIN",
		Supplier:     "ACME Foods",
		Reference:    "GRN-TEST-001",
		PostedAt:     testPostedAt,
		Lines: []core.BatchLineInput{
			{ItemCode: "FLOUR", Quantity: d("100"), UnitPrice: d("10.00")},
			{ItemCode: "SUGAR", Quantity: d("40"), UnitPrice: d("12.50")},
		},
	})
	if err != nil {
		t.Fatalf("PostBatch failed: %v", err)
	}

	if result.Batch.Status != core.BatchCommitted {
		t.Errorf("batch status = %s, want %s", result.Batch.Status, core.BatchCommitted)
	}
	if !strings.HasPrefix(result.Batch.BatchNumber, "GRN-") {
		t.Errorf("batch number %q lacks GRN- prefix", result.Batch.BatchNumber)
	}
	if result.HasVariance || len(result.NCRs) != 0 {
		t.Errorf("clean batch reported variances: %+v", result.NCRs)
	}
	if len(result.Lines) != 2 {
		t.Fatalf("got %d line results, want 2", len(result.Lines))
	}

	qty, wac := positionFor(t, pool, "MAIN", "FLOUR")
	if !qty.Equal(d("100")) || !wac.Equal(d("10")) {
		t.Errorf("FLOUR position = %s @ %s, want 100 @ 10", qty, wac)
	}
	qty, wac = positionFor(t, pool, "MAIN", "SUGAR")
	if !qty.Equal(d("40")) || !wac.Equal(d("12.5")) {
		t.Errorf("SUGAR position = %s @ %s, want 40 @ 12.5", qty, wac)
	}

	if n := countRows(t, pool, "stock_movements"); n != 2 {
		t.Errorf("got %d movements, want 2", n)
	}
	if n := countRows(t, pool, "ncrs"); n != 0 {
		t.Errorf("got %d NCRs, want 0", n)
	}

	batch, lines, err := svc.receipts.GetBatch(ctx, "GRN-TEST-001")
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if batch.HasVariance {
		t.Error("stored batch flagged a variance")
	}
	if len(lines) != 2 || lines[0].LineNo != 1 || lines[1].LineNo != 2 {
		t.Errorf("unexpected stored lines: %+v", lines)
	}
}

func TestPostBatch_BlendsWAC(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	_, err := svc.receipts.PostBatch(ctx, core.PostBatchInput{
		LocationCode: "MAIN",
		Reference:    "GRN-BLEND-1",
		PostedAt:     testPostedAt,
		Lines:        []core.BatchLineInput{{ItemCode: "FLOUR", Quantity: d("100"), UnitPrice: d("10.00")}},
	})
	if err != nil {
		t.Fatalf("first PostBatch failed: %v", err)
	}

	result, err := svc.receipts.PostBatch(ctx, core.PostBatchInput{
		LocationCode: "MAIN",
		Reference:    "GRN-BLEND-2",
		PostedAt:     testPostedAt,
		Lines:        []core.BatchLineInput{{ItemCode: "FLOUR", Quantity: d("50"), UnitPrice: d("12.00")}},
	})
	if err != nil {
		t.Fatalf("second PostBatch failed: %v", err)
	}

	qty, wac := positionFor(t, pool, "MAIN", "FLOUR")
	if !qty.Equal(d("150")) {
		t.Errorf("qty = %s, want 150", qty)
	}
	if !wac.Equal(d("10.6667")) {
		t.Errorf("wac = %s, want 10.6667", wac)
	}

	line := result.Lines[0]
	if !line.WAC.NewValue.Equal(d("1600.00")) {
		t.Errorf("new value = %s, want 1600.00", line.WAC.NewValue)
	}

	// 12.00 against the expected 10.00 is a 20% overcharge worth 100.00.
	if !result.HasVariance || len(result.NCRs) != 1 {
		t.Fatalf("expected exactly one NCR, got %+v", result.NCRs)
	}
	ncr := result.NCRs[0]
	if !ncr.Variance.Equal(d("2")) || !ncr.VariancePercent.Equal(d("20")) || !ncr.VarianceAmount.Equal(d("100.00")) {
		t.Errorf("NCR variance = %s / %s%% / %s", ncr.Variance, ncr.VariancePercent, ncr.VarianceAmount)
	}
	if ncr.Status != core.NCROpen || !ncr.AutoGenerated {
		t.Errorf("NCR status = %s, auto = %v, want OPEN auto-generated", ncr.Status, ncr.AutoGenerated)
	}
	if !strings.HasPrefix(ncr.NCRNumber, "NCR-") {
		t.Errorf("NCR number %q lacks NCR- prefix", ncr.NCRNumber)
	}
	if !result.Batch.HasVariance {
		t.Error("batch not flagged despite a variance line")
	}
}

func TestPostBatch_DuplicateReference(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	input := core.PostBatchInput{
		LocationCode: "MAIN",
		Reference:    "GRN-DUP-1",
		PostedAt:     testPostedAt,
		Lines:        []core.BatchLineInput{{ItemCode: "FLOUR", Quantity: d("10"), UnitPrice: d("10.00")}},
	}
	if _, err := svc.receipts.PostBatch(ctx, input); err != nil {
		t.Fatalf("first PostBatch failed: %v", err)
	}

	_, err := svc.receipts.PostBatch(ctx, input)
	if !errors.Is(err, core.ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}

	// The rejected repost must not have touched stock.
	qty, _ := positionFor(t, pool, "MAIN", "FLOUR")
	if !qty.Equal(d("10")) {
		t.Errorf("qty = %s after duplicate repost, want 10", qty)
	}
	if n := countRows(t, pool, "stock_movements"); n != 1 {
		t.Errorf("got %d movements, want 1", n)
	}
}

func TestPostBatch_AtomicRollback(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	// OIL has no expected price in the seeded period, so the second line
	// aborts the batch after the first already applied inside the
	// transaction.
	_, err := svc.receipts.PostBatch(ctx, core.PostBatchInput{
		LocationCode: "MAIN",
		Reference:    "GRN-ATOMIC-1",
		PostedAt:     testPostedAt,
		Lines: []core.BatchLineInput{
			{ItemCode: "FLOUR", Quantity: d("100"), UnitPrice: d("10.00")},
			{ItemCode: "OIL", Quantity: d("5"), UnitPrice: d("3.00")},
		},
	})
	if !errors.Is(err, core.ErrNoPeriodPrice) {
		t.Fatalf("expected ErrNoPeriodPrice, got %v", err)
	}

	for _, table := range []string{"receipt_batches", "receipt_lines", "stock_movements", "stock_positions", "ncrs"} {
		if n := countRows(t, pool, table); n != 0 {
			t.Errorf("%s has %d rows after rollback, want 0", table, n)
		}
	}
}

func TestPostBatch_UnknownLocationAndItem(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	_, err := svc.receipts.PostBatch(ctx, core.PostBatchInput{
		LocationCode: "NOWHERE",
		Reference:    "GRN-X-1",
		PostedAt:     testPostedAt,
		Lines:        []core.BatchLineInput{{ItemCode: "FLOUR", Quantity: d("1"), UnitPrice: d("10.00")}},
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown location: expected ErrNotFound, got %v", err)
	}

	_, err = svc.receipts.PostBatch(ctx, core.PostBatchInput{
		LocationCode: "MAIN",
		Reference:    "GRN-X-2",
		PostedAt:     testPostedAt,
		Lines:        []core.BatchLineInput{{ItemCode: "UNOBTAINIUM", Quantity: d("1"), UnitPrice: d("10.00")}},
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown item: expected ErrNotFound, got %v", err)
	}

	if n := countRows(t, pool, "receipt_batches"); n != 0 {
		t.Errorf("got %d batches after failed posts, want 0", n)
	}
}

func TestPostBatch_NoOpenPeriod(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)

	_, err := svc.receipts.PostBatch(context.Background(), core.PostBatchInput{
		LocationCode: "MAIN",
		Reference:    "GRN-NOPERIOD-1",
		PostedAt:     time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC),
		Lines:        []core.BatchLineInput{{ItemCode: "FLOUR", Quantity: d("1"), UnitPrice: d("10.00")}},
	})
	if !errors.Is(err, core.ErrNoOpenPeriod) {
		t.Fatalf("expected ErrNoOpenPeriod, got %v", err)
	}
}

func TestPostBatch_ValidationRejects(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	tests := []struct {
		name  string
		input core.PostBatchInput
	}{
		{"empty location", core.PostBatchInput{Reference: "R1", Lines: []core.BatchLineInput{{ItemCode: "FLOUR", Quantity: d("1"), UnitPrice: d("1")}}}},
		{"empty reference", core.PostBatchInput{LocationCode: "MAIN", Lines: []core.BatchLineInput{{ItemCode: "FLOUR", Quantity: d("1"), UnitPrice: d("1")}}}},
		{"no lines", core.PostBatchInput{LocationCode: "MAIN", Reference: "R2"}},
		{"zero quantity", core.PostBatchInput{LocationCode: "MAIN", Reference: "R3", Lines: []core.BatchLineInput{{ItemCode: "FLOUR", Quantity: d("0"), UnitPrice: d("1")}}}},
		{"negative price", core.PostBatchInput{LocationCode: "MAIN", Reference: "R4", Lines: []core.BatchLineInput{{ItemCode: "FLOUR", Quantity: d("1"), UnitPrice: d("-1")}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.receipts.PostBatch(ctx, tt.input); !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

// Two batches hitting the same (location, item) concurrently must serialize
// on the position row lock; neither update may be lost.
func TestPostBatch_ConcurrentSameItem(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	const workers = 4
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.receipts.PostBatch(ctx, core.PostBatchInput{
				LocationCode: "MAIN",
				Reference:    fmt.Sprintf("GRN-CONC-%d", i),
				PostedAt:     testPostedAt,
				Lines:        []core.BatchLineInput{{ItemCode: "FLOUR", Quantity: d("25"), UnitPrice: d("10.00")}},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent PostBatch failed: %v", err)
		}
	}

	qty, wac := positionFor(t, pool, "MAIN", "FLOUR")
	if !qty.Equal(d("100")) {
		t.Errorf("qty = %s after %d concurrent batches of 25, want 100", qty, workers)
	}
	if !wac.Equal(d("10")) {
		t.Errorf("wac = %s, want 10", wac)
	}
	if n := countRows(t, pool, "stock_movements"); n != workers {
		t.Errorf("got %d movements, want %d", n, workers)
	}
}

func TestNCR_ResolveLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newTestServices(pool)
	ctx := context.Background()

	result, err := svc.receipts.PostBatch(ctx, core.PostBatchInput{
		LocationCode: "MAIN",
		Reference:    "GRN-NCR-1",
		PostedAt:     testPostedAt,
		Lines:        []core.BatchLineInput{{ItemCode: "SUGAR", Quantity: d("20"), UnitPrice: d("13.00")}},
	})
	if err != nil {
		t.Fatalf("PostBatch failed: %v", err)
	}
	if len(result.NCRs) != 1 {
		t.Fatalf("expected one NCR, got %d", len(result.NCRs))
	}
	number := result.NCRs[0].NCRNumber

	open, err := svc.ncrs.List(ctx, core.NCROpen)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(open) != 1 || open[0].NCRNumber != number {
		t.Fatalf("open list = %+v, want just %s", open, number)
	}
	if open[0].LocationCode != "MAIN" || open[0].ItemCode != "SUGAR" {
		t.Errorf("NCR context = %s/%s, want MAIN/SUGAR", open[0].LocationCode, open[0].ItemCode)
	}

	resolved, err := svc.ncrs.Resolve(ctx, number, "supplier credited the difference", "supervisor1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.Status != core.NCRResolved {
		t.Errorf("status = %s, want %s", resolved.Status, core.NCRResolved)
	}
	if resolved.ResolvedBy != "supervisor1" || resolved.ResolvedAt == nil {
		t.Errorf("resolution metadata missing: %+v", resolved)
	}

	// A resolved NCR cannot be resolved twice.
	if _, err := svc.ncrs.Resolve(ctx, number, "again", "supervisor1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second resolve: expected ErrNotFound, got %v", err)
	}

	open, err = svc.ncrs.List(ctx, core.NCROpen)
	if err != nil {
		t.Fatalf("List after resolve failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("open list still has %d entries", len(open))
	}
}
