package cache

import (
	"testing"
	"time"
)

func TestCache_GetSet(t *testing.T) {
	c := New(map[Category]time.Duration{CategoryStock: time.Minute})

	if _, ok := c.Get(CategoryStock, "all"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(CategoryStock, "all", 42)
	v, ok := c.Get(CategoryStock, "all")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if v.(int) != 42 {
		t.Errorf("got %v, want 42", v)
	}

	if _, ok := c.Get(CategoryStock, "other"); ok {
		t.Error("different key must miss")
	}
	if _, ok := c.Get(CategoryNCRs, "all"); ok {
		t.Error("different category must miss")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New(map[Category]time.Duration{CategoryStock: 10 * time.Millisecond})

	c.Set(CategoryStock, "all", "snapshot")
	if _, ok := c.Get(CategoryStock, "all"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(CategoryStock, "all"); ok {
		t.Error("expected miss after TTL elapsed")
	}
}

func TestCache_UnconfiguredCategoryNeverCaches(t *testing.T) {
	c := New(map[Category]time.Duration{CategoryStock: time.Minute})

	c.Set(CategoryNCRs, "open", "ignored")
	if _, ok := c.Get(CategoryNCRs, "open"); ok {
		t.Error("category without a TTL must not cache")
	}
}

func TestCache_OnMutation(t *testing.T) {
	tests := []struct {
		op          Operation
		invalidated []Category
		untouched   []Category
	}{
		{OpPostReceiptBatch, []Category{CategoryStock, CategoryNCRs}, []Category{CategoryPeriodPrices}},
		{OpIssueStock, []Category{CategoryStock}, []Category{CategoryPeriodPrices, CategoryNCRs}},
		{OpTransferStock, []Category{CategoryStock}, []Category{CategoryPeriodPrices, CategoryNCRs}},
		{OpSetPeriodPrice, []Category{CategoryPeriodPrices}, []Category{CategoryStock, CategoryNCRs}},
		{OpLockPeriod, []Category{CategoryPeriodPrices}, []Category{CategoryStock, CategoryNCRs}},
		{OpResolveNCR, []Category{CategoryNCRs}, []Category{CategoryStock, CategoryPeriodPrices}},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			c := New(DefaultTTLs)
			for cat := range DefaultTTLs {
				c.Set(cat, "k", "v")
			}

			c.OnMutation(tt.op)

			for _, cat := range tt.invalidated {
				if _, ok := c.Get(cat, "k"); ok {
					t.Errorf("%s should be invalidated by %s", cat, tt.op)
				}
			}
			for _, cat := range tt.untouched {
				if _, ok := c.Get(cat, "k"); !ok {
					t.Errorf("%s should survive %s", cat, tt.op)
				}
			}
		})
	}
}

// Every declared operation must invalidate at least one category; an empty
// row means a mutation silently serves stale reads.
func TestInvalidationTableComplete(t *testing.T) {
	ops := []Operation{
		OpPostReceiptBatch, OpIssueStock, OpTransferStock,
		OpSetPeriodPrice, OpLockPeriod, OpResolveNCR,
	}
	for _, op := range ops {
		if len(AffectedCategories(op)) == 0 {
			t.Errorf("operation %s invalidates nothing", op)
		}
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(DefaultTTLs)
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 500; j++ {
				c.Set(CategoryStock, "all", j)
				c.Get(CategoryStock, "all")
				c.OnMutation(OpIssueStock)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
}
