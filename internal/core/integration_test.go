package core_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"stockcost/internal/cache"
	"stockcost/internal/core"
)

// setupTestDB connects to the dedicated test database, applies the schema and
// seeds baseline data: two locations, three items, one open period with
// expected prices for FLOUR and SUGAR. OIL has no period price on purpose.
//
// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE ncrs, stock_movements, receipt_lines, receipt_batches,
			period_prices, periods, stock_positions, items, locations
			RESTART IDENTITY CASCADE;

		INSERT INTO locations (code, name) VALUES
			('MAIN', 'Main Store'),
			('KITCHEN', 'Kitchen');

		INSERT INTO items (code, name, unit) VALUES
			('FLOUR', 'Wheat Flour', 'kg'),
			('SUGAR', 'White Sugar', 'kg'),
			('OIL', 'Cooking Oil', 'l');

		INSERT INTO periods (code, starts_on, ends_on, status)
			VALUES ('2026-08', '2026-08-01', '2026-08-31', 'OPEN');

		INSERT INTO period_prices (period_id, item_id, unit_price)
		SELECT p.id, i.id, v.price
		FROM (VALUES ('FLOUR', 10.00), ('SUGAR', 12.50)) AS v(code, price)
		JOIN items i ON i.code = v.code
		JOIN periods p ON p.code = '2026-08';
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

type testServices struct {
	periods  core.PeriodService
	ncrs     core.NCRService
	receipts core.ReceiptService
	stock    core.StockService
}

// newTestServices wires the services the way cmd/server does, sharing one
// cache so invalidation behavior is exercised too.
func newTestServices(pool *pgxpool.Pool) testServices {
	c := cache.New(cache.DefaultTTLs)
	periods := core.NewPeriodService(pool, c)
	ncrs := core.NewNCRService(pool, c)
	return testServices{
		periods:  periods,
		ncrs:     ncrs,
		receipts: core.NewReceiptService(pool, periods, ncrs, c),
		stock:    core.NewStockService(pool, c),
	}
}

// positionFor reads a stock position straight from the database, bypassing
// services and cache.
func positionFor(t *testing.T, pool *pgxpool.Pool, locationCode, itemCode string) (qty, wac decimal.Decimal) {
	t.Helper()
	err := pool.QueryRow(context.Background(), `
		SELECT sp.qty_on_hand, sp.wac
		FROM stock_positions sp
		JOIN locations l ON l.id = sp.location_id
		JOIN items i ON i.id = sp.item_id
		WHERE l.code = $1 AND i.code = $2
	`, locationCode, itemCode).Scan(&qty, &wac)
	if err != nil {
		t.Fatalf("Failed to read position (%s, %s): %v", locationCode, itemCode, err)
	}
	return qty, wac
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(context.Background(), "SELECT count(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}
