package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Verifies database connectivity and confirms the expected tables exist.
// Intended as a deploy-time smoke check before starting the server.
func main() {
	_ = godotenv.Load()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		log.Fatal("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		log.Fatalf("[CONNECT] failed to create pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("[CONNECT] ping failed: %v", err)
	}

	required := []string{
		"locations", "items", "stock_positions",
		"periods", "period_prices",
		"receipt_batches", "receipt_lines", "stock_movements", "ncrs",
	}
	for _, table := range required {
		var exists bool
		err := pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1)", table,
		).Scan(&exists)
		if err != nil {
			log.Fatalf("[SCHEMA] check for %s failed: %v", table, err)
		}
		if !exists {
			log.Fatalf("[SCHEMA] missing table %s — run migrations", table)
		}
		fmt.Printf("[OK] %s\n", table)
	}

	log.Println("[DONE] database verified.")
}
