package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"stockcost/internal/cache"
)

// BatchLineInput is one incoming receipt line.
type BatchLineInput struct {
	ItemCode  string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// PostBatchInput describes a receipt batch for one location. Reference is
// the caller's deduplication key: reposting a committed reference is
// rejected with ErrDuplicateReference, which makes whole-batch retries safe.
type PostBatchInput struct {
	LocationCode string
	Supplier     string
	Reference    string
	PostedAt     time.Time
	Lines        []BatchLineInput
}

// LineResult is the computed outcome for one posted line.
type LineResult struct {
	LineNo            int
	ItemCode          string
	ExpectedUnitPrice decimal.Decimal
	WAC               WACResult
	Variance          PriceVariance
	NCR               *NCR // nil when the line had no variance
}

// BatchResult is returned by PostBatch. HasVariance is a warning signal for
// the caller ("N price variances detected"), not a failure.
type BatchResult struct {
	Batch       ReceiptBatch
	Lines       []LineResult
	NCRs        []NCR
	HasVariance bool
}

// ReceiptService posts receipt batches: it updates stock positions with
// recalculated weighted average costs, appends RECEIPT movements, and
// generates NCRs for price variances, all within one transaction. A batch
// either commits completely or leaves no trace.
type ReceiptService interface {
	PostBatch(ctx context.Context, input PostBatchInput) (*BatchResult, error)
	GetBatch(ctx context.Context, reference string) (*ReceiptBatch, []ReceiptLine, error)
	ListBatches(ctx context.Context, locationCode string) ([]ReceiptBatch, error)
}

type receiptService struct {
	pool   *pgxpool.Pool
	prices PriceProvider
	ncrs   NCRService
	cache  *cache.Cache
}

// NewReceiptService constructs a ReceiptService. The PriceProvider supplies
// period-locked expected prices; the NCRService writes variance records
// inside the posting transaction.
func NewReceiptService(pool *pgxpool.Pool, prices PriceProvider, ncrs NCRService, c *cache.Cache) ReceiptService {
	return &receiptService{pool: pool, prices: prices, ncrs: ncrs, cache: c}
}

// validate fails fast on caller errors before any row is touched.
func (in PostBatchInput) validate() error {
	if in.LocationCode == "" {
		return fmt.Errorf("%w: location code must not be empty", ErrInvalidInput)
	}
	if in.Reference == "" {
		return fmt.Errorf("%w: batch reference must not be empty", ErrInvalidInput)
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("%w: batch must have at least one line", ErrInvalidInput)
	}
	for i, line := range in.Lines {
		if line.ItemCode == "" {
			return fmt.Errorf("%w: line %d: item code must not be empty", ErrInvalidInput, i+1)
		}
		if !line.Quantity.IsPositive() {
			return fmt.Errorf("%w: line %d: quantity must be positive, got %s", ErrInvalidInput, i+1, line.Quantity)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line %d: unit price %s is negative", ErrInvalidInput, i+1, line.UnitPrice)
		}
	}
	return nil
}

// PostBatch applies every line of the batch atomically.
//
// Per line: the stock position is upserted and row-locked (FOR UPDATE), the
// weighted average cost is recalculated, a RECEIPT movement is appended, and
// the actual price is checked against the period-locked expected price. Any
// variance, however small, creates an OPEN auto-generated NCR.
//
// The row lock serializes concurrent batches touching the same
// (location, item) position; batches on disjoint keys run concurrently.
func (s *receiptService) PostBatch(ctx context.Context, input PostBatchInput) (*BatchResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	postedAt := input.PostedAt
	if postedAt.IsZero() {
		postedAt = time.Now()
	}

	period, err := s.prices.PeriodFor(ctx, postedAt)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var locationID int
	if err := tx.QueryRow(ctx,
		"SELECT id FROM locations WHERE code = $1 AND is_active = true", input.LocationCode,
	).Scan(&locationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: location %s", ErrNotFound, input.LocationCode)
		}
		return nil, fmt.Errorf("failed to resolve location %s: %w", input.LocationCode, err)
	}

	// Insert the batch header first so lines and NCRs can reference it. The
	// reference column's unique constraint is the dedup guarantee; APPLYING
	// is flipped to COMMITTED before the transaction commits, so only
	// terminal batches are ever visible.
	batch := ReceiptBatch{
		ID:           uuid.NewString(),
		Reference:    input.Reference,
		LocationCode: input.LocationCode,
		Supplier:     input.Supplier,
		Status:       BatchApplying,
		PostedAt:     postedAt,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO receipt_batches (id, batch_number, reference, location_id, supplier, status, has_variance, posted_at)
		VALUES ($1, 'GRN-' || lpad(nextval('batch_number_seq')::text, 6, '0'), $2, $3, $4, 'APPLYING', false, $5)
		RETURNING batch_number, created_at
	`, batch.ID, input.Reference, locationID, input.Supplier, postedAt).Scan(&batch.BatchNumber, &batch.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateReference, input.Reference)
		}
		return nil, fmt.Errorf("failed to insert receipt batch: %w", err)
	}

	result := &BatchResult{}
	for i, line := range input.Lines {
		lr, err := s.postLine(ctx, tx, period, &batch, locationID, i+1, line)
		if err != nil {
			return nil, err
		}
		result.Lines = append(result.Lines, *lr)
		if lr.NCR != nil {
			result.NCRs = append(result.NCRs, *lr.NCR)
			result.HasVariance = true
		}
	}

	batch.HasVariance = result.HasVariance
	batch.Status = BatchCommitted
	if _, err := tx.Exec(ctx,
		"UPDATE receipt_batches SET status = 'COMMITTED', has_variance = $2 WHERE id = $1",
		batch.ID, batch.HasVariance,
	); err != nil {
		return nil, fmt.Errorf("failed to finalize receipt batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit receipt batch: %w", err)
	}

	s.cache.OnMutation(cache.OpPostReceiptBatch)
	result.Batch = batch
	return result, nil
}

// postLine applies one receipt line inside the batch transaction.
func (s *receiptService) postLine(ctx context.Context, tx pgx.Tx, period *Period, batch *ReceiptBatch, locationID, lineNo int, line BatchLineInput) (*LineResult, error) {
	batchID := batch.ID
	var itemID int
	if err := tx.QueryRow(ctx,
		"SELECT id FROM items WHERE code = $1 AND is_active = true", line.ItemCode,
	).Scan(&itemID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: item %s", ErrNotFound, line.ItemCode)
		}
		return nil, fmt.Errorf("line %d: failed to resolve item %s: %w", lineNo, line.ItemCode, err)
	}

	expected, err := s.prices.ExpectedPrice(ctx, period.ID, itemID)
	if err != nil {
		if errors.Is(err, ErrNoPeriodPrice) {
			return nil, fmt.Errorf("%w: item %s in period %s", ErrNoPeriodPrice, line.ItemCode, period.Code)
		}
		return nil, err
	}

	// Upsert the position (first receipt creates it at zero), then lock the
	// row for the read-modify-write. Without the lock two concurrent
	// receipts would both read the same "current" values and one update
	// would be lost.
	var positionID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO stock_positions (location_id, item_id, qty_on_hand, wac)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (location_id, item_id) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, locationID, itemID).Scan(&positionID); err != nil {
		return nil, fmt.Errorf("line %d: failed to upsert stock position: %w", lineNo, err)
	}

	var currentQty, currentWAC decimal.Decimal
	if err := tx.QueryRow(ctx,
		"SELECT qty_on_hand, wac FROM stock_positions WHERE id = $1 FOR UPDATE", positionID,
	).Scan(&currentQty, &currentWAC); err != nil {
		return nil, fmt.Errorf("line %d: failed to lock stock position: %w", lineNo, err)
	}

	wac, err := RecalculateWAC(currentQty, currentWAC, line.Quantity, line.UnitPrice)
	if err != nil {
		return nil, fmt.Errorf("line %d (%s): %w", lineNo, line.ItemCode, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE stock_positions SET qty_on_hand = $1, wac = $2, updated_at = NOW()
		WHERE id = $3
	`, wac.NewQuantity, wac.NewWAC, positionID); err != nil {
		return nil, fmt.Errorf("line %d: failed to update stock position: %w", lineNo, err)
	}

	variance, err := CheckPriceVariance(line.UnitPrice, expected, line.Quantity)
	if err != nil {
		return nil, fmt.Errorf("line %d (%s): %w", lineNo, line.ItemCode, err)
	}

	var receiptLineID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO receipt_lines (batch_id, line_no, item_id, quantity, unit_price, expected_unit_price, has_variance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, batchID, lineNo, itemID, line.Quantity, line.UnitPrice, expected, variance.HasVariance).Scan(&receiptLineID); err != nil {
		return nil, fmt.Errorf("line %d: failed to insert receipt line: %w", lineNo, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (location_id, item_id, movement_type, quantity, unit_cost, total_cost, batch_id, notes)
		VALUES ($1, $2, 'RECEIPT', $3, $4, $5, $6, $7)
	`, locationID, itemID, line.Quantity, line.UnitPrice, wac.ReceiptValue, batchID,
		fmt.Sprintf("Receipt: %s × %s @ %s", line.ItemCode, line.Quantity.String(), line.UnitPrice.String()),
	); err != nil {
		return nil, fmt.Errorf("line %d: failed to insert stock movement: %w", lineNo, err)
	}

	lr := &LineResult{
		LineNo:            lineNo,
		ItemCode:          line.ItemCode,
		ExpectedUnitPrice: expected,
		WAC:               wac,
		Variance:          variance,
	}

	if variance.HasVariance {
		ncr, err := s.ncrs.CreateInTx(ctx, tx, batchID, receiptLineID, locationID, itemID, variance)
		if err != nil {
			return nil, err
		}
		ncr.LocationCode = batch.LocationCode
		ncr.ItemCode = line.ItemCode
		lr.NCR = ncr
	}

	return lr, nil
}

func (s *receiptService) GetBatch(ctx context.Context, reference string) (*ReceiptBatch, []ReceiptLine, error) {
	var b ReceiptBatch
	err := s.pool.QueryRow(ctx, `
		SELECT b.id, b.batch_number, b.reference, l.code, b.supplier, b.status, b.has_variance, b.posted_at, b.created_at
		FROM receipt_batches b
		JOIN locations l ON l.id = b.location_id
		WHERE b.reference = $1
	`, reference).Scan(&b.ID, &b.BatchNumber, &b.Reference, &b.LocationCode, &b.Supplier, &b.Status, &b.HasVariance, &b.PostedAt, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: batch reference %s", ErrNotFound, reference)
		}
		return nil, nil, fmt.Errorf("failed to fetch batch %s: %w", reference, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT rl.id, rl.line_no, i.code, rl.quantity, rl.unit_price, rl.expected_unit_price, rl.has_variance
		FROM receipt_lines rl
		JOIN items i ON i.id = rl.item_id
		WHERE rl.batch_id = $1
		ORDER BY rl.line_no
	`, b.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query lines for batch %s: %w", reference, err)
	}
	defer rows.Close()

	var lines []ReceiptLine
	for rows.Next() {
		var rl ReceiptLine
		if err := rows.Scan(&rl.ID, &rl.LineNo, &rl.ItemCode, &rl.Quantity, &rl.UnitPrice, &rl.ExpectedUnitPrice, &rl.HasVariance); err != nil {
			return nil, nil, fmt.Errorf("failed to scan receipt line: %w", err)
		}
		lines = append(lines, rl)
	}
	return &b, lines, rows.Err()
}

func (s *receiptService) ListBatches(ctx context.Context, locationCode string) ([]ReceiptBatch, error) {
	query := `
		SELECT b.id, b.batch_number, b.reference, l.code, b.supplier, b.status, b.has_variance, b.posted_at, b.created_at
		FROM receipt_batches b
		JOIN locations l ON l.id = b.location_id
	`
	args := []any{}
	if locationCode != "" {
		query += " WHERE l.code = $1"
		args = append(args, locationCode)
	}
	query += " ORDER BY b.posted_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipt batches: %w", err)
	}
	defer rows.Close()

	var batches []ReceiptBatch
	for rows.Next() {
		var b ReceiptBatch
		if err := rows.Scan(&b.ID, &b.BatchNumber, &b.Reference, &b.LocationCode, &b.Supplier, &b.Status, &b.HasVariance, &b.PostedAt, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan receipt batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
