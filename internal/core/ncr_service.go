package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockcost/internal/cache"
)

// NCRService persists and manages non-conformance records. Auto-generated
// NCRs are created by ReceiptService inside the posting transaction via
// CreateInTx; listing and resolution run standalone.
type NCRService interface {
	// CreateInTx inserts an OPEN, auto-generated NCR within the caller's
	// transaction so it commits (or rolls back) with the receipt batch.
	CreateInTx(ctx context.Context, tx pgx.Tx, batchID string, receiptLineID, locationID, itemID int, v PriceVariance) (*NCR, error)

	List(ctx context.Context, status string) ([]NCR, error)
	Get(ctx context.Context, ncrNumber string) (*NCR, error)
	// Resolve transitions an OPEN NCR to RESOLVED. Resolution is terminal.
	Resolve(ctx context.Context, ncrNumber, notes, resolvedBy string) (*NCR, error)
}

type ncrService struct {
	pool  *pgxpool.Pool
	cache *cache.Cache
}

// NewNCRService constructs an NCRService backed by PostgreSQL.
func NewNCRService(pool *pgxpool.Pool, c *cache.Cache) NCRService {
	return &ncrService{pool: pool, cache: c}
}

func (s *ncrService) CreateInTx(ctx context.Context, tx pgx.Tx, batchID string, receiptLineID, locationID, itemID int, v PriceVariance) (*NCR, error) {
	var n NCR
	err := tx.QueryRow(ctx, `
		INSERT INTO ncrs (ncr_number, batch_id, receipt_line_id, location_id, item_id,
		                  variance, variance_percent, variance_amount, status, auto_generated)
		VALUES ('NCR-' || lpad(nextval('ncr_number_seq')::text, 6, '0'),
		        $1, $2, $3, $4, $5, $6, $7, 'OPEN', true)
		RETURNING id, ncr_number, status, auto_generated, created_at
	`, batchID, receiptLineID, locationID, itemID,
		v.Variance, v.VariancePercent, v.VarianceAmount,
	).Scan(&n.ID, &n.NCRNumber, &n.Status, &n.AutoGenerated, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert NCR for batch %s line %d: %w", batchID, receiptLineID, err)
	}

	n.BatchID = batchID
	n.ReceiptLineID = receiptLineID
	n.Variance = v.Variance
	n.VariancePercent = v.VariancePercent
	n.VarianceAmount = v.VarianceAmount
	return &n, nil
}

const ncrSelect = `
	SELECT n.id, n.ncr_number, n.batch_id, n.receipt_line_id,
	       l.code, i.code,
	       n.variance, n.variance_percent, n.variance_amount,
	       n.status, n.auto_generated,
	       COALESCE(n.resolution_notes, ''), COALESCE(n.resolved_by, ''),
	       n.created_at, n.resolved_at
	FROM ncrs n
	JOIN locations l ON l.id = n.location_id
	JOIN items i     ON i.id = n.item_id
`

func scanNCR(row pgx.Row) (*NCR, error) {
	var n NCR
	err := row.Scan(
		&n.ID, &n.NCRNumber, &n.BatchID, &n.ReceiptLineID,
		&n.LocationCode, &n.ItemCode,
		&n.Variance, &n.VariancePercent, &n.VarianceAmount,
		&n.Status, &n.AutoGenerated,
		&n.ResolutionNotes, &n.ResolvedBy,
		&n.CreatedAt, &n.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *ncrService) List(ctx context.Context, status string) ([]NCR, error) {
	query := ncrSelect + " ORDER BY n.created_at DESC"
	args := []any{}
	if status != "" {
		query = ncrSelect + " WHERE n.status = $1 ORDER BY n.created_at DESC"
		args = append(args, status)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query NCRs: %w", err)
	}
	defer rows.Close()

	var ncrs []NCR
	for rows.Next() {
		n, err := scanNCR(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan NCR: %w", err)
		}
		ncrs = append(ncrs, *n)
	}
	return ncrs, rows.Err()
}

func (s *ncrService) Get(ctx context.Context, ncrNumber string) (*NCR, error) {
	n, err := scanNCR(s.pool.QueryRow(ctx, ncrSelect+" WHERE n.ncr_number = $1", ncrNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: NCR %s", ErrNotFound, ncrNumber)
		}
		return nil, fmt.Errorf("failed to fetch NCR %s: %w", ncrNumber, err)
	}
	return n, nil
}

func (s *ncrService) Resolve(ctx context.Context, ncrNumber, notes, resolvedBy string) (*NCR, error) {
	if resolvedBy == "" {
		return nil, fmt.Errorf("%w: resolved_by must not be empty", ErrInvalidInput)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE ncrs
		SET status = 'RESOLVED', resolution_notes = $2, resolved_by = $3, resolved_at = NOW()
		WHERE ncr_number = $1 AND status = 'OPEN'
	`, ncrNumber, notes, resolvedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve NCR %s: %w", ncrNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: open NCR %s", ErrNotFound, ncrNumber)
	}

	s.cache.OnMutation(cache.OpResolveNCR)
	return s.Get(ctx, ncrNumber)
}
