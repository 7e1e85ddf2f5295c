package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"stockcost/internal/cache"
)

// IssueInput describes a stock consumption at one location.
type IssueInput struct {
	LocationCode string
	ItemCode     string
	Quantity     decimal.Decimal
	Notes        string
}

// TransferInput describes a stock transfer between two locations. The goods
// leave the source at its current WAC and blend into the destination
// position at that cost.
type TransferInput struct {
	FromLocation string
	ToLocation   string
	ItemCode     string
	Quantity     decimal.Decimal
	Notes        string
}

// StockService reads stock positions and applies the non-receipt movements:
// issues (consumption) and transfers. Neither recalculates the source WAC;
// only receipts (and transfer-ins, which are receipts at the source's cost)
// change an average cost.
type StockService interface {
	Positions(ctx context.Context, locationCode string) ([]StockPosition, error)
	Movements(ctx context.Context, locationCode, itemCode string, limit int) ([]StockMovement, error)
	Issue(ctx context.Context, input IssueInput) (*StockPosition, error)
	Transfer(ctx context.Context, input TransferInput) (from, to *StockPosition, err error)
}

type stockService struct {
	pool  *pgxpool.Pool
	cache *cache.Cache
}

// NewStockService constructs a StockService backed by PostgreSQL.
func NewStockService(pool *pgxpool.Pool, c *cache.Cache) StockService {
	return &stockService{pool: pool, cache: c}
}

const positionSelect = `
	SELECT sp.id, sp.location_id, l.code, sp.item_id, i.code, i.name, i.unit,
	       sp.qty_on_hand, sp.wac, sp.updated_at
	FROM stock_positions sp
	JOIN locations l ON l.id = sp.location_id
	JOIN items i     ON i.id = sp.item_id
`

func (s *stockService) Positions(ctx context.Context, locationCode string) ([]StockPosition, error) {
	if v, ok := s.cache.Get(cache.CategoryStock, locationCode); ok {
		return v.([]StockPosition), nil
	}

	query := positionSelect
	args := []any{}
	if locationCode != "" {
		query += " WHERE l.code = $1"
		args = append(args, locationCode)
	}
	query += " ORDER BY l.code, i.code"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock positions: %w", err)
	}
	defer rows.Close()

	var positions []StockPosition
	for rows.Next() {
		var p StockPosition
		if err := rows.Scan(
			&p.ID, &p.LocationID, &p.LocationCode, &p.ItemID, &p.ItemCode, &p.ItemName, &p.Unit,
			&p.OnHand, &p.WAC, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cache.Set(cache.CategoryStock, locationCode, positions)
	return positions, nil
}

func (s *stockService) Movements(ctx context.Context, locationCode, itemCode string, limit int) ([]StockMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT sm.id, l.code, i.code, sm.movement_type, sm.quantity, sm.unit_cost, sm.total_cost,
		       sm.batch_id, COALESCE(sm.notes, ''), sm.created_at
		FROM stock_movements sm
		JOIN locations l ON l.id = sm.location_id
		JOIN items i     ON i.id = sm.item_id
		WHERE 1=1
	`
	args := []any{}
	if locationCode != "" {
		args = append(args, locationCode)
		query += fmt.Sprintf(" AND l.code = $%d", len(args))
	}
	if itemCode != "" {
		args = append(args, itemCode)
		query += fmt.Sprintf(" AND i.code = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY sm.created_at DESC, sm.id DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(
			&m.ID, &m.LocationCode, &m.ItemCode, &m.MovementType,
			&m.Quantity, &m.UnitCost, &m.TotalCost, &m.BatchID, &m.Notes, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// Issue deducts stock at the position's current WAC. The WAC itself is
// untouched: consumption reads the average cost, it never recomputes it.
func (s *stockService) Issue(ctx context.Context, input IssueInput) (*StockPosition, error) {
	if !input.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: issue quantity must be positive, got %s", ErrInvalidInput, input.Quantity)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	pos, err := lockPosition(ctx, tx, input.LocationCode, input.ItemCode)
	if err != nil {
		return nil, err
	}

	if pos.OnHand.LessThan(input.Quantity) {
		return nil, fmt.Errorf("%w: %s at %s has %s on hand, need %s",
			ErrInsufficientStock, input.ItemCode, input.LocationCode,
			pos.OnHand.StringFixed(4), input.Quantity.StringFixed(4))
	}

	newQty := pos.OnHand.Sub(input.Quantity)
	if _, err := tx.Exec(ctx,
		"UPDATE stock_positions SET qty_on_hand = $1, updated_at = NOW() WHERE id = $2",
		newQty, pos.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to deduct stock for %s: %w", input.ItemCode, err)
	}

	issueCost := input.Quantity.Mul(pos.WAC).Round(MoneyPrecision)
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (location_id, item_id, movement_type, quantity, unit_cost, total_cost, notes)
		VALUES ($1, $2, 'ISSUE', $3, $4, $5, $6)
	`, pos.LocationID, pos.ItemID, input.Quantity.Neg(), pos.WAC, issueCost.Neg(), input.Notes); err != nil {
		return nil, fmt.Errorf("failed to insert issue movement for %s: %w", input.ItemCode, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit issue: %w", err)
	}

	s.cache.OnMutation(cache.OpIssueStock)
	pos.OnHand = newQty
	return pos, nil
}

// Transfer moves stock between locations atomically. Both positions are
// locked in deterministic (location, item) key order so that two crossing
// transfers cannot deadlock. The destination position blends the incoming
// quantity at the source's WAC through the standard recalculation.
func (s *stockService) Transfer(ctx context.Context, input TransferInput) (*StockPosition, *StockPosition, error) {
	if !input.Quantity.IsPositive() {
		return nil, nil, fmt.Errorf("%w: transfer quantity must be positive, got %s", ErrInvalidInput, input.Quantity)
	}
	if input.FromLocation == input.ToLocation {
		return nil, nil, fmt.Errorf("%w: source and destination location are both %s", ErrInvalidInput, input.FromLocation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Destination position may not exist yet; create it before locking so
	// both rows can be locked in one ordered pass.
	toLocID, itemID, err := resolveLocationItem(ctx, tx, input.ToLocation, input.ItemCode)
	if err != nil {
		return nil, nil, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_positions (location_id, item_id, qty_on_hand, wac)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (location_id, item_id) DO NOTHING
	`, toLocID, itemID); err != nil {
		return nil, nil, fmt.Errorf("failed to upsert destination position: %w", err)
	}

	first, second := input.FromLocation, input.ToLocation
	if second < first {
		first, second = second, first
	}
	posByLoc := make(map[string]*StockPosition, 2)
	for _, loc := range []string{first, second} {
		p, err := lockPosition(ctx, tx, loc, input.ItemCode)
		if err != nil {
			return nil, nil, err
		}
		posByLoc[loc] = p
	}
	from := posByLoc[input.FromLocation]
	to := posByLoc[input.ToLocation]

	if from.OnHand.LessThan(input.Quantity) {
		return nil, nil, fmt.Errorf("%w: %s at %s has %s on hand, need %s",
			ErrInsufficientStock, input.ItemCode, input.FromLocation,
			from.OnHand.StringFixed(4), input.Quantity.StringFixed(4))
	}

	transferCost := input.Quantity.Mul(from.WAC).Round(MoneyPrecision)

	// Deduct at source; WAC unchanged.
	from.OnHand = from.OnHand.Sub(input.Quantity)
	if _, err := tx.Exec(ctx,
		"UPDATE stock_positions SET qty_on_hand = $1, updated_at = NOW() WHERE id = $2",
		from.OnHand, from.ID,
	); err != nil {
		return nil, nil, fmt.Errorf("failed to deduct source position: %w", err)
	}

	// Blend into destination: a transfer-in is a receipt at the source cost.
	wac, err := RecalculateWAC(to.OnHand, to.WAC, input.Quantity, from.WAC)
	if err != nil {
		return nil, nil, fmt.Errorf("transfer %s → %s: %w", input.FromLocation, input.ToLocation, err)
	}
	to.OnHand = wac.NewQuantity
	to.WAC = wac.NewWAC
	if _, err := tx.Exec(ctx,
		"UPDATE stock_positions SET qty_on_hand = $1, wac = $2, updated_at = NOW() WHERE id = $3",
		to.OnHand, to.WAC, to.ID,
	); err != nil {
		return nil, nil, fmt.Errorf("failed to update destination position: %w", err)
	}

	for _, mv := range []struct {
		locID int
		mtype string
		qty   decimal.Decimal
		cost  decimal.Decimal
	}{
		{from.LocationID, MovementTransferOut, input.Quantity.Neg(), transferCost.Neg()},
		{to.LocationID, MovementTransferIn, input.Quantity, transferCost},
	} {
		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_movements (location_id, item_id, movement_type, quantity, unit_cost, total_cost, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, mv.locID, from.ItemID, mv.mtype, mv.qty, from.WAC, mv.cost, input.Notes); err != nil {
			return nil, nil, fmt.Errorf("failed to insert %s movement: %w", mv.mtype, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transfer: %w", err)
	}

	s.cache.OnMutation(cache.OpTransferStock)
	return from, to, nil
}

// lockPosition fetches and row-locks the stock position for (location, item).
func lockPosition(ctx context.Context, tx pgx.Tx, locationCode, itemCode string) (*StockPosition, error) {
	var p StockPosition
	err := tx.QueryRow(ctx, positionSelect+`
		WHERE l.code = $1 AND i.code = $2
		FOR UPDATE OF sp
	`, locationCode, itemCode).Scan(
		&p.ID, &p.LocationID, &p.LocationCode, &p.ItemID, &p.ItemCode, &p.ItemName, &p.Unit,
		&p.OnHand, &p.WAC, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no stock position for item %s at %s", ErrNotFound, itemCode, locationCode)
		}
		return nil, fmt.Errorf("failed to lock position (%s, %s): %w", locationCode, itemCode, err)
	}
	return &p, nil
}

// resolveLocationItem resolves active location and item codes to ids.
func resolveLocationItem(ctx context.Context, tx pgx.Tx, locationCode, itemCode string) (locationID, itemID int, err error) {
	if err = tx.QueryRow(ctx,
		"SELECT id FROM locations WHERE code = $1 AND is_active = true", locationCode,
	).Scan(&locationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, fmt.Errorf("%w: location %s", ErrNotFound, locationCode)
		}
		return 0, 0, fmt.Errorf("failed to resolve location %s: %w", locationCode, err)
	}
	if err = tx.QueryRow(ctx,
		"SELECT id FROM items WHERE code = $1 AND is_active = true", itemCode,
	).Scan(&itemID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, fmt.Errorf("%w: item %s", ErrNotFound, itemCode)
		}
		return 0, 0, fmt.Errorf("failed to resolve item %s: %w", itemCode, err)
	}
	return locationID, itemID, nil
}
