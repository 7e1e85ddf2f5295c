package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"stockcost/internal/cache"
)

// PriceProvider resolves the accounting period covering a date and the
// period-locked expected price for an item. ReceiptService depends on this
// interface rather than on the full PeriodService.
type PriceProvider interface {
	PeriodFor(ctx context.Context, date time.Time) (*Period, error)
	ExpectedPrice(ctx context.Context, periodID, itemID int) (decimal.Decimal, error)
}

// PeriodService manages accounting periods and their per-item price lists.
// Prices are editable while a period is OPEN and frozen once it is LOCKED.
type PeriodService interface {
	PriceProvider

	CreatePeriod(ctx context.Context, code string, startsOn, endsOn time.Time) (*Period, error)
	LockPeriod(ctx context.Context, code string) (*Period, error)
	ListPeriods(ctx context.Context) ([]Period, error)
	// SetPrice upserts the expected unit price for an item in an OPEN period.
	SetPrice(ctx context.Context, periodCode, itemCode string, unitPrice decimal.Decimal) error
	ListPrices(ctx context.Context, periodCode string) ([]PeriodPrice, error)
}

type periodService struct {
	pool  *pgxpool.Pool
	cache *cache.Cache
}

// NewPeriodService constructs a PeriodService backed by PostgreSQL with a
// TTL cache in front of expected-price lookups.
func NewPeriodService(pool *pgxpool.Pool, c *cache.Cache) PeriodService {
	return &periodService{pool: pool, cache: c}
}

func (s *periodService) CreatePeriod(ctx context.Context, code string, startsOn, endsOn time.Time) (*Period, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: period code must not be empty", ErrInvalidInput)
	}
	if !endsOn.After(startsOn) {
		return nil, fmt.Errorf("%w: period %s ends on or before it starts", ErrInvalidInput, code)
	}

	var overlaps bool
	if err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM periods
			WHERE starts_on <= $2 AND ends_on >= $1
		)
	`, startsOn, endsOn).Scan(&overlaps); err != nil {
		return nil, fmt.Errorf("failed to check period overlap: %w", err)
	}
	if overlaps {
		return nil, fmt.Errorf("%w: period %s overlaps an existing period", ErrInvalidInput, code)
	}

	p := Period{Code: code, StartsOn: startsOn, EndsOn: endsOn, Status: PeriodOpen}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO periods (code, starts_on, ends_on, status)
		VALUES ($1, $2, $3, 'OPEN')
		RETURNING id
	`, code, startsOn, endsOn).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert period %s: %w", code, err)
	}
	return &p, nil
}

// LockPeriod transitions a period OPEN → LOCKED. Locking is terminal: a
// locked price list is the baseline for variance detection and must not
// drift afterwards.
func (s *periodService) LockPeriod(ctx context.Context, code string) (*Period, error) {
	var p Period
	err := s.pool.QueryRow(ctx, `
		UPDATE periods SET status = 'LOCKED'
		WHERE code = $1 AND status = 'OPEN'
		RETURNING id, code, starts_on, ends_on, status
	`, code).Scan(&p.ID, &p.Code, &p.StartsOn, &p.EndsOn, &p.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: open period %s", ErrNotFound, code)
		}
		return nil, fmt.Errorf("failed to lock period %s: %w", code, err)
	}
	s.cache.OnMutation(cache.OpLockPeriod)
	return &p, nil
}

func (s *periodService) ListPeriods(ctx context.Context) ([]Period, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, starts_on, ends_on, status
		FROM periods
		ORDER BY starts_on DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var periods []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.Code, &p.StartsOn, &p.EndsOn, &p.Status); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (s *periodService) SetPrice(ctx context.Context, periodCode, itemCode string, unitPrice decimal.Decimal) error {
	if unitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price %s is negative", ErrInvalidInput, unitPrice)
	}

	var periodID int
	var status string
	err := s.pool.QueryRow(ctx,
		"SELECT id, status FROM periods WHERE code = $1", periodCode,
	).Scan(&periodID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: period %s", ErrNotFound, periodCode)
		}
		return fmt.Errorf("failed to resolve period %s: %w", periodCode, err)
	}
	if status != PeriodOpen {
		return fmt.Errorf("%w: %s", ErrPeriodLocked, periodCode)
	}

	var itemID int
	err = s.pool.QueryRow(ctx,
		"SELECT id FROM items WHERE code = $1 AND is_active = true", itemCode,
	).Scan(&itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: item %s", ErrNotFound, itemCode)
		}
		return fmt.Errorf("failed to resolve item %s: %w", itemCode, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO period_prices (period_id, item_id, unit_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (period_id, item_id) DO UPDATE SET unit_price = EXCLUDED.unit_price
	`, periodID, itemID, unitPrice)
	if err != nil {
		return fmt.Errorf("failed to upsert price for item %s in period %s: %w", itemCode, periodCode, err)
	}

	s.cache.OnMutation(cache.OpSetPeriodPrice)
	return nil
}

func (s *periodService) ListPrices(ctx context.Context, periodCode string) ([]PeriodPrice, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.code, i.code, pp.unit_price
		FROM period_prices pp
		JOIN periods p ON p.id = pp.period_id
		JOIN items i   ON i.id = pp.item_id
		WHERE p.code = $1
		ORDER BY i.code
	`, periodCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for period %s: %w", periodCode, err)
	}
	defer rows.Close()

	var prices []PeriodPrice
	for rows.Next() {
		var pp PeriodPrice
		if err := rows.Scan(&pp.PeriodCode, &pp.ItemCode, &pp.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan period price: %w", err)
		}
		prices = append(prices, pp)
	}
	return prices, rows.Err()
}

func (s *periodService) PeriodFor(ctx context.Context, date time.Time) (*Period, error) {
	var p Period
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, starts_on, ends_on, status
		FROM periods
		WHERE starts_on <= $1 AND ends_on >= $1
	`, date).Scan(&p.ID, &p.Code, &p.StartsOn, &p.EndsOn, &p.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNoOpenPeriod, date.Format("2006-01-02"))
		}
		return nil, fmt.Errorf("failed to resolve period for %s: %w", date.Format("2006-01-02"), err)
	}
	return &p, nil
}

// ExpectedPrice returns the locked price for (period, item), caching hits
// under the period-prices category. A missing price is a business
// precondition failure, never silently defaulted.
func (s *periodService) ExpectedPrice(ctx context.Context, periodID, itemID int) (decimal.Decimal, error) {
	key := fmt.Sprintf("%d:%d", periodID, itemID)
	if v, ok := s.cache.Get(cache.CategoryPeriodPrices, key); ok {
		return v.(decimal.Decimal), nil
	}

	var price decimal.Decimal
	err := s.pool.QueryRow(ctx,
		"SELECT unit_price FROM period_prices WHERE period_id = $1 AND item_id = $2",
		periodID, itemID,
	).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: period %d, item %d", ErrNoPeriodPrice, periodID, itemID)
		}
		return decimal.Zero, fmt.Errorf("failed to fetch expected price (period=%d, item=%d): %w", periodID, itemID, err)
	}

	s.cache.Set(cache.CategoryPeriodPrices, key, price)
	return price, nil
}
