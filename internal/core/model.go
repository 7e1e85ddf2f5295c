package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Location represents a physical stock-keeping site (warehouse, kitchen, outlet).
type Location struct {
	ID        int
	Code      string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// Item is a stockable article. Unit is the stock-keeping unit ("kg", "ea", "ltr").
type Item struct {
	ID        int
	Code      string
	Name      string
	Unit      string
	IsActive  bool
	CreatedAt time.Time
}

// StockPosition is the on-hand quantity and weighted average cost of one item
// at one location. The same item has an independent position at every location.
// OnHand is never negative; WAC changes only when stock is received.
type StockPosition struct {
	ID           int
	LocationID   int
	LocationCode string
	ItemID       int
	ItemCode     string
	ItemName     string
	Unit         string
	OnHand       decimal.Decimal
	WAC          decimal.Decimal
	UpdatedAt    time.Time
}

// Value returns the current inventory value (OnHand × WAC) rounded to 2dp.
func (p StockPosition) Value() decimal.Decimal {
	return p.OnHand.Mul(p.WAC).Round(2)
}

// Movement types recorded in the stock audit trail.
const (
	MovementReceipt     = "RECEIPT"
	MovementIssue       = "ISSUE"
	MovementTransferOut = "TRANSFER_OUT"
	MovementTransferIn  = "TRANSFER_IN"
)

// StockMovement is one append-only audit row. Quantity is negative for
// outbound movements (issue, transfer-out).
type StockMovement struct {
	ID           int
	LocationCode string
	ItemCode     string
	MovementType string
	Quantity     decimal.Decimal
	UnitCost     decimal.Decimal
	TotalCost    decimal.Decimal
	BatchID      *string
	Notes        string
	CreatedAt    time.Time
}

// Receipt batch statuses. APPLYING exists only inside the posting
// transaction; a batch row is visible as COMMITTED or not at all.
const (
	BatchApplying  = "APPLYING"
	BatchCommitted = "COMMITTED"
)

// ReceiptBatch is the atomic unit of receipt posting: all lines apply to one
// location in one transaction. Reference is the caller-supplied deduplication
// key; reposting the same reference is rejected rather than double-counted.
type ReceiptBatch struct {
	ID           string
	BatchNumber  string
	Reference    string
	LocationCode string
	Supplier     string
	Status       string
	HasVariance  bool
	PostedAt     time.Time
	CreatedAt    time.Time
}

// ReceiptLine is one incoming line of a batch.
type ReceiptLine struct {
	ID                int
	LineNo            int
	ItemCode          string
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
	ExpectedUnitPrice decimal.Decimal
	HasVariance       bool
}

// Period statuses.
const (
	PeriodOpen   = "OPEN"
	PeriodLocked = "LOCKED"
)

// Period is an accounting window during which item prices are locked for
// variance comparison.
type Period struct {
	ID       int
	Code     string
	StartsOn time.Time
	EndsOn   time.Time
	Status   string
}

// PeriodPrice is the expected unit price of one item within one period.
type PeriodPrice struct {
	PeriodCode string
	ItemCode   string
	UnitPrice  decimal.Decimal
}

// NCR statuses.
const (
	NCROpen     = "OPEN"
	NCRResolved = "RESOLVED"
)

// NCR is a non-conformance record: the persisted trail of a price variance
// detected on a receipt line. Auto-generated NCRs stay OPEN until a
// supervisor resolves them.
type NCR struct {
	ID              int
	NCRNumber       string
	BatchID         string
	ReceiptLineID   int
	LocationCode    string
	ItemCode        string
	Variance        decimal.Decimal
	VariancePercent decimal.Decimal
	VarianceAmount  decimal.Decimal
	Status          string
	AutoGenerated   bool
	ResolutionNotes string
	ResolvedBy      string
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}
