package app

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryLineInput is one line of a delivery posting request.
type DeliveryLineInput struct {
	ItemCode  string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// PostDeliveryRequest is the input for posting a delivery (receipt batch).
// Reference is the caller's idempotency key: retrying a failed post with the
// same reference can never double-count stock.
type PostDeliveryRequest struct {
	LocationCode string
	Supplier     string
	Reference    string
	PostedAt     time.Time
	Lines        []DeliveryLineInput
}

// IssueStockRequest is the input for a stock consumption.
type IssueStockRequest struct {
	LocationCode string
	ItemCode     string
	Quantity     decimal.Decimal
	Notes        string
}

// TransferStockRequest is the input for a location-to-location transfer.
type TransferStockRequest struct {
	FromLocation string
	ToLocation   string
	ItemCode     string
	Quantity     decimal.Decimal
	Notes        string
}

// CreatePeriodRequest is the input for opening a new accounting period.
type CreatePeriodRequest struct {
	Code     string
	StartsOn time.Time
	EndsOn   time.Time
}

// SetPeriodPriceRequest locks an expected unit price for an item in a period.
type SetPeriodPriceRequest struct {
	PeriodCode string
	ItemCode   string
	UnitPrice  decimal.Decimal
}

// ResolveNCRRequest is the input for resolving a non-conformance record.
type ResolveNCRRequest struct {
	NCRNumber  string
	Notes      string
	ResolvedBy string
}
