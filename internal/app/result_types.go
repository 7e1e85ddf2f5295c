package app

import "stockcost/internal/core"

// DeliveryResult is returned by PostDelivery. VarianceCount lets the caller
// warn the end user ("N price variances detected") without treating the post
// as a failure.
type DeliveryResult struct {
	Batch         core.ReceiptBatch
	Lines         []core.LineResult
	NCRs          []core.NCR
	HasVariance   bool
	VarianceCount int
}

// BatchResult is returned by GetDelivery.
type BatchResult struct {
	Batch core.ReceiptBatch
	Lines []core.ReceiptLine
}

// BatchListResult is returned by ListDeliveries.
type BatchListResult struct {
	Batches []core.ReceiptBatch
}

// StockResult is returned by GetStockPositions.
type StockResult struct {
	Positions []core.StockPosition
}

// MovementListResult is returned by GetStockMovements.
type MovementListResult struct {
	Movements []core.StockMovement
}

// IssueResult is returned by IssueStock.
type IssueResult struct {
	Position core.StockPosition
}

// TransferResult is returned by TransferStock.
type TransferResult struct {
	From core.StockPosition
	To   core.StockPosition
}

// NCRListResult is returned by ListNCRs.
type NCRListResult struct {
	NCRs []core.NCR
}

// PeriodListResult is returned by ListPeriods.
type PeriodListResult struct {
	Periods []core.Period
}

// PeriodPriceListResult is returned by ListPeriodPrices.
type PeriodPriceListResult struct {
	Prices []core.PeriodPrice
}
