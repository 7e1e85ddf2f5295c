package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"stockcost/internal/core"
	"stockcost/internal/metrics"
)

// ApplicationService is the single interface the HTTP adapter calls. It
// decouples presentation from business logic and owns the cross-cutting
// concerns around domain calls (metrics, audit logging).
type ApplicationService interface {
	// PostDelivery posts a receipt batch atomically: stock positions update
	// with recalculated WACs and any price variances become OPEN NCRs.
	PostDelivery(ctx context.Context, req PostDeliveryRequest) (*DeliveryResult, error)
	GetDelivery(ctx context.Context, reference string) (*BatchResult, error)
	ListDeliveries(ctx context.Context, locationCode string) (*BatchListResult, error)

	GetStockPositions(ctx context.Context, locationCode string) (*StockResult, error)
	GetStockMovements(ctx context.Context, locationCode, itemCode string, limit int) (*MovementListResult, error)
	IssueStock(ctx context.Context, req IssueStockRequest) (*IssueResult, error)
	TransferStock(ctx context.Context, req TransferStockRequest) (*TransferResult, error)

	ListNCRs(ctx context.Context, status string) (*NCRListResult, error)
	GetNCR(ctx context.Context, ncrNumber string) (*core.NCR, error)
	ResolveNCR(ctx context.Context, req ResolveNCRRequest) (*core.NCR, error)

	ListPeriods(ctx context.Context) (*PeriodListResult, error)
	CreatePeriod(ctx context.Context, req CreatePeriodRequest) (*core.Period, error)
	LockPeriod(ctx context.Context, code string) (*core.Period, error)
	SetPeriodPrice(ctx context.Context, req SetPeriodPriceRequest) error
	ListPeriodPrices(ctx context.Context, periodCode string) (*PeriodPriceListResult, error)
}

type appService struct {
	receipts core.ReceiptService
	stock    core.StockService
	periods  core.PeriodService
	ncrs     core.NCRService
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	receipts core.ReceiptService,
	stock core.StockService,
	periods core.PeriodService,
	ncrs core.NCRService,
	m *metrics.Metrics,
	log *zap.Logger,
) ApplicationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &appService{
		receipts: receipts,
		stock:    stock,
		periods:  periods,
		ncrs:     ncrs,
		metrics:  m,
		log:      log,
	}
}

func (s *appService) PostDelivery(ctx context.Context, req PostDeliveryRequest) (*DeliveryResult, error) {
	lines := make([]core.BatchLineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, core.BatchLineInput{
			ItemCode:  l.ItemCode,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	result, err := s.receipts.PostBatch(ctx, core.PostBatchInput{
		LocationCode: req.LocationCode,
		Supplier:     req.Supplier,
		Reference:    req.Reference,
		PostedAt:     req.PostedAt,
		Lines:        lines,
	})
	if err != nil {
		s.metrics.BatchesPosted.WithLabelValues(batchOutcome(err)).Inc()
		return nil, err
	}

	s.metrics.BatchesPosted.WithLabelValues(metrics.OutcomeCommitted).Inc()
	s.metrics.StockMovements.WithLabelValues(core.MovementReceipt).Add(float64(len(result.Lines)))
	if n := len(result.NCRs); n > 0 {
		s.metrics.NCRsCreated.Add(float64(n))
		s.log.Info("price variances detected on delivery",
			zap.String("batch", result.Batch.BatchNumber),
			zap.String("reference", req.Reference),
			zap.Int("ncr_count", n),
		)
	}

	return &DeliveryResult{
		Batch:         result.Batch,
		Lines:         result.Lines,
		NCRs:          result.NCRs,
		HasVariance:   result.HasVariance,
		VarianceCount: len(result.NCRs),
	}, nil
}

// batchOutcome classifies a PostBatch error for the batches-posted counter:
// caller/business rejections vs infrastructure failures.
func batchOutcome(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrDuplicateReference),
		errors.Is(err, core.ErrNoOpenPeriod),
		errors.Is(err, core.ErrNoPeriodPrice):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFailed
	}
}

func (s *appService) GetDelivery(ctx context.Context, reference string) (*BatchResult, error) {
	batch, lines, err := s.receipts.GetBatch(ctx, reference)
	if err != nil {
		return nil, err
	}
	return &BatchResult{Batch: *batch, Lines: lines}, nil
}

func (s *appService) ListDeliveries(ctx context.Context, locationCode string) (*BatchListResult, error) {
	batches, err := s.receipts.ListBatches(ctx, locationCode)
	if err != nil {
		return nil, err
	}
	return &BatchListResult{Batches: batches}, nil
}

func (s *appService) GetStockPositions(ctx context.Context, locationCode string) (*StockResult, error) {
	positions, err := s.stock.Positions(ctx, locationCode)
	if err != nil {
		return nil, err
	}
	return &StockResult{Positions: positions}, nil
}

func (s *appService) GetStockMovements(ctx context.Context, locationCode, itemCode string, limit int) (*MovementListResult, error) {
	movements, err := s.stock.Movements(ctx, locationCode, itemCode, limit)
	if err != nil {
		return nil, err
	}
	return &MovementListResult{Movements: movements}, nil
}

func (s *appService) IssueStock(ctx context.Context, req IssueStockRequest) (*IssueResult, error) {
	pos, err := s.stock.Issue(ctx, core.IssueInput{
		LocationCode: req.LocationCode,
		ItemCode:     req.ItemCode,
		Quantity:     req.Quantity,
		Notes:        req.Notes,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.StockMovements.WithLabelValues(core.MovementIssue).Inc()
	return &IssueResult{Position: *pos}, nil
}

func (s *appService) TransferStock(ctx context.Context, req TransferStockRequest) (*TransferResult, error) {
	from, to, err := s.stock.Transfer(ctx, core.TransferInput{
		FromLocation: req.FromLocation,
		ToLocation:   req.ToLocation,
		ItemCode:     req.ItemCode,
		Quantity:     req.Quantity,
		Notes:        req.Notes,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.StockMovements.WithLabelValues(core.MovementTransferOut).Inc()
	s.metrics.StockMovements.WithLabelValues(core.MovementTransferIn).Inc()
	return &TransferResult{From: *from, To: *to}, nil
}

func (s *appService) ListNCRs(ctx context.Context, status string) (*NCRListResult, error) {
	ncrs, err := s.ncrs.List(ctx, status)
	if err != nil {
		return nil, err
	}
	return &NCRListResult{NCRs: ncrs}, nil
}

func (s *appService) GetNCR(ctx context.Context, ncrNumber string) (*core.NCR, error) {
	return s.ncrs.Get(ctx, ncrNumber)
}

func (s *appService) ResolveNCR(ctx context.Context, req ResolveNCRRequest) (*core.NCR, error) {
	n, err := s.ncrs.Resolve(ctx, req.NCRNumber, req.Notes, req.ResolvedBy)
	if err != nil {
		return nil, err
	}
	s.log.Info("NCR resolved",
		zap.String("ncr", req.NCRNumber),
		zap.String("resolved_by", req.ResolvedBy),
	)
	return n, nil
}

func (s *appService) ListPeriods(ctx context.Context) (*PeriodListResult, error) {
	periods, err := s.periods.ListPeriods(ctx)
	if err != nil {
		return nil, err
	}
	return &PeriodListResult{Periods: periods}, nil
}

func (s *appService) CreatePeriod(ctx context.Context, req CreatePeriodRequest) (*core.Period, error) {
	return s.periods.CreatePeriod(ctx, req.Code, req.StartsOn, req.EndsOn)
}

func (s *appService) LockPeriod(ctx context.Context, code string) (*core.Period, error) {
	return s.periods.LockPeriod(ctx, code)
}

func (s *appService) SetPeriodPrice(ctx context.Context, req SetPeriodPriceRequest) error {
	return s.periods.SetPrice(ctx, req.PeriodCode, req.ItemCode, req.UnitPrice)
}

func (s *appService) ListPeriodPrices(ctx context.Context, periodCode string) (*PeriodPriceListResult, error) {
	prices, err := s.periods.ListPrices(ctx, periodCode)
	if err != nil {
		return nil, err
	}
	return &PeriodPriceListResult{Prices: prices}, nil
}
