// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "stockcost_"

// Metrics bundles the service-level collectors. A single instance is created
// at startup and shared by the app layer and HTTP middleware.
type Metrics struct {
	BatchesPosted   *prometheus.CounterVec
	NCRsCreated     prometheus.Counter
	StockMovements  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "receipt_batches_posted_total",
			Help: "Receipt batches posted, by outcome (committed, rejected, failed)",
		}, []string{"outcome"}),
		NCRsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "ncrs_created_total",
			Help: "Auto-generated non-conformance records",
		}),
		StockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "stock_movements_total",
			Help: "Stock movements recorded, by type",
		}, []string{"type"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "http_request_duration_seconds",
			Help:    "HTTP request duration by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(m.BatchesPosted, m.NCRsCreated, m.StockMovements, m.RequestDuration)
	return m
}

// Batch outcome labels.
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)
