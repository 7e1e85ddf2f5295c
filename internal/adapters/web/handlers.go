package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"stockcost/internal/app"
	"stockcost/internal/config"
	"stockcost/internal/metrics"
	"stockcost/internal/policy"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc app.ApplicationService
	log *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, cfg config.ServerConfig, log *zap.Logger, m *metrics.Metrics) http.Handler {
	h := &Handler{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Role)
	r.Use(Logger(log, m))
	r.Use(Recoverer(log))
	r.Use(CORS(cfg.AllowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/schema/delivery", h.deliverySchema)

	// ── Guarded API ───────────────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(cfg.BodyLimitBytes))

		r.Group(func(r chi.Router) {
			r.Use(Require(policy.ActionPostDelivery))
			r.Post("/api/deliveries", h.postDelivery)
		})
		r.Group(func(r chi.Router) {
			r.Use(Require(policy.ActionViewStock))
			r.Get("/api/deliveries", h.listDeliveries)
			r.Get("/api/deliveries/{reference}", h.getDelivery)
			r.Get("/api/stock", h.stockPositions)
			r.Get("/api/stock/movements", h.stockMovements)
		})
		r.Group(func(r chi.Router) {
			r.Use(Require(policy.ActionIssueStock))
			r.Post("/api/stock/issues", h.issueStock)
		})
		r.Group(func(r chi.Router) {
			r.Use(Require(policy.ActionTransferStock))
			r.Post("/api/stock/transfers", h.transferStock)
		})
		r.Group(func(r chi.Router) {
			r.Use(Require(policy.ActionViewNCRs))
			r.Get("/api/ncrs", h.listNCRs)
			r.Get("/api/ncrs/{number}", h.getNCR)
		})
		r.Group(func(r chi.Router) {
			r.Use(Require(policy.ActionResolveNCR))
			r.Post("/api/ncrs/{number}/resolve", h.resolveNCR)
		})
		r.Group(func(r chi.Router) {
			r.Use(Require(policy.ActionViewStock))
			r.Get("/api/periods", h.listPeriods)
			r.Get("/api/periods/{code}/prices", h.listPeriodPrices)
		})
		r.Group(func(r chi.Router) {
			r.Use(Require(policy.ActionManagePeriods))
			r.Post("/api/periods", h.createPeriod)
			r.Post("/api/periods/{code}/lock", h.lockPeriod)
			r.Put("/api/periods/{code}/prices/{item}", h.setPeriodPrice)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
