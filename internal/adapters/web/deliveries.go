package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"stockcost/internal/app"
)

// DeliveryLine is one line of a delivery posting request body.
type DeliveryLine struct {
	ItemCode  string          `json:"item_code"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// DeliveryRequest is the JSON body of POST /api/deliveries. Reference is the
// caller's idempotency key; retries must reuse it.
type DeliveryRequest struct {
	LocationCode string         `json:"location_code" jsonschema:"required"`
	Supplier     string         `json:"supplier,omitempty"`
	Reference    string         `json:"reference" jsonschema:"required"`
	PostedAt     string         `json:"posted_at,omitempty" jsonschema:"description=Posting date (YYYY-MM-DD); defaults to today"`
	Lines        []DeliveryLine `json:"lines" jsonschema:"required"`
}

// postDelivery handles POST /api/deliveries.
func (h *Handler) postDelivery(w http.ResponseWriter, r *http.Request) {
	var req DeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var postedAt time.Time
	if req.PostedAt != "" {
		var err error
		postedAt, err = time.Parse("2006-01-02", req.PostedAt)
		if err != nil {
			writeError(w, r, "invalid posted_at, want YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
	}

	lines := make([]app.DeliveryLineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, app.DeliveryLineInput{
			ItemCode:  l.ItemCode,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	result, err := h.svc.PostDelivery(r.Context(), app.PostDeliveryRequest{
		LocationCode: req.LocationCode,
		Supplier:     req.Supplier,
		Reference:    req.Reference,
		PostedAt:     postedAt,
		Lines:        lines,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// getDelivery handles GET /api/deliveries/{reference}.
func (h *Handler) getDelivery(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetDelivery(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// listDeliveries handles GET /api/deliveries?location=.
func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListDeliveries(r.Context(), r.URL.Query().Get("location"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
