package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"stockcost/internal/app"
)

// stockPositions handles GET /api/stock?location=.
func (h *Handler) stockPositions(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStockPositions(r.Context(), r.URL.Query().Get("location"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// stockMovements handles GET /api/stock/movements?location=&item=&limit=.
func (h *Handler) stockMovements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	result, err := h.svc.GetStockMovements(r.Context(),
		r.URL.Query().Get("location"), r.URL.Query().Get("item"), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type issueRequest struct {
	LocationCode string          `json:"location_code"`
	ItemCode     string          `json:"item_code"`
	Quantity     decimal.Decimal `json:"quantity"`
	Notes        string          `json:"notes,omitempty"`
}

// issueStock handles POST /api/stock/issues.
func (h *Handler) issueStock(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.IssueStock(r.Context(), app.IssueStockRequest{
		LocationCode: req.LocationCode,
		ItemCode:     req.ItemCode,
		Quantity:     req.Quantity,
		Notes:        req.Notes,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type transferRequest struct {
	FromLocation string          `json:"from_location"`
	ToLocation   string          `json:"to_location"`
	ItemCode     string          `json:"item_code"`
	Quantity     decimal.Decimal `json:"quantity"`
	Notes        string          `json:"notes,omitempty"`
}

// transferStock handles POST /api/stock/transfers.
func (h *Handler) transferStock(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.TransferStock(r.Context(), app.TransferStockRequest{
		FromLocation: req.FromLocation,
		ToLocation:   req.ToLocation,
		ItemCode:     req.ItemCode,
		Quantity:     req.Quantity,
		Notes:        req.Notes,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
