package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"stockcost/internal/app"
)

// listPeriods handles GET /api/periods.
func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListPeriods(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type createPeriodRequest struct {
	Code     string `json:"code"`
	StartsOn string `json:"starts_on"`
	EndsOn   string `json:"ends_on"`
}

// createPeriod handles POST /api/periods.
func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	var req createPeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	startsOn, err := time.Parse("2006-01-02", req.StartsOn)
	if err != nil {
		writeError(w, r, "invalid starts_on, want YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	endsOn, err := time.Parse("2006-01-02", req.EndsOn)
	if err != nil {
		writeError(w, r, "invalid ends_on, want YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	period, err := h.svc.CreatePeriod(r.Context(), app.CreatePeriodRequest{
		Code:     req.Code,
		StartsOn: startsOn,
		EndsOn:   endsOn,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, period)
}

// lockPeriod handles POST /api/periods/{code}/lock.
func (h *Handler) lockPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := h.svc.LockPeriod(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, period)
}

type setPriceRequest struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// setPeriodPrice handles PUT /api/periods/{code}/prices/{item}.
func (h *Handler) setPeriodPrice(w http.ResponseWriter, r *http.Request) {
	var req setPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	err := h.svc.SetPeriodPrice(r.Context(), app.SetPeriodPriceRequest{
		PeriodCode: chi.URLParam(r, "code"),
		ItemCode:   chi.URLParam(r, "item"),
		UnitPrice:  req.UnitPrice,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listPeriodPrices handles GET /api/periods/{code}/prices.
func (h *Handler) listPeriodPrices(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListPeriodPrices(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
