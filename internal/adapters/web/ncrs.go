package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"stockcost/internal/app"
	"stockcost/internal/core"
)

// listNCRs handles GET /api/ncrs?status=.
func (h *Handler) listNCRs(w http.ResponseWriter, r *http.Request) {
	status := strings.ToUpper(r.URL.Query().Get("status"))
	if status != "" && status != core.NCROpen && status != core.NCRResolved {
		writeError(w, r, "status must be OPEN or RESOLVED", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ListNCRs(r.Context(), status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// getNCR handles GET /api/ncrs/{number}.
func (h *Handler) getNCR(w http.ResponseWriter, r *http.Request) {
	ncr, err := h.svc.GetNCR(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ncr)
}

type resolveNCRRequest struct {
	Notes      string `json:"notes,omitempty"`
	ResolvedBy string `json:"resolved_by"`
}

// resolveNCR handles POST /api/ncrs/{number}/resolve.
func (h *Handler) resolveNCR(w http.ResponseWriter, r *http.Request) {
	var req resolveNCRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	ncr, err := h.svc.ResolveNCR(r.Context(), app.ResolveNCRRequest{
		NCRNumber:  chi.URLParam(r, "number"),
		Notes:      req.Notes,
		ResolvedBy: req.ResolvedBy,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ncr)
}
