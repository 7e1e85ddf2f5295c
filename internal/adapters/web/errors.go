package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"stockcost/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps a domain error to an HTTP status and machine code.
// Unmatched errors are infrastructure failures: the batch (if any) has rolled
// back and the caller may retry with the same reference.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, r, err.Error(), "VALIDATION_FAILED", http.StatusBadRequest)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrDuplicateReference):
		writeError(w, r, err.Error(), "DUPLICATE_REFERENCE", http.StatusConflict)
	case errors.Is(err, core.ErrNoOpenPeriod):
		writeError(w, r, err.Error(), "NO_OPEN_PERIOD", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrNoPeriodPrice):
		writeError(w, r, err.Error(), "NO_PERIOD_PRICE", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrPeriodLocked):
		writeError(w, r, err.Error(), "PERIOD_LOCKED", http.StatusConflict)
	case errors.Is(err, core.ErrInsufficientStock):
		writeError(w, r, err.Error(), "INSUFFICIENT_STOCK", http.StatusUnprocessableEntity)
	default:
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
