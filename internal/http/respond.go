package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"flowledger/internal/core"
	"flowledger/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps known error kinds onto HTTP statuses: missing
// records become 404, validation failures 422, anything else 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case isValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"error", err,
			"method", r.Method,
			"url", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, known := range []error{
		core.ErrInvalidAmount,
		core.ErrInvalidStatus,
		core.ErrInvalidCadence,
		core.ErrInvalidTaxRate,
		core.ErrEmptyName,
		core.ErrEmptyDescription,
		core.ErrNegativeQuantity,
		core.ErrNegativeReminderLead,
		core.ErrZeroDueDate,
		core.ErrDescriptionTooLong,
		core.ErrNameTooLong,
		core.ErrMissingPaidDate,
		core.ErrMissingSubscription,
		core.ErrZeroPaymentDate,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
