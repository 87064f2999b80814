package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"cosnap-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// QuotaErrorResponse carries the limiting numbers so the client can
// offer an upgrade path.
type QuotaErrorResponse struct {
	Error  string `json:"error"`
	Tier   string `json:"tier"`
	Limit  int    `json:"limit"`
	Active int    `json:"active"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// respondServiceError maps the lifecycle error taxonomy to HTTP.
func respondServiceError(w http.ResponseWriter, err error) {
	var quotaErr *services.QuotaExceededError
	if errors.As(err, &quotaErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(QuotaErrorResponse{
			Error:  quotaErr.Error(),
			Tier:   string(quotaErr.Tier),
			Limit:  quotaErr.Limit,
			Active: quotaErr.Active,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrValidation):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidTransition):
		respondError(w, err.Error(), http.StatusConflict)
	default:
		respondError(w, "internal error", http.StatusInternalServerError)
	}
}
