package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"telemetryd/internal/services"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Validation problems go back verbatim so the client learns which field is
// wrong; persistence detail stays in the server log and the client gets a
// generic message.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var missing *services.MissingFieldError
	var invalid *services.InvalidTypeError
	var persist *services.PersistenceError

	switch {
	case errors.As(err, &missing), errors.As(err, &invalid), errors.Is(err, services.ErrInvalidTimestamp):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &persist):
		logger.Error("store operation failed", "op", persist.Op, "error", persist.Err)
		writeError(w, http.StatusInternalServerError, "internal storage error")
	default:
		logger.Error("unexpected error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
