package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ameline/snipvault/internal/apperror"
)

// ErrorResponse is the error shape every endpoint returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps the error taxonomy to HTTP. Validation and invariant
// violations are the client's fault (400), a missing row is 404, an
// unreachable remote is 502, everything else is an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	errorType := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		errorType = "validation_error"
	case errors.Is(err, apperror.ErrInvariant):
		status = http.StatusBadRequest
		errorType = "invariant_violation"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		errorType = "not_found"
	case errors.Is(err, apperror.ErrConnection):
		status = http.StatusBadGateway
		errorType = "connection_error"
	case errors.Is(err, apperror.ErrMigration):
		status = http.StatusBadGateway
		errorType = "migration_error"
	case errors.Is(err, apperror.ErrSchemaCorrupted):
		errorType = "schema_corrupted"
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, status, ErrorResponse{Error: errorType, Message: appErr.Message})
		return
	}

	// Unknown error: never leak internals (paths, SQL) to the client.
	if status == http.StatusInternalServerError {
		writeJSON(w, status, ErrorResponse{Error: errorType, Message: "An internal error occurred"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: errorType, Message: err.Error()})
}
