package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"voxarch/internal/contextutil"
	"voxarch/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// writeEngineError maps query engine errors to HTTP status codes.
// Invalid or degenerate input is the caller's fault (400), embedding and
// generation failures are upstream faults (502), an empty or absent index is
// a not-ready condition (503), anything else is a 500.
func writeEngineError(w http.ResponseWriter, ctx context.Context, err error) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "query failed", "error", err)

	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrUnsupportedFormat),
		errors.Is(err, service.ErrDegenerateInput),
		errors.Is(err, service.ErrSourceRead):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrEmbeddingModel):
		writeError(w, http.StatusBadGateway, "embedding or generation service failure")
	case errors.Is(err, service.ErrIndexUnavailable):
		writeError(w, http.StatusServiceUnavailable, "index unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
