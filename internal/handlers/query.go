package handlers

import (
	"encoding/json"
	"net/http"

	"voxarch/internal/contextutil"
	"voxarch/internal/rag"
	"voxarch/internal/service"
)

// QueryHandler handles HTTP requests for text queries.
type QueryHandler struct {
	engine rag.Engine
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(engine rag.Engine) *QueryHandler {
	return &QueryHandler{engine: engine}
}

// QueryRequest represents the HTTP request payload for text queries.
// This mirrors rag.QueryRequest but is defined here for HTTP layer separation.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// ServeHTTP handles POST /api/query.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		logger.WarnContext(ctx, "empty query in request")
		writeEngineError(w, ctx, &service.ValidationError{Field: "query", Message: "is required"})
		return
	}
	if req.TopK < 0 {
		req.TopK = 0
	}

	resp, err := h.engine.Query(ctx, rag.QueryRequest{
		Question: req.Query,
		TopK:     req.TopK,
	})
	if err != nil {
		writeEngineError(w, ctx, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
