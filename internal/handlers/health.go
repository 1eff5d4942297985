package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"voxarch/internal/contextutil"
	"voxarch/internal/segment"
	"voxarch/internal/storage"
	"voxarch/internal/vectorstore"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	store              vectorstore.Store
	chunks             storage.ChunkStore
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(store vectorstore.Store, chunks storage.ChunkStore) *HealthHandler {
	return &HealthHandler{
		store:              store,
		chunks:             chunks,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy".
	Status string `json:"status"`
	// Timestamp of the health check.
	Timestamp string `json:"timestamp"`
	// Individual check results.
	Checks map[string]string `json:"checks"`
	// ChunkCount is the number of cataloged chunks (when the catalog is up).
	ChunkCount int `json:"chunk_count"`
	// Issues found (only present when unhealthy).
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles GET /api/health. Returns 200 when the catalog and vector
// store are reachable, 503 otherwise. An empty index is reachable; readiness
// for queries is signaled per-request with 503 instead.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string

	if _, err := h.store.Count(checkCtx, segment.SpaceText); err != nil {
		logger.WarnContext(ctx, "vector store health check failed", "error", err)
		checks["vector_store"] = "error"
		issues = append(issues, "vector_store_unavailable")
	} else {
		checks["vector_store"] = "ok"
	}

	// Counting chunks exercises both connectivity and schema.
	chunkCount, err := h.chunks.CountAll(checkCtx)
	if err != nil {
		logger.WarnContext(ctx, "catalog health check failed", "error", err)
		checks["catalog"] = "error"
		issues = append(issues, "catalog_unavailable")
	} else {
		checks["catalog"] = "ok"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:     status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Checks:     checks,
		ChunkCount: chunkCount,
		Issues:     issues,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}
