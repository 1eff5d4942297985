package handlers

import (
	"encoding/json"
	"net/http"

	"voxarch/internal/contextutil"
	"voxarch/internal/indexer"
)

// ReportHandler serves the latest build report.
type ReportHandler struct {
	pipeline *indexer.Pipeline
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(pipeline *indexer.Pipeline) *ReportHandler {
	return &ReportHandler{pipeline: pipeline}
}

// ServeHTTP handles GET /api/report.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	report := h.pipeline.LastReport()
	if report == nil {
		writeError(w, http.StatusNotFound, "no build has completed yet")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.ErrorContext(ctx, "failed to encode report", "error", err)
	}
}
