package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"voxarch/internal/contextutil"
	"voxarch/internal/storage"
)

// SourceSummary is one cataloged corpus source.
type SourceSummary struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Modality  string    `json:"modality"`
	Hash      string    `json:"hash"`
	IndexedAt time.Time `json:"indexed_at"`
}

// SourceChunk is one cataloged chunk of a source.
type SourceChunk struct {
	ID         string            `json:"id"`
	ChunkIndex int               `json:"chunk_index"`
	Modality   string            `json:"modality"`
	Section    string            `json:"section,omitempty"`
	Text       string            `json:"text"`
	StartTime  *float64          `json:"start_time,omitempty"`
	EndTime    *float64          `json:"end_time,omitempty"`
	SpaceRefs  map[string]string `json:"space_refs,omitempty"`
}

// SourcesHandler lists the cataloged corpus sources.
type SourcesHandler struct {
	sources storage.SourceStore
}

// NewSourcesHandler creates a new SourcesHandler.
func NewSourcesHandler(sources storage.SourceStore) *SourcesHandler {
	return &SourcesHandler{sources: sources}
}

// ServeHTTP handles GET /api/sources.
func (h *SourcesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	records, err := h.sources.ListAll(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list sources", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	summaries := make([]SourceSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, sourceSummary(rec))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// SourceDetailResponse is one source together with its chunks in index order.
type SourceDetailResponse struct {
	Source SourceSummary `json:"source"`
	Chunks []SourceChunk `json:"chunks"`
}

// SourceDetailHandler returns one cataloged source and its chunks.
type SourceDetailHandler struct {
	sources storage.SourceStore
	chunks  storage.ChunkStore
}

// NewSourceDetailHandler creates a new SourceDetailHandler.
func NewSourceDetailHandler(sources storage.SourceStore, chunks storage.ChunkStore) *SourceDetailHandler {
	return &SourceDetailHandler{sources: sources, chunks: chunks}
}

// ServeHTTP handles GET /api/sources/{filename}.
func (h *SourceDetailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filename := chi.URLParam(r, "filename")
	if filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	source, err := h.sources.GetByFilename(ctx, filename)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to load source", "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	records, err := h.chunks.ListBySource(ctx, source.ID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list chunks", "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := SourceDetailResponse{
		Source: sourceSummary(source),
		Chunks: make([]SourceChunk, 0, len(records)),
	}
	for _, rec := range records {
		resp.Chunks = append(resp.Chunks, SourceChunk{
			ID:         rec.ID,
			ChunkIndex: rec.ChunkIndex,
			Modality:   rec.Modality,
			Section:    rec.Section,
			Text:       rec.Text,
			StartTime:  rec.StartTime,
			EndTime:    rec.EndTime,
			SpaceRefs:  rec.SpaceRefs,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func sourceSummary(rec *storage.SourceRecord) SourceSummary {
	return SourceSummary{
		ID:        rec.ID,
		Filename:  rec.Filename,
		Modality:  rec.Modality,
		Hash:      rec.Hash,
		IndexedAt: rec.IndexedAt,
	}
}
