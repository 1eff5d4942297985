package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"

	"voxarch/internal/contextutil"
	"voxarch/internal/rag"
	"voxarch/internal/service"
)

// maxUploadBytes bounds the size of an uploaded query clip (32 MiB).
const maxUploadBytes = 32 << 20

// QueryAudioHandler handles HTTP requests for audio queries. The query clip
// arrives as a multipart upload and is spooled to a temp file for decoding
// and transcription.
type QueryAudioHandler struct {
	engine rag.Engine
}

// NewQueryAudioHandler creates a new QueryAudioHandler.
func NewQueryAudioHandler(engine rag.Engine) *QueryAudioHandler {
	return &QueryAudioHandler{engine: engine}
}

// ServeHTTP handles POST /api/query_audio.
func (h *QueryAudioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.WarnContext(ctx, "invalid multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.WarnContext(ctx, "missing file field", "error", err)
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	topK := 0
	if v := r.FormValue("top_k"); v != "" {
		topK, err = strconv.Atoi(v)
		if err != nil || topK < 0 {
			writeEngineError(w, ctx, &service.ValidationError{Field: "top_k", Message: "must be a non-negative integer"})
			return
		}
	}

	tmp, err := os.CreateTemp("", "query-*.wav")
	if err != nil {
		logger.ErrorContext(ctx, "failed to create temp file", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		logger.ErrorContext(ctx, "failed to spool upload", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := tmp.Close(); err != nil {
		logger.ErrorContext(ctx, "failed to close temp file", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	logger.DebugContext(ctx, "audio query received", "filename", header.Filename, "size", header.Size, "top_k", topK)

	resp, err := h.engine.QueryAudio(ctx, tmpPath, topK)
	if err != nil {
		writeEngineError(w, ctx, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
