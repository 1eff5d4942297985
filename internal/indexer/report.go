package indexer

import (
	"context"
	"errors"
	"time"

	"voxarch/internal/service"
)

// Skip reason labels used in build reports.
const (
	ReasonUnsupportedFormat = "unsupported_format"
	ReasonReadError         = "read_error"
	ReasonDegenerateInput   = "degenerate_input"
	ReasonEmbeddingError    = "embedding_error"
	ReasonTimeout           = "timeout"
	ReasonError             = "error"
)

// FileResult records the outcome of indexing one corpus file.
type FileResult struct {
	// Filename is the base filename within its corpus directory.
	Filename string `json:"filename"`
	// Modality is "text" or "audio".
	Modality string `json:"modality"`
	// Status is "indexed" or "skipped".
	Status string `json:"status"`
	// Chunks is the number of chunks produced (indexed files only).
	Chunks int `json:"chunks,omitempty"`
	// ChunksSkipped is the number of chunks dropped as unembeddable, such as
	// silent audio windows (indexed files only).
	ChunksSkipped int `json:"chunks_skipped,omitempty"`
	// Reason is the skip reason label (skipped files only).
	Reason string `json:"reason,omitempty"`
	// Detail is the underlying error message (skipped files only).
	Detail string `json:"detail,omitempty"`
}

// BuildReport summarizes one full corpus build. A skipped file never aborts
// the build; it is recorded here instead.
type BuildReport struct {
	// StartedAt/FinishedAt bound the build wall-clock time.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// FilesSeen is the total number of corpus files discovered.
	FilesSeen int `json:"files_seen"`
	// FilesIndexed is the number of files that produced at least one chunk.
	FilesIndexed int `json:"files_indexed"`
	// FilesSkipped is the number of files recorded as skipped.
	FilesSkipped int `json:"files_skipped"`
	// ChunksIndexed is the total number of chunks embedded and stored.
	ChunksIndexed int `json:"chunks_indexed"`
	// ChunksSkipped is the total number of chunks dropped as unembeddable
	// within otherwise indexed files.
	ChunksSkipped int `json:"chunks_skipped"`
	// SkipReasons is a breakdown of skips by reason label.
	SkipReasons map[string]int `json:"skip_reasons,omitempty"`
	// Files lists the per-file outcomes in scan order.
	Files []FileResult `json:"files"`
}

func newBuildReport() *BuildReport {
	return &BuildReport{
		StartedAt:   time.Now().UTC(),
		SkipReasons: make(map[string]int),
	}
}

func (r *BuildReport) recordIndexed(filename, modality string, chunks, skippedChunks int) {
	r.FilesIndexed++
	r.ChunksIndexed += chunks
	r.ChunksSkipped += skippedChunks
	r.Files = append(r.Files, FileResult{
		Filename:      filename,
		Modality:      modality,
		Status:        "indexed",
		Chunks:        chunks,
		ChunksSkipped: skippedChunks,
	})
}

func (r *BuildReport) recordSkipped(filename, modality string, err error) {
	reason := skipReason(err)
	r.FilesSkipped++
	r.SkipReasons[reason]++
	r.Files = append(r.Files, FileResult{
		Filename: filename,
		Modality: modality,
		Status:   "skipped",
		Reason:   reason,
		Detail:   err.Error(),
	})
}

// skipReason classifies an indexing error into a stable reason label.
func skipReason(err error) string {
	switch {
	case errors.Is(err, service.ErrUnsupportedFormat):
		return ReasonUnsupportedFormat
	case errors.Is(err, service.ErrSourceRead):
		return ReasonReadError
	case errors.Is(err, service.ErrDegenerateInput):
		return ReasonDegenerateInput
	case errors.Is(err, service.ErrEmbeddingModel):
		return ReasonEmbeddingError
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	default:
		return ReasonError
	}
}
