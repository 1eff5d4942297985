package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxarch/internal/config"
	"voxarch/internal/contextutil"
	"voxarch/internal/corpus"
	"voxarch/internal/llm"
	"voxarch/internal/segment"
	"voxarch/internal/service"
	"voxarch/internal/storage"
	"voxarch/internal/vectorstore"
)

// Pipeline orchestrates corpus building: it segments text and audio sources
// into chunks, embeds them into their spaces, catalogs them in SQLite, and
// adds their vectors to the similarity store.
type Pipeline struct {
	scanner     *corpus.Scanner
	sourceRepo  storage.SourceStore
	chunkRepo   storage.ChunkStore
	textSeg     *segment.TextSegmenter
	audioSeg    *segment.AudioSegmenter
	embedder    llm.Embedder
	acoustic    llm.AcousticEmbedder
	store       vectorstore.Store
	embedMethod config.EmbedMethod
	fileTimeout time.Duration

	mu         sync.RWMutex
	lastReport *BuildReport
}

// NewPipeline creates a build pipeline. acoustic may be nil when the embed
// method never produces acoustic chunks.
func NewPipeline(
	scanner *corpus.Scanner,
	sourceRepo storage.SourceStore,
	chunkRepo storage.ChunkStore,
	textSeg *segment.TextSegmenter,
	audioSeg *segment.AudioSegmenter,
	embedder llm.Embedder,
	acoustic llm.AcousticEmbedder,
	store vectorstore.Store,
	embedMethod config.EmbedMethod,
	fileTimeout time.Duration,
) *Pipeline {
	return &Pipeline{
		scanner:     scanner,
		sourceRepo:  sourceRepo,
		chunkRepo:   chunkRepo,
		textSeg:     textSeg,
		audioSeg:    audioSeg,
		embedder:    embedder,
		acoustic:    acoustic,
		store:       store,
		embedMethod: embedMethod,
		fileTimeout: fileTimeout,
	}
}

// EnsureSpaces creates or validates the embedding spaces the pipeline writes
// to. The text space always exists; the audio space only when the embed
// method produces acoustic chunks.
func (p *Pipeline) EnsureSpaces(ctx context.Context) error {
	if err := p.store.EnsureSpace(ctx, segment.SpaceText, p.embedder.Dimension(), vectorstore.MetricCosine); err != nil {
		return fmt.Errorf("failed to ensure text space: %w", err)
	}
	if p.acoustic != nil && (p.embedMethod == config.EmbedAudio || p.embedMethod == config.EmbedBoth) {
		if err := p.store.EnsureSpace(ctx, segment.SpaceAudio, p.acoustic.Dimension(), vectorstore.MetricCosine); err != nil {
			return fmt.Errorf("failed to ensure audio space: %w", err)
		}
	}
	return nil
}

// BuildAll rebuilds the whole index from the corpus directories. Individual
// file failures are recorded in the report and never abort the build; only
// infrastructure failures (store, catalog, scan) do.
func (p *Pipeline) BuildAll(ctx context.Context) (*BuildReport, error) {
	logger := contextutil.LoggerFromContext(ctx)
	report := newBuildReport()

	// Spaces are registered before the reset so a server-backed store knows
	// which collections to drop on a fresh process, and again after so the
	// emptied spaces exist for the new build.
	if err := p.EnsureSpaces(ctx); err != nil {
		return nil, err
	}
	if err := p.store.Reset(ctx); err != nil {
		return nil, service.WrapError(err, "failed to reset vector store")
	}
	if err := p.EnsureSpaces(ctx); err != nil {
		return nil, err
	}

	files, err := p.scanner.ScanAll(ctx)
	if err != nil {
		return nil, service.WrapError(err, "failed to scan corpus")
	}
	report.FilesSeen = len(files)

	logger.InfoContext(ctx, "starting corpus build", "total_files", len(files))

	for _, file := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		indexed, skippedChunks, err := p.indexFile(ctx, file)
		if err != nil {
			logger.WarnContext(ctx, "skipping file", "filename", file.Filename, "reason", skipReason(err), "error", err)
			report.recordSkipped(file.Filename, file.Modality, err)
			continue
		}
		report.recordIndexed(file.Filename, file.Modality, indexed, skippedChunks)
	}

	if err := p.store.Persist(ctx); err != nil {
		return nil, service.WrapError(err, "failed to persist vector store")
	}

	report.FinishedAt = time.Now().UTC()
	logger.InfoContext(ctx, "corpus build completed",
		"files_seen", report.FilesSeen,
		"files_indexed", report.FilesIndexed,
		"files_skipped", report.FilesSkipped,
		"chunks_indexed", report.ChunksIndexed,
		"chunks_skipped", report.ChunksSkipped)

	p.mu.Lock()
	p.lastReport = report
	p.mu.Unlock()

	return report, nil
}

// LastReport returns the report of the most recent build, or nil if no build
// has completed yet.
func (p *Pipeline) LastReport() *BuildReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastReport
}

// indexFile indexes one corpus file under the per-file timeout. It returns
// the number of chunks indexed and the number dropped as unembeddable.
func (p *Pipeline) indexFile(ctx context.Context, file corpus.ScannedFile) (int, int, error) {
	if p.fileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.fileTimeout)
		defer cancel()
	}

	switch file.Modality {
	case "audio":
		return p.indexAudioFile(ctx, file)
	default:
		return p.indexTextFile(ctx, file)
	}
}

func (p *Pipeline) indexTextFile(ctx context.Context, file corpus.ScannedFile) (int, int, error) {
	chunks, err := p.textSeg.Segment(file.AbsPath)
	if err != nil {
		return 0, 0, err
	}
	if len(chunks) == 0 {
		return 0, 0, fmt.Errorf("%w: %s produced no chunks", service.ErrDegenerateInput, file.Filename)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, 0, err
	}
	if len(embeddings) != len(chunks) {
		return 0, 0, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(embeddings))
	}

	points := make([]vectorstore.Point, len(chunks))
	for i := range chunks {
		vecID := vectorID(chunks[i].ID)
		chunks[i].SpaceRefs[segment.SpaceText] = vecID
		points[i] = vectorstore.Point{ID: vecID, Vec: embeddings[i]}
	}

	if _, err := p.catalog(ctx, file, chunks); err != nil {
		return 0, 0, err
	}

	if err := p.store.Add(ctx, segment.SpaceText, points); err != nil {
		return 0, 0, err
	}
	return len(chunks), 0, nil
}

func (p *Pipeline) indexAudioFile(ctx context.Context, file corpus.ScannedFile) (int, int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	chunks, waveform, err := p.audioSeg.Segment(ctx, file.AbsPath)
	if err != nil {
		return 0, 0, err
	}
	if len(chunks) == 0 {
		return 0, 0, fmt.Errorf("%w: %s produced no chunks", service.ErrDegenerateInput, file.Filename)
	}

	// Unembeddable acoustic windows are dropped up front, before anything is
	// embedded or cataloged. windows runs parallel to the kept chunks: nil
	// for transcript chunks, the cut waveform for acoustic ones.
	kept := chunks[:0]
	var windows []*segment.Waveform
	skipped := 0
	for i := range chunks {
		if chunks[i].Text != "" {
			kept = append(kept, chunks[i])
			windows = append(windows, nil)
			continue
		}
		if waveform == nil || p.acoustic == nil {
			skipped++
			continue
		}
		var start float64
		if chunks[i].StartTime != nil {
			start = *chunks[i].StartTime
		}
		window := waveform.Window(start, chunks[i].EndTime)
		if window.IsSilent() {
			logger.DebugContext(ctx, "dropping silent window", "filename", file.Filename, "chunk_index", chunks[i].ChunkIndex)
			skipped++
			continue
		}
		kept = append(kept, chunks[i])
		windows = append(windows, window)
	}
	chunks = kept
	if len(chunks) == 0 {
		return 0, skipped, fmt.Errorf("%w: %s produced no embeddable chunks", service.ErrDegenerateInput, file.Filename)
	}

	// Drops leave gaps in the numbering, so survivors are renumbered to keep
	// chunk indices dense per source and their IDs re-derived.
	for i := range chunks {
		chunks[i].ChunkIndex = i
		chunks[i].ID = segment.ChunkID(chunks[i].SourceFile, i, chunks[i].Text)
	}

	// Transcript chunks embed into the text space as a batch; acoustic
	// chunks embed one waveform window at a time.
	var textPoints []vectorstore.Point
	var audioPoints []vectorstore.Point
	var transcriptIdx []int
	var transcriptTexts []string

	for i := range chunks {
		if chunks[i].Text != "" {
			transcriptIdx = append(transcriptIdx, i)
			transcriptTexts = append(transcriptTexts, chunks[i].Text)
		}
	}
	if len(transcriptTexts) > 0 {
		embeddings, err := p.embedder.EmbedTexts(ctx, transcriptTexts)
		if err != nil {
			return 0, skipped, err
		}
		if len(embeddings) != len(transcriptTexts) {
			return 0, skipped, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(transcriptTexts), len(embeddings))
		}
		for j, i := range transcriptIdx {
			vecID := vectorID(chunks[i].ID)
			chunks[i].SpaceRefs[segment.SpaceText] = vecID
			textPoints = append(textPoints, vectorstore.Point{ID: vecID, Vec: embeddings[j]})
		}
	}

	for i := range chunks {
		if windows[i] == nil {
			continue
		}
		wavBytes, err := windows[i].EncodeWAV()
		if err != nil {
			return 0, skipped, err
		}
		vec, err := p.acoustic.EmbedWAV(ctx, wavBytes)
		if err != nil {
			return 0, skipped, err
		}
		vecID := vectorID(chunks[i].ID)
		chunks[i].SpaceRefs[segment.SpaceAudio] = vecID
		audioPoints = append(audioPoints, vectorstore.Point{ID: vecID, Vec: vec})
	}

	if _, err := p.catalog(ctx, file, chunks); err != nil {
		return 0, skipped, err
	}

	if len(textPoints) > 0 {
		if err := p.store.Add(ctx, segment.SpaceText, textPoints); err != nil {
			return 0, skipped, err
		}
	}
	if len(audioPoints) > 0 {
		if err := p.store.Add(ctx, segment.SpaceAudio, audioPoints); err != nil {
			return 0, skipped, err
		}
	}
	return len(chunks), skipped, nil
}

// catalog upserts the source record and replaces its chunk rows.
func (p *Pipeline) catalog(ctx context.Context, file corpus.ScannedFile, chunks []segment.Chunk) (string, error) {
	hash, err := fileHash(file.AbsPath)
	if err != nil {
		return "", err
	}

	sourceID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(file.Filename)).String()
	record := &storage.SourceRecord{
		ID:       sourceID,
		Filename: file.Filename,
		Modality: file.Modality,
		Hash:     hash,
	}
	if err := p.sourceRepo.Upsert(ctx, record); err != nil {
		return "", err
	}
	if err := p.chunkRepo.DeleteBySource(ctx, sourceID); err != nil {
		return "", err
	}

	for i := range chunks {
		chunkRecord := &storage.ChunkRecord{
			ID:         chunks[i].ID,
			SourceID:   sourceID,
			ChunkIndex: chunks[i].ChunkIndex,
			Modality:   string(chunks[i].Modality),
			Section:    chunks[i].Section,
			Text:       chunks[i].Text,
			StartTime:  chunks[i].StartTime,
			EndTime:    chunks[i].EndTime,
			SpaceRefs:  chunks[i].SpaceRefs,
		}
		if err := p.chunkRepo.Insert(ctx, chunkRecord); err != nil {
			return "", err
		}
	}
	return sourceID, nil
}

// vectorID converts a chunk ID into a UUID-form vector id. Chunk IDs are
// 32 hex characters, which parse directly as UUIDs; anything else maps
// through a deterministic name-based UUID.
func vectorID(chunkID string) string {
	if u, err := uuid.Parse(chunkID); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// fileHash computes the SHA256 hex digest of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
