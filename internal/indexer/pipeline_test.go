package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"voxarch/internal/config"
	"voxarch/internal/corpus"
	llm_mocks "voxarch/internal/llm/mocks"
	"voxarch/internal/segment"
	"voxarch/internal/service"
	"voxarch/internal/storage"
	storage_mocks "voxarch/internal/storage/mocks"
	"voxarch/internal/vectorstore"
	vectorstore_mocks "voxarch/internal/vectorstore/mocks"
)

type pipelineMocks struct {
	sourceRepo *storage_mocks.MockSourceStore
	chunkRepo  *storage_mocks.MockChunkStore
	embedder   *llm_mocks.MockEmbedder
	acoustic   *llm_mocks.MockAcousticEmbedder
	store      *vectorstore_mocks.MockStore
}

func newPipelineMocks(ctrl *gomock.Controller) pipelineMocks {
	return pipelineMocks{
		sourceRepo: storage_mocks.NewMockSourceStore(ctrl),
		chunkRepo:  storage_mocks.NewMockChunkStore(ctrl),
		embedder:   llm_mocks.NewMockEmbedder(ctrl),
		acoustic:   llm_mocks.NewMockAcousticEmbedder(ctrl),
		store:      vectorstore_mocks.NewMockStore(ctrl),
	}
}

func newTestPipeline(t *testing.T, m pipelineMocks, textDir, audioDir string) *Pipeline {
	t.Helper()

	textSeg, err := segment.NewTextSegmenter(segment.TextOptions{
		ChunkSize:      100,
		Overlap:        10,
		MinChunkWords:  1,
		HeadingPattern: `^Chapter\b`,
		Extensions:     []string{".txt"},
	})
	if err != nil {
		t.Fatalf("NewTextSegmenter() error = %v", err)
	}
	audioSeg := segment.NewAudioSegmenter(segment.AudioOptions{
		ChunkSize:  100,
		SampleRate: 16000,
		WindowSec:  1.0,
		Extensions: []string{".wav"},
		Method:     config.EmbedTranscript,
	}, nil)

	scanner := corpus.NewScanner(textDir, audioDir)
	return NewPipeline(scanner, m.sourceRepo, m.chunkRepo, textSeg, audioSeg,
		m.embedder, nil, m.store, config.EmbedTranscript, time.Minute)
}

func writeCorpusFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestPipeline_BuildAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	textDir := t.TempDir()
	writeCorpusFile(t, textDir, "book.txt", "Chapter 1\n"+strings.Repeat("word ", 30))
	writeCorpusFile(t, textDir, "empty.txt", "")
	writeCorpusFile(t, textDir, "notes.rst", "some restructured text")

	m := newPipelineMocks(ctrl)
	m.store.EXPECT().Reset(gomock.Any()).Return(nil)
	m.embedder.EXPECT().Dimension().Return(4).Times(2)
	m.store.EXPECT().EnsureSpace(gomock.Any(), segment.SpaceText, 4, vectorstore.MetricCosine).Return(nil).Times(2)

	// Only book.txt survives segmentation.
	m.embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Len(1)).Return([][]float32{{1, 0, 0, 0}}, nil)
	m.sourceRepo.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)
	m.chunkRepo.EXPECT().DeleteBySource(gomock.Any(), gomock.Any()).Return(nil)
	m.chunkRepo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
	m.store.EXPECT().Add(gomock.Any(), segment.SpaceText, gomock.Len(1)).Return(nil)
	m.store.EXPECT().Persist(gomock.Any()).Return(nil)

	pipeline := newTestPipeline(t, m, textDir, "")
	report, err := pipeline.BuildAll(context.Background())
	if err != nil {
		t.Fatalf("BuildAll() error = %v", err)
	}

	if report.FilesSeen != 3 {
		t.Errorf("FilesSeen = %d, want 3", report.FilesSeen)
	}
	if report.FilesIndexed != 1 {
		t.Errorf("FilesIndexed = %d, want 1", report.FilesIndexed)
	}
	if report.FilesSkipped != 2 {
		t.Errorf("FilesSkipped = %d, want 2", report.FilesSkipped)
	}
	if report.ChunksIndexed != 1 {
		t.Errorf("ChunksIndexed = %d, want 1", report.ChunksIndexed)
	}
	if report.SkipReasons[ReasonDegenerateInput] != 1 {
		t.Errorf("SkipReasons[degenerate_input] = %d, want 1", report.SkipReasons[ReasonDegenerateInput])
	}
	if report.SkipReasons[ReasonUnsupportedFormat] != 1 {
		t.Errorf("SkipReasons[unsupported_format] = %d, want 1", report.SkipReasons[ReasonUnsupportedFormat])
	}
	if len(report.Files) != 3 {
		t.Errorf("per-file results = %d, want 3", len(report.Files))
	}

	if pipeline.LastReport() != report {
		t.Error("LastReport() should return the completed build's report")
	}
}

func TestPipeline_BuildAll_UnsupportedAudioFileReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	audioDir := t.TempDir()
	writeCorpusFile(t, audioDir, "clip.mp4", "not really audio")

	m := newPipelineMocks(ctrl)
	m.store.EXPECT().Reset(gomock.Any()).Return(nil)
	m.embedder.EXPECT().Dimension().Return(4).Times(2)
	m.store.EXPECT().EnsureSpace(gomock.Any(), segment.SpaceText, 4, vectorstore.MetricCosine).Return(nil).Times(2)
	m.store.EXPECT().Persist(gomock.Any()).Return(nil)

	pipeline := newTestPipeline(t, m, "", audioDir)
	report, err := pipeline.BuildAll(context.Background())
	if err != nil {
		t.Fatalf("BuildAll() error = %v", err)
	}

	if report.FilesSeen != 1 {
		t.Errorf("FilesSeen = %d, want 1", report.FilesSeen)
	}
	if report.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1", report.FilesSkipped)
	}
	if report.SkipReasons[ReasonUnsupportedFormat] != 1 {
		t.Errorf("SkipReasons[unsupported_format] = %d, want 1", report.SkipReasons[ReasonUnsupportedFormat])
	}
	if len(report.Files) != 1 || report.Files[0].Filename != "clip.mp4" || report.Files[0].Status != "skipped" {
		t.Errorf("Files = %+v, want clip.mp4 recorded as skipped", report.Files)
	}
}

func TestPipeline_BuildAll_ResetAfterSpaceRegistration(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := newPipelineMocks(ctrl)
	m.embedder.EXPECT().Dimension().Return(4).Times(2)

	// The store must learn its spaces before the reset; a server-backed
	// store on a fresh process has nothing to drop otherwise.
	first := m.store.EXPECT().EnsureSpace(gomock.Any(), segment.SpaceText, 4, vectorstore.MetricCosine).Return(nil)
	reset := m.store.EXPECT().Reset(gomock.Any()).Return(nil)
	second := m.store.EXPECT().EnsureSpace(gomock.Any(), segment.SpaceText, 4, vectorstore.MetricCosine).Return(nil)
	gomock.InOrder(first, reset, second)
	m.store.EXPECT().Persist(gomock.Any()).Return(nil)

	pipeline := newTestPipeline(t, m, t.TempDir(), "")
	if _, err := pipeline.BuildAll(context.Background()); err != nil {
		t.Fatalf("BuildAll() error = %v", err)
	}
}

func TestPipeline_BuildAll_ResetError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := newPipelineMocks(ctrl)
	m.embedder.EXPECT().Dimension().Return(4)
	m.store.EXPECT().EnsureSpace(gomock.Any(), segment.SpaceText, 4, vectorstore.MetricCosine).Return(nil)
	m.store.EXPECT().Reset(gomock.Any()).Return(errors.New("backend down"))

	pipeline := newTestPipeline(t, m, t.TempDir(), "")
	if _, err := pipeline.BuildAll(context.Background()); err == nil {
		t.Fatal("BuildAll() expected error when store reset fails, got nil")
	}
	if pipeline.LastReport() != nil {
		t.Error("LastReport() should stay nil after a failed build")
	}
}

func TestPipeline_BuildAll_EmbeddingFailureSkipsFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	textDir := t.TempDir()
	writeCorpusFile(t, textDir, "book.txt", "Chapter 1\n"+strings.Repeat("word ", 30))

	m := newPipelineMocks(ctrl)
	m.store.EXPECT().Reset(gomock.Any()).Return(nil)
	m.embedder.EXPECT().Dimension().Return(4).Times(2)
	m.store.EXPECT().EnsureSpace(gomock.Any(), segment.SpaceText, 4, vectorstore.MetricCosine).Return(nil).Times(2)
	m.embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).
		Return(nil, service.WrapError(service.ErrEmbeddingModel, "model unavailable"))
	m.store.EXPECT().Persist(gomock.Any()).Return(nil)

	pipeline := newTestPipeline(t, m, textDir, "")
	report, err := pipeline.BuildAll(context.Background())
	if err != nil {
		t.Fatalf("BuildAll() error = %v, embedding failures should skip, not abort", err)
	}
	if report.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1", report.FilesSkipped)
	}
	if report.SkipReasons[ReasonEmbeddingError] != 1 {
		t.Errorf("SkipReasons[embedding_error] = %d, want 1", report.SkipReasons[ReasonEmbeddingError])
	}
}

func TestPipeline_BuildAll_SilentWindowsSkippedAndRenumbered(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// 2.5s of audio at 8kHz: second 0 audible, second 1 silent, the half
	// second tail audible. One-second windows give chunks 0, 1, 2 of which
	// chunk 1 is dropped as silent.
	samples := make([]int, 20000)
	for i := 0; i < 8000; i++ {
		samples[i] = 1000
	}
	for i := 16000; i < 20000; i++ {
		samples[i] = 1000
	}
	wavBytes, err := (&segment.Waveform{SampleRate: 8000, Samples: samples}).EncodeWAV()
	if err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}
	audioDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(audioDir, "clip.wav"), wavBytes, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	m := newPipelineMocks(ctrl)
	m.store.EXPECT().Reset(gomock.Any()).Return(nil)
	m.embedder.EXPECT().Dimension().Return(4).Times(2)
	m.acoustic.EXPECT().Dimension().Return(8).Times(2)
	m.store.EXPECT().EnsureSpace(gomock.Any(), segment.SpaceText, 4, vectorstore.MetricCosine).Return(nil).Times(2)
	m.store.EXPECT().EnsureSpace(gomock.Any(), segment.SpaceAudio, 8, vectorstore.MetricCosine).Return(nil).Times(2)

	m.acoustic.EXPECT().EmbedWAV(gomock.Any(), gomock.Any()).
		Return([]float32{1, 0, 0, 0, 0, 0, 0, 0}, nil).Times(2)
	m.sourceRepo.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)
	m.chunkRepo.EXPECT().DeleteBySource(gomock.Any(), gomock.Any()).Return(nil)

	var inserted []*storage.ChunkRecord
	m.chunkRepo.EXPECT().Insert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec *storage.ChunkRecord) error {
			inserted = append(inserted, rec)
			return nil
		}).Times(2)
	m.store.EXPECT().Add(gomock.Any(), segment.SpaceAudio, gomock.Len(2)).Return(nil)
	m.store.EXPECT().Persist(gomock.Any()).Return(nil)

	audioSeg := segment.NewAudioSegmenter(segment.AudioOptions{
		SampleRate: 8000,
		WindowSec:  1.0,
		Extensions: []string{".wav"},
		Method:     config.EmbedAudio,
	}, nil)
	scanner := corpus.NewScanner("", audioDir)
	pipeline := NewPipeline(scanner, m.sourceRepo, m.chunkRepo, nil, audioSeg,
		m.embedder, m.acoustic, m.store, config.EmbedAudio, time.Minute)

	report, err := pipeline.BuildAll(context.Background())
	if err != nil {
		t.Fatalf("BuildAll() error = %v", err)
	}

	if report.ChunksIndexed != 2 {
		t.Errorf("ChunksIndexed = %d, want 2", report.ChunksIndexed)
	}
	if report.ChunksSkipped != 1 {
		t.Errorf("ChunksSkipped = %d, want 1", report.ChunksSkipped)
	}
	if len(report.Files) != 1 || report.Files[0].ChunksSkipped != 1 {
		t.Errorf("Files = %+v, want clip.wav with one skipped chunk", report.Files)
	}

	// Survivors are renumbered densely and their IDs re-derived.
	if len(inserted) != 2 {
		t.Fatalf("cataloged %d chunks, want 2", len(inserted))
	}
	for i, rec := range inserted {
		if rec.ChunkIndex != i {
			t.Errorf("inserted[%d].ChunkIndex = %d, want %d", i, rec.ChunkIndex, i)
		}
		if rec.ID != segment.ChunkID("clip.wav", i, "") {
			t.Errorf("inserted[%d].ID = %q, want re-derived id for index %d", i, rec.ID, i)
		}
	}
}

func TestPipeline_EnsureSpaces_AudioMethod(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := newPipelineMocks(ctrl)
	m.embedder.EXPECT().Dimension().Return(4)
	m.acoustic.EXPECT().Dimension().Return(8)
	m.store.EXPECT().EnsureSpace(gomock.Any(), segment.SpaceText, 4, vectorstore.MetricCosine).Return(nil)
	m.store.EXPECT().EnsureSpace(gomock.Any(), segment.SpaceAudio, 8, vectorstore.MetricCosine).Return(nil)

	pipeline := NewPipeline(corpus.NewScanner("", ""), m.sourceRepo, m.chunkRepo,
		nil, nil, m.embedder, m.acoustic, m.store, config.EmbedBoth, 0)
	if err := pipeline.EnsureSpaces(context.Background()); err != nil {
		t.Fatalf("EnsureSpaces() error = %v", err)
	}
}

func TestSkipReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "unsupported format", err: service.ErrUnsupportedFormat, want: ReasonUnsupportedFormat},
		{name: "read failure", err: service.WrapError(service.ErrSourceRead, "open failed"), want: ReasonReadError},
		{name: "degenerate input", err: service.ErrDegenerateInput, want: ReasonDegenerateInput},
		{name: "embedding failure", err: service.ErrEmbeddingModel, want: ReasonEmbeddingError},
		{name: "timeout", err: context.DeadlineExceeded, want: ReasonTimeout},
		{name: "unknown", err: errors.New("something else"), want: ReasonError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := skipReason(tt.err); got != tt.want {
				t.Errorf("skipReason(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestVectorID(t *testing.T) {
	hexID := "0123456789abcdef0123456789abcdef"
	first := vectorID(hexID)
	second := vectorID(hexID)
	if first != second {
		t.Errorf("vectorID() not deterministic: %q vs %q", first, second)
	}
	if !strings.Contains(first, "-") {
		t.Errorf("vectorID() = %q, want UUID form", first)
	}

	// Non-hex IDs still map to a stable UUID.
	odd := vectorID("not-a-hex-string")
	if odd == "" || odd != vectorID("not-a-hex-string") {
		t.Error("vectorID() should be stable for non-hex input")
	}
	if odd == first {
		t.Error("distinct inputs should map to distinct vector ids")
	}
}
