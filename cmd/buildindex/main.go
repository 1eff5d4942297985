package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"time"

	"voxarch/internal/config"
	"voxarch/internal/corpus"
	"voxarch/internal/indexer"
	"voxarch/internal/llm"
	"voxarch/internal/segment"
	"voxarch/internal/storage"
	"voxarch/internal/vectorstore"
)

// buildindex rebuilds the corpus index offline and prints the build report
// as JSON. Exit code is non-zero only when the build itself fails; skipped
// files are reported, not fatal.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	sourceRepo := storage.NewSourceRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	ctx := context.Background()

	var store vectorstore.Store
	switch cfg.VectorBackend {
	case "qdrant":
		qdrantStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		store = qdrantStore
	default:
		store = vectorstore.NewFlatStore(cfg.IndexPath)
	}

	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModel, cfg.EmbeddingVectorSize)

	var acoustic llm.AcousticEmbedder
	var transcriber llm.Transcriber
	if cfg.EmbedMethod == config.EmbedAudio || cfg.EmbedMethod == config.EmbedBoth {
		acoustic = llm.NewAcousticClient(cfg.AudioEmbeddingURL, cfg.AudioVectorSize)
	}
	if cfg.EmbedMethod == config.EmbedTranscript || cfg.EmbedMethod == config.EmbedBoth {
		transcriber = llm.NewWhisperClient(cfg.WhisperBaseURL, cfg.LLMAPIKey, cfg.WhisperModel)
	}

	textSeg, err := segment.NewTextSegmenter(segment.TextOptions{
		ChunkSize:       cfg.ChunkSize,
		Overlap:         cfg.ChunkOverlap,
		MinSectionWords: cfg.MinSectionWords,
		MinChunkWords:   cfg.MinChunkWords,
		HeadingPattern:  cfg.SectionHeadingPattern,
		Extensions:      cfg.TextExtensions,
		Deduplicate:     cfg.DeduplicateChunks,
	})
	if err != nil {
		log.Fatalf("Failed to create text segmenter: %v", err)
	}
	audioSeg := segment.NewAudioSegmenter(segment.AudioOptions{
		ChunkSize:    cfg.ChunkSize,
		Overlap:      cfg.ChunkOverlap,
		SampleRate:   cfg.AudioSampleRate,
		WindowSec:    cfg.AudioWindowSec,
		MaxLengthSec: cfg.MaxAudioLengthSec,
		Extensions:   cfg.AudioExtensions,
		Method:       cfg.EmbedMethod,
	}, transcriber)

	scanner := corpus.NewScanner(cfg.TextDir, cfg.AudioDir)
	pipeline := indexer.NewPipeline(
		scanner,
		sourceRepo,
		chunkRepo,
		textSeg,
		audioSeg,
		embedder,
		acoustic,
		store,
		cfg.EmbedMethod,
		time.Duration(cfg.BuildFileTimeoutSec)*time.Second,
	)

	report, err := pipeline.BuildAll(ctx)
	if err != nil {
		log.Fatalf("Corpus build failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatalf("Failed to encode report: %v", err)
	}
}
