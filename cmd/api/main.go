package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"time"

	"voxarch/internal/config"
	"voxarch/internal/corpus"
	"voxarch/internal/http"
	"voxarch/internal/indexer"
	"voxarch/internal/llm"
	"voxarch/internal/rag"
	"voxarch/internal/segment"
	"voxarch/internal/storage"
	"voxarch/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize catalog database
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
	slog.Info("Database initialized", "path", cfg.DBPath)

	sourceRepo := storage.NewSourceRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	ctx := context.Background()

	// Initialize vector store
	var store vectorstore.Store
	switch cfg.VectorBackend {
	case "qdrant":
		qdrantStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		store = qdrantStore
	default:
		flatStore := vectorstore.NewFlatStore(cfg.IndexPath)
		if err := flatStore.Load(ctx); err != nil {
			slog.Warn("No existing index loaded, starting empty", "path", cfg.IndexPath, "error", err)
		}
		store = flatStore
	}
	slog.Info("Vector store initialized", "backend", cfg.VectorBackend)

	// Embedding and generation clients
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModel, cfg.EmbeddingVectorSize)

	var acoustic llm.AcousticEmbedder
	var transcriber llm.Transcriber
	if cfg.EmbedMethod == config.EmbedAudio || cfg.EmbedMethod == config.EmbedBoth {
		acoustic = llm.NewAcousticClient(cfg.AudioEmbeddingURL, cfg.AudioVectorSize)
	}
	if cfg.EmbedMethod == config.EmbedTranscript || cfg.EmbedMethod == config.EmbedBoth {
		transcriber = llm.NewWhisperClient(cfg.WhisperBaseURL, cfg.LLMAPIKey, cfg.WhisperModel)
	}
	generator := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)

	// Segmenters
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

	// Build pipeline
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
	if err := pipeline.EnsureSpaces(ctx); err != nil {
		log.Fatalf("Failed to ensure embedding spaces: %v", err)
	}

	// Query engine
	engine := rag.NewEngine(
		embedder,
		acoustic,
		transcriber,
		generator,
		store,
		chunkRepo,
		cfg.EmbedMethod,
		cfg.DefaultTopK,
		cfg.EvidencePreviewChars,
		cfg.AudioSampleRate,
		cfg.MaxAudioLengthSec,
	)
	slog.Info("Query engine initialized", "embed_method", cfg.EmbedMethod)

	deps := &http.Deps{
		Engine:   engine,
		Pipeline: pipeline,
		Store:    store,
		Sources:  sourceRepo,
		Chunks:   chunkRepo,
	}
	router := http.NewRouter(deps)

	// Start corpus build in background after router is ready
	go func() {
		buildCtx := context.Background()
		slog.Info("Starting background corpus build")
		report, err := pipeline.BuildAll(buildCtx)
		if err != nil {
			slog.Error("Corpus build failed", "error", err)
			return
		}
		slog.Info("Corpus build completed",
			"files_indexed", report.FilesIndexed,
			"files_skipped", report.FilesSkipped,
			"chunks_indexed", report.ChunksIndexed)
	}()

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
