package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EmbedMethod selects how audio sources are embedded.
type EmbedMethod string

const (
	// EmbedAudio embeds raw waveforms into the acoustic space only.
	EmbedAudio EmbedMethod = "audio"
	// EmbedTranscript embeds whisper transcripts into the text space only.
	EmbedTranscript EmbedMethod = "transcript"
	// EmbedBoth produces one vector in each space per audio source.
	EmbedBoth EmbedMethod = "both"
)

// Config holds all configuration for the application.
type Config struct {
	// Corpus locations.
	TextDir  string
	AudioDir string

	// Persistence.
	IndexPath     string
	DBPath        string
	VectorBackend string // "flat" or "qdrant"
	QdrantURL     string

	// Embedding and generation services.
	EmbeddingBaseURL    string
	EmbeddingModel      string
	EmbeddingVectorSize int
	AudioEmbeddingURL   string
	AudioVectorSize     int
	WhisperBaseURL      string
	WhisperModel        string
	LLMBaseURL          string
	LLMModel            string
	LLMAPIKey           string

	// Segmentation.
	ChunkSize             int
	ChunkOverlap          int
	MinSectionWords       int
	MinChunkWords         int
	SectionHeadingPattern string
	TextExtensions        []string
	AudioExtensions       []string
	DeduplicateChunks     bool

	// Audio handling.
	AudioSampleRate   int
	AudioWindowSec    float64
	MaxAudioLengthSec float64
	EmbedMethod       EmbedMethod

	// Retrieval and presentation.
	DefaultTopK          int
	EvidencePreviewChars int

	// Operational.
	BuildFileTimeoutSec int
	APIPort             string
	LogLevel            slog.Level
	LogFormat           string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded
// automatically. Environment variables already set take precedence over .env values.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Walk up to find a .env next to go.mod (running from a subdirectory).
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		TextDir:               getEnv("TEXT_DIR", "./data/text"),
		AudioDir:              getEnv("AUDIO_DIR", "./data/audio"),
		IndexPath:             getEnv("INDEX_PATH", "./data/vector.index"),
		DBPath:                getEnv("DB_PATH", "./data/voxarch.db"),
		VectorBackend:         getEnv("VECTOR_BACKEND", "flat"),
		QdrantURL:             getEnv("QDRANT_URL", "http://localhost:6333"),
		EmbeddingBaseURL:      getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModel:        getEnv("EMBEDDING_MODEL", "all-MiniLM-L6-v2"),
		AudioEmbeddingURL:     getEnv("AUDIO_EMBEDDING_URL", "http://localhost:8082"),
		WhisperBaseURL:        getEnv("WHISPER_BASE_URL", "http://localhost:8083"),
		WhisperModel:          getEnv("WHISPER_MODEL", "whisper-1"),
		LLMBaseURL:            getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModel:              getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:             getEnv("LLM_API_KEY", "dummy-key"),
		SectionHeadingPattern: getEnv("SECTION_HEADING_PATTERN", `^(Chapter|Section|Part)\b`),
		APIPort:               getEnv("API_PORT", "9000"),
		LogFormat:             getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.EmbeddingVectorSize, err = getEnvInt("EMBEDDING_VECTOR_SIZE", 0); err != nil {
		return nil, err
	}
	if cfg.EmbeddingVectorSize <= 0 {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE is required and must be greater than 0")
	}
	if cfg.AudioVectorSize, err = getEnvInt("AUDIO_VECTOR_SIZE", 512); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = getEnvInt("CHUNK_SIZE", 400); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = getEnvInt("CHUNK_OVERLAP", 50); err != nil {
		return nil, err
	}
	if cfg.MinSectionWords, err = getEnvInt("MIN_SECTION_WORDS", 100); err != nil {
		return nil, err
	}
	if cfg.MinChunkWords, err = getEnvInt("MIN_CHUNK_WORDS", 50); err != nil {
		return nil, err
	}
	if cfg.AudioSampleRate, err = getEnvInt("AUDIO_SAMPLE_RATE", 16000); err != nil {
		return nil, err
	}
	if cfg.DefaultTopK, err = getEnvInt("DEFAULT_TOP_K", 5); err != nil {
		return nil, err
	}
	if cfg.EvidencePreviewChars, err = getEnvInt("EVIDENCE_PREVIEW_CHARS", 240); err != nil {
		return nil, err
	}
	if cfg.BuildFileTimeoutSec, err = getEnvInt("BUILD_FILE_TIMEOUT_SEC", 300); err != nil {
		return nil, err
	}
	if cfg.AudioWindowSec, err = getEnvFloat("AUDIO_WINDOW_SEC", 30); err != nil {
		return nil, err
	}
	if cfg.MaxAudioLengthSec, err = getEnvFloat("MAX_AUDIO_LENGTH_SEC", 600); err != nil {
		return nil, err
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	cfg.TextExtensions = splitExtensions(getEnv("TEXT_EXTENSIONS", ".txt,.md"))
	cfg.AudioExtensions = splitExtensions(getEnv("AUDIO_EXTENSIONS", ".wav"))

	cfg.DeduplicateChunks = getEnvBool("DEDUPLICATE_CHUNKS", true)

	switch m := EmbedMethod(getEnv("EMBED_METHOD", string(EmbedBoth))); m {
	case EmbedAudio, EmbedTranscript, EmbedBoth:
		cfg.EmbedMethod = m
	default:
		return nil, fmt.Errorf("EMBED_METHOD must be one of audio, transcript, both (got %q)", m)
	}

	switch cfg.VectorBackend {
	case "flat", "qdrant":
	default:
		return nil, fmt.Errorf("VECTOR_BACKEND must be flat or qdrant (got %q)", cfg.VectorBackend)
	}

	switch strings.ToLower(getEnv("LOG_LEVEL", "info")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be debug, info, warn, or error")
	}

	// Create the data directory if it doesn't exist (for DB and index files).
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// splitExtensions parses a comma-separated extension list, normalizing each
// entry to a lowercase ".ext" form.
func splitExtensions(value string) []string {
	parts := strings.Split(value, ",")
	exts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, ".") {
			p = "." + p
		}
		exts = append(exts, p)
	}
	return exts
}
