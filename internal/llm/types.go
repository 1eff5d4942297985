package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_llm.go -package=mocks voxarch/internal/llm Embedder,AcousticEmbedder,Transcriber,Generator

import "context"

// Embedder computes text embeddings. Corpus-time and query-time embedding use
// the identical transform, so there is no train/serve skew.
type Embedder interface {
	// EmbedTexts generates one vector per input text.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery generates a vector for a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the fixed vector size for this embedder.
	Dimension() int
}

// AcousticEmbedder computes embeddings from raw waveforms.
type AcousticEmbedder interface {
	// EmbedWAV generates a vector for a WAV-encoded waveform.
	EmbedWAV(ctx context.Context, wav []byte) ([]float32, error)
	// Dimension returns the fixed vector size for this embedder.
	Dimension() int
}

// TranscriptSegment is one timestamped span of a transcription.
type TranscriptSegment struct {
	Start float64
	End   float64
	Text  string
}

// Transcript is the result of transcribing an audio file.
type Transcript struct {
	Text     string
	Segments []TranscriptSegment
}

// Transcriber converts spoken audio into timestamped text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (Transcript, error)
}

// Generator produces an answer from a system prompt and a user message.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}
