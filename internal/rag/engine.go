package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks voxarch/internal/rag Engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voxarch/internal/config"
	"voxarch/internal/contextutil"
	"voxarch/internal/llm"
	"voxarch/internal/segment"
	"voxarch/internal/service"
	"voxarch/internal/storage"
	"voxarch/internal/vectorstore"
)

// maxTopK bounds how many evidence items a single query may request.
const maxTopK = 20

const systemPrompt = "You are a helpful assistant that answers questions based on the provided context " +
	"from a corpus of books and recorded speech. Answer the question using only the information from " +
	"the context below. If the context doesn't contain enough information to answer the question, say so. " +
	"Cite specific files and sections when possible."

const audioQueryPrompt = "The user supplied an audio clip as their query. The context below contains the " +
	"corpus passages most similar to that clip. Summarize what the retrieved passages are about and how " +
	"they relate to each other."

// Engine answers questions against the indexed corpus.
type Engine interface {
	// Query answers a text question.
	Query(ctx context.Context, req QueryRequest) (QueryResponse, error)
	// QueryAudio answers a query given as a WAV file on disk.
	QueryAudio(ctx context.Context, audioPath string, topK int) (QueryResponse, error)
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	embedder    llm.Embedder
	acoustic    llm.AcousticEmbedder
	transcriber llm.Transcriber
	generator   llm.Generator
	store       vectorstore.Store
	chunkRepo   storage.ChunkStore

	embedMethod  config.EmbedMethod
	defaultTopK  int
	previewChars int
	sampleRate   int
	maxAudioSec  float64
}

// NewEngine creates a query engine. acoustic and transcriber may be nil when
// the embed method never exercises them.
func NewEngine(
	embedder llm.Embedder,
	acoustic llm.AcousticEmbedder,
	transcriber llm.Transcriber,
	generator llm.Generator,
	store vectorstore.Store,
	chunkRepo storage.ChunkStore,
	embedMethod config.EmbedMethod,
	defaultTopK int,
	previewChars int,
	sampleRate int,
	maxAudioSec float64,
) Engine {
	return &ragEngine{
		embedder:     embedder,
		acoustic:     acoustic,
		transcriber:  transcriber,
		generator:    generator,
		store:        store,
		chunkRepo:    chunkRepo,
		embedMethod:  embedMethod,
		defaultTopK:  defaultTopK,
		previewChars: previewChars,
		sampleRate:   sampleRate,
		maxAudioSec:  maxAudioSec,
	}
}

// Query answers a text question by searching the text space.
func (e *ragEngine) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return QueryResponse{}, fmt.Errorf("%w: question must not be empty", service.ErrInvalidInput)
	}
	k := e.resolveTopK(req.TopK)

	logger.InfoContext(ctx, "query started", "question_length", len(question), "k", k)

	queryVec, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return QueryResponse{}, err
	}

	hits, err := e.store.Search(ctx, segment.SpaceText, queryVec, k)
	if err != nil {
		return QueryResponse{}, err
	}

	ranked := truncateRanked(mergeRanked(e.resolveHits(ctx, segment.SpaceText, hits)), k)
	return e.answer(ctx, question, systemPrompt, ranked)
}

// QueryAudio answers a query supplied as audio. Depending on the embed
// method the clip is transcribed and searched in the text space, embedded
// acoustically and searched in the audio space, or both.
func (e *ragEngine) QueryAudio(ctx context.Context, audioPath string, topK int) (QueryResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)
	k := e.resolveTopK(topK)

	logger.InfoContext(ctx, "audio query started", "k", k, "method", e.embedMethod)

	var lists [][]rankedChunk
	var legErrs []error
	var question string

	if e.embedMethod == config.EmbedTranscript || e.embedMethod == config.EmbedBoth {
		list, transcript, err := e.transcriptLeg(ctx, audioPath, k)
		if err != nil {
			legErrs = append(legErrs, err)
		} else {
			lists = append(lists, list)
			question = transcript
		}
	}

	if e.embedMethod == config.EmbedAudio || e.embedMethod == config.EmbedBoth {
		list, err := e.acousticLeg(ctx, audioPath, k)
		if err != nil {
			legErrs = append(legErrs, err)
		} else {
			lists = append(lists, list)
		}
	}

	// A failed leg only fails the query when no other leg produced results.
	if len(lists) == 0 {
		if len(legErrs) > 0 {
			return QueryResponse{}, legErrs[0]
		}
		return QueryResponse{}, fmt.Errorf("%w: embed method %s has no query path", service.ErrInvalidInput, e.embedMethod)
	}
	for _, err := range legErrs {
		logger.WarnContext(ctx, "audio query leg failed", "error", err)
	}

	ranked := truncateRanked(mergeRanked(lists...), k)

	prompt := systemPrompt
	if question == "" {
		prompt = audioQueryPrompt
		question = "What are these passages about?"
	}
	return e.answer(ctx, question, prompt, ranked)
}

// transcriptLeg transcribes the query clip and searches the text space.
func (e *ragEngine) transcriptLeg(ctx context.Context, audioPath string, k int) ([]rankedChunk, string, error) {
	if e.transcriber == nil {
		return nil, "", fmt.Errorf("transcription requested but no transcriber configured")
	}
	transcript, err := e.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, "", err
	}
	text := strings.TrimSpace(transcript.Text)
	if text == "" {
		return nil, "", fmt.Errorf("%w: query audio produced an empty transcript", service.ErrDegenerateInput)
	}

	queryVec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, "", err
	}
	hits, err := e.store.Search(ctx, segment.SpaceText, queryVec, k)
	if err != nil {
		return nil, "", err
	}
	return e.resolveHits(ctx, segment.SpaceText, hits), text, nil
}

// acousticLeg embeds the query clip's waveform and searches the audio space.
func (e *ragEngine) acousticLeg(ctx context.Context, audioPath string, k int) ([]rankedChunk, error) {
	if e.acoustic == nil {
		return nil, fmt.Errorf("acoustic search requested but no acoustic embedder configured")
	}
	waveform, err := segment.DecodeWAV(audioPath, e.sampleRate)
	if err != nil {
		return nil, err
	}
	waveform.Truncate(e.maxAudioSec)
	if waveform.IsSilent() {
		return nil, fmt.Errorf("%w: query audio is silent or empty", service.ErrDegenerateInput)
	}
	wavBytes, err := waveform.EncodeWAV()
	if err != nil {
		return nil, err
	}
	queryVec, err := e.acoustic.EmbedWAV(ctx, wavBytes)
	if err != nil {
		return nil, err
	}
	hits, err := e.store.Search(ctx, segment.SpaceAudio, queryVec, k)
	if err != nil {
		return nil, err
	}
	return e.resolveHits(ctx, segment.SpaceAudio, hits), nil
}

// resolveHits maps vector hits back to catalog chunks, dropping hits whose
// chunk is missing from the catalog.
func (e *ragEngine) resolveHits(ctx context.Context, space string, hits []vectorstore.Hit) []rankedChunk {
	logger := contextutil.LoggerFromContext(ctx)

	ranked := make([]rankedChunk, 0, len(hits))
	for _, hit := range hits {
		chunk, err := e.chunkRepo.GetByVectorRef(ctx, space, hit.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				logger.WarnContext(ctx, "vector hit has no catalog chunk", "space", space, "vector_id", hit.ID)
				continue
			}
			logger.ErrorContext(ctx, "failed to resolve vector hit", "space", space, "vector_id", hit.ID, "error", err)
			continue
		}
		ranked = append(ranked, rankedChunk{chunk: chunk, distance: hit.Distance})
	}
	return ranked
}

// answer generates the final response from a merged ranking.
func (e *ragEngine) answer(ctx context.Context, question, prompt string, ranked []rankedChunk) (QueryResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(ranked) == 0 {
		logger.InfoContext(ctx, "no results found")
		return QueryResponse{
			Answer:   "I couldn't find any relevant information in the corpus to answer this question.",
			Evidence: []Evidence{},
		}, nil
	}

	contextString := formatContext(ranked)
	userMessage := fmt.Sprintf("%s\n\n%s", question, contextString)

	answer, err := e.generator.Generate(ctx, prompt, userMessage)
	if err != nil {
		logger.ErrorContext(ctx, "failed to generate answer", "error", err)
		return QueryResponse{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	logger.InfoContext(ctx, "query completed", "evidence_count", len(ranked), "answer_length", len(answer))
	return QueryResponse{
		Answer:   answer,
		Evidence: assembleEvidence(ranked, e.previewChars),
	}, nil
}

// resolveTopK applies the configured default and the hard ceiling.
func (e *ragEngine) resolveTopK(k int) int {
	if k <= 0 {
		k = e.defaultTopK
	}
	if k <= 0 {
		k = 5
	}
	if k > maxTopK {
		k = maxTopK
	}
	return k
}
