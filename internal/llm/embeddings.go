package llm

import (
	"context"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"voxarch/internal/service"
)

// EmbeddingsClient generates text embeddings against an OpenAI-compatible
// embeddings endpoint (llama.cpp server, text-embeddings-inference, OpenAI).
// It implements the Embedder interface.
type EmbeddingsClient struct {
	client       *openai.Client
	model        string
	expectedSize int
}

// NewEmbeddingsClient creates a new embeddings client. expectedSize is the
// vector size the embedding model produces; every returned vector is
// validated against it.
func NewEmbeddingsClient(baseURL, apiKey, model string, expectedSize int) *EmbeddingsClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	return &EmbeddingsClient{
		client:       openai.NewClientWithConfig(cfg),
		model:        model,
		expectedSize: expectedSize,
	}
}

// EmbedTexts generates embeddings for the given texts, one vector per input.
// Inputs with no embeddable content fail with ErrDegenerateInput before any
// model call is made.
func (c *EmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: empty input array", service.ErrDegenerateInput)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: text %d is empty", service.ErrDegenerateInput, i)
		}
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrEmbeddingModel, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", service.ErrEmbeddingModel, len(texts), len(resp.Data))
	}

	result := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if len(data.Embedding) != c.expectedSize {
			return nil, fmt.Errorf("%w: embedding %d has size %d, expected %d",
				service.ErrEmbeddingModel, i, len(data.Embedding), c.expectedSize)
		}
		vec := make([]float32, len(data.Embedding))
		copy(vec, data.Embedding)
		l2normalize(vec)
		result[i] = vec
	}

	return result, nil
}

// EmbedQuery generates an embedding for a single query string using the same
// transform as corpus-time embedding.
func (c *EmbeddingsClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimension returns the expected embedding vector size.
func (c *EmbeddingsClient) Dimension() int {
	return c.expectedSize
}

// l2normalize normalizes a vector to unit length in place. Normalized vectors
// make inner product and cosine similarity equivalent.
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
