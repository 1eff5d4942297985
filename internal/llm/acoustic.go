package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"voxarch/internal/service"
)

// AcousticClient generates waveform embeddings against a CLAP-style audio
// embedding service. The service takes a WAV upload and returns a single
// fixed-length vector. It implements the AcousticEmbedder interface.
type AcousticClient struct {
	baseURL      string
	expectedSize int
	client       *http.Client
}

// NewAcousticClient creates a new acoustic embeddings client.
func NewAcousticClient(baseURL string, expectedSize int) *AcousticClient {
	return &AcousticClient{
		baseURL:      baseURL,
		expectedSize: expectedSize,
		client:       http.DefaultClient,
	}
}

// acousticResponse is the embedding service's response payload.
type acousticResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedWAV generates an embedding for a WAV-encoded waveform.
func (c *AcousticClient) EmbedWAV(ctx context.Context, wav []byte) ([]float32, error) {
	if len(wav) == 0 {
		return nil, fmt.Errorf("%w: empty waveform", service.ErrDegenerateInput)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, fmt.Errorf("failed to write waveform: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/embed", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrEmbeddingModel, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: bad status %d: %s", service.ErrEmbeddingModel, resp.StatusCode, string(raw))
	}

	var payload acousticResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", service.ErrEmbeddingModel, err)
	}

	if len(payload.Embedding) != c.expectedSize {
		return nil, fmt.Errorf("%w: embedding has size %d, expected %d",
			service.ErrEmbeddingModel, len(payload.Embedding), c.expectedSize)
	}

	vec := make([]float32, len(payload.Embedding))
	copy(vec, payload.Embedding)
	l2normalize(vec)
	return vec, nil
}

// Dimension returns the expected embedding vector size.
func (c *AcousticClient) Dimension() int {
	return c.expectedSize
}
