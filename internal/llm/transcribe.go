package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"voxarch/internal/service"
)

// WhisperClient transcribes audio against an OpenAI-compatible transcription
// endpoint (whisper.cpp server, OpenAI). It implements the Transcriber
// interface.
type WhisperClient struct {
	client *openai.Client
	model  string
}

// NewWhisperClient creates a new transcription client.
func NewWhisperClient(baseURL, apiKey, model string) *WhisperClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	return &WhisperClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Transcribe transcribes the audio file at path, returning the full text and
// timestamped segments for transcript-aligned chunking.
func (c *WhisperClient) Transcribe(ctx context.Context, path string) (Transcript, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: transcription of %s: %v", service.ErrEmbeddingModel, path, err)
	}

	tr := Transcript{Text: resp.Text}
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		tr.Segments = append(tr.Segments, TranscriptSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
	}
	return tr, nil
}
