package segment

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"voxarch/internal/config"
	"voxarch/internal/llm"
	llm_mocks "voxarch/internal/llm/mocks"
	"voxarch/internal/service"
)

func newAudioSegmenter(method config.EmbedMethod, transcriber llm.Transcriber) *AudioSegmenter {
	return NewAudioSegmenter(AudioOptions{
		ChunkSize:    10,
		Overlap:      2,
		SampleRate:   16000,
		WindowSec:    1.0,
		MaxLengthSec: 600,
		Extensions:   []string{".wav"},
		Method:       method,
	}, transcriber)
}

func TestAudioSegmenter_UnsupportedExtension(t *testing.T) {
	seg := newAudioSegmenter(config.EmbedAudio, nil)
	_, _, err := seg.Segment(context.Background(), "talk.mp3")
	if !errors.Is(err, service.ErrUnsupportedFormat) {
		t.Fatalf("Segment() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestAudioSegmenter_AcousticWindows(t *testing.T) {
	path := writeWAV(t, sineWaveform(16000, 2.5), "talk.wav")

	seg := newAudioSegmenter(config.EmbedAudio, nil)
	chunks, waveform, err := seg.Segment(context.Background(), path)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if waveform == nil {
		t.Fatal("Segment() returned nil waveform for acoustic method")
	}

	// 2.5s at 1s windows: [0,1), [1,2), [2,2.5).
	if len(chunks) != 3 {
		t.Fatalf("Segment() returned %d chunks, want 3", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Modality != ModalityAudio {
			t.Errorf("chunk[%d].Modality = %q, want audio", i, chunk.Modality)
		}
		if chunk.Text != "" {
			t.Errorf("chunk[%d].Text = %q, want empty for acoustic chunk", i, chunk.Text)
		}
		if chunk.ChunkIndex != i {
			t.Errorf("chunk[%d].ChunkIndex = %d, want %d", i, chunk.ChunkIndex, i)
		}
		if chunk.StartTime == nil || math.Abs(*chunk.StartTime-float64(i)) > 0.001 {
			t.Errorf("chunk[%d].StartTime = %v, want %d", i, chunk.StartTime, i)
		}
	}
	last := chunks[2]
	if last.EndTime == nil || math.Abs(*last.EndTime-2.5) > 0.001 {
		t.Errorf("last chunk EndTime = %v, want 2.5", last.EndTime)
	}
}

func TestAudioSegmenter_TranscriptChunks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := writeWAV(t, sineWaveform(16000, 4.0), "talk.wav")

	transcriber := llm_mocks.NewMockTranscriber(ctrl)
	transcriber.EXPECT().Transcribe(gomock.Any(), path).Return(llm.Transcript{
		Text: "one two three four five six seven eight nine ten eleven twelve",
		Segments: []llm.TranscriptSegment{
			{Start: 0.0, End: 2.0, Text: "one two three four five six"},
			{Start: 2.0, End: 4.0, Text: "seven eight nine ten eleven twelve"},
		},
	}, nil)

	seg := newAudioSegmenter(config.EmbedTranscript, transcriber)
	chunks, waveform, err := seg.Segment(context.Background(), path)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if waveform != nil {
		t.Error("Segment() should not return a waveform for transcript-only method")
	}
	if len(chunks) < 1 {
		t.Fatal("Segment() returned no chunks")
	}

	first := chunks[0]
	if first.Modality != ModalityAudio {
		t.Errorf("Modality = %q, want audio", first.Modality)
	}
	if !strings.HasPrefix(first.Text, "one two") {
		t.Errorf("first chunk text = %q, want transcript prefix", first.Text)
	}
	if first.StartTime == nil || *first.StartTime != 0.0 {
		t.Errorf("first chunk StartTime = %v, want 0", first.StartTime)
	}
	if first.EndTime == nil {
		t.Error("transcript chunk should carry an end time")
	}
}

func TestAudioSegmenter_TranscribeError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := writeWAV(t, sineWaveform(16000, 1.0), "talk.wav")

	transcriber := llm_mocks.NewMockTranscriber(ctrl)
	transcriber.EXPECT().Transcribe(gomock.Any(), path).
		Return(llm.Transcript{}, service.WrapError(service.ErrEmbeddingModel, "transcription failed"))

	seg := newAudioSegmenter(config.EmbedTranscript, transcriber)
	_, _, err := seg.Segment(context.Background(), path)
	if !errors.Is(err, service.ErrEmbeddingModel) {
		t.Fatalf("Segment() error = %v, want ErrEmbeddingModel", err)
	}
}

func TestTranscriptWindows(t *testing.T) {
	segments := []llm.TranscriptSegment{
		{Start: 0.0, End: 2.0, Text: "a b c d e"},
		{Start: 2.0, End: 4.0, Text: "f g h i j"},
		{Start: 4.0, End: 6.0, Text: "k l m"},
	}

	windows := transcriptWindows(segments, 10, 2)
	if len(windows) != 2 {
		t.Fatalf("transcriptWindows() returned %d windows, want 2", len(windows))
	}

	first := windows[0]
	if len(strings.Fields(first.text)) != 10 {
		t.Errorf("first window has %d words, want 10", len(strings.Fields(first.text)))
	}
	if first.start != 0.0 {
		t.Errorf("first window start = %f, want 0", first.start)
	}
	if first.end != 4.0 {
		t.Errorf("first window end = %f, want 4.0", first.end)
	}

	// The second window carries the 2-word overlap plus the remaining words.
	second := windows[1]
	if got := strings.Fields(second.text); len(got) != 5 {
		t.Errorf("second window has %d words, want 5 (2 overlap + 3 new)", len(got))
	}
	if !strings.HasPrefix(second.text, "i j") {
		t.Errorf("second window text = %q, want overlap prefix \"i j\"", second.text)
	}
	if second.start < 0 || second.start > 4.0 {
		t.Errorf("interpolated start = %f, want within [0, 4]", second.start)
	}
	if second.end != 6.0 {
		t.Errorf("second window end = %f, want 6.0", second.end)
	}
}

func TestTranscriptWindows_Empty(t *testing.T) {
	if got := transcriptWindows(nil, 10, 2); len(got) != 0 {
		t.Errorf("transcriptWindows(nil) returned %d windows, want 0", len(got))
	}
	// Segments with no words contribute nothing.
	segments := []llm.TranscriptSegment{{Start: 0, End: 1, Text: "   "}}
	if got := transcriptWindows(segments, 10, 2); len(got) != 0 {
		t.Errorf("transcriptWindows(blank) returned %d windows, want 0", len(got))
	}
}

func TestAcousticWindows(t *testing.T) {
	tests := []struct {
		name      string
		duration  float64
		windowSec float64
		want      int
	}{
		{name: "exact division", duration: 3.0, windowSec: 1.0, want: 3},
		{name: "partial tail", duration: 2.5, windowSec: 1.0, want: 3},
		{name: "single open-ended window", duration: 5.0, windowSec: 0, want: 1},
		{name: "window longer than file", duration: 0.5, windowSec: 30, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := acousticWindows(tt.duration, tt.windowSec)
			if len(got) != tt.want {
				t.Errorf("acousticWindows() returned %d windows, want %d", len(got), tt.want)
			}
			if tt.windowSec <= 0 && got[0].end != nil {
				t.Error("open-ended window should have nil end")
			}
		})
	}
}
