package segment

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"voxarch/internal/config"
	"voxarch/internal/llm"
	"voxarch/internal/service"
)

// AudioOptions configures the audio segmenter.
type AudioOptions struct {
	// ChunkSize/Overlap are word counts for transcript windows.
	ChunkSize int
	Overlap   int
	// SampleRate is the target decode rate for acoustic embedding.
	SampleRate int
	// WindowSec is the fixed acoustic window length; 0 means one open-ended
	// window covering the whole file.
	WindowSec float64
	// MaxLengthSec truncates audio longer than this.
	MaxLengthSec float64
	// Extensions lists supported file extensions (lowercase, with dot).
	Extensions []string
	// Method selects which chunk kinds are produced.
	Method config.EmbedMethod
}

// AudioSegmenter splits spoken audio sources into chunks. Transcript chunks
// carry aligned text with start/end timestamps; acoustic chunks carry only a
// time window and are embedded from the raw waveform.
type AudioSegmenter struct {
	opts        AudioOptions
	transcriber llm.Transcriber
	exts        map[string]struct{}
}

// NewAudioSegmenter creates an audio segmenter. transcriber may be nil when
// the embed method is audio-only.
func NewAudioSegmenter(opts AudioOptions, transcriber llm.Transcriber) *AudioSegmenter {
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[e] = struct{}{}
	}
	return &AudioSegmenter{opts: opts, transcriber: transcriber, exts: exts}
}

// Segment splits one audio file into an ordered chunk sequence and returns
// the decoded waveform for acoustic embedding (nil when the embed method
// produces no acoustic chunks).
func (s *AudioSegmenter) Segment(ctx context.Context, path string) ([]Chunk, *Waveform, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := s.exts[ext]; !ok {
		return nil, nil, fmt.Errorf("%w: %s", service.ErrUnsupportedFormat, ext)
	}

	wf, err := DecodeWAV(path, s.opts.SampleRate)
	if err != nil {
		return nil, nil, err
	}
	wf.Truncate(s.opts.MaxLengthSec)
	duration := wf.Duration()
	if duration == 0 {
		return nil, nil, fmt.Errorf("%w: %s contains no audio", service.ErrDegenerateInput, path)
	}

	filename := filepath.Base(path)
	var chunks []Chunk
	index := 0

	if s.opts.Method == config.EmbedTranscript || s.opts.Method == config.EmbedBoth {
		if s.transcriber == nil {
			return nil, nil, fmt.Errorf("transcription requested but no transcriber configured")
		}
		tr, err := s.transcriber.Transcribe(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		for _, win := range transcriptWindows(tr.Segments, s.opts.ChunkSize, s.opts.Overlap) {
			end := win.end
			chunks = append(chunks, NewAudioChunk(filename, index, normalizeWhitespace(win.text), win.start, &end))
			index++
		}
	}

	var acoustic *Waveform
	if s.opts.Method == config.EmbedAudio || s.opts.Method == config.EmbedBoth {
		acoustic = wf
		for _, win := range acousticWindows(duration, s.opts.WindowSec) {
			chunks = append(chunks, NewAudioChunk(filename, index, "", win.start, win.end))
			index++
		}
	}

	return chunks, acoustic, nil
}

// timedWindow is a transcript span re-windowed by word count.
type timedWindow struct {
	text  string
	start float64
	end   float64
}

// transcriptWindows re-chunks whisper segments into word windows of chunkSize
// words with overlap trailing words carried into the next window. Start times
// for carried overlaps are interpolated inside the segment the overlap came
// from.
func transcriptWindows(segments []llm.TranscriptSegment, chunkSize, overlap int) []timedWindow {
	var windows []timedWindow
	var buffer []string
	var bufferStart float64
	started := false
	var lastEnd float64
	words := 0

	for _, seg := range segments {
		segWords := strings.Fields(seg.Text)
		if len(segWords) == 0 {
			continue
		}
		if !started {
			bufferStart = seg.Start
			started = true
		}
		buffer = append(buffer, segWords...)
		lastEnd = seg.End
		words += len(segWords)

		if words >= chunkSize {
			windows = append(windows, timedWindow{
				text:  strings.Join(buffer, " "),
				start: bufferStart,
				end:   lastEnd,
			})
			if overlap > 0 && len(buffer) > overlap {
				buffer = append([]string(nil), buffer[len(buffer)-overlap:]...)
				words = len(buffer)
				bufferStart = lastEnd - (seg.End-seg.Start)*(float64(overlap)/float64(len(segWords)))
				if bufferStart < 0 {
					bufferStart = 0
				}
			} else {
				buffer = nil
				words = 0
				started = false
			}
		}
	}
	if len(buffer) > 0 && started {
		windows = append(windows, timedWindow{
			text:  strings.Join(buffer, " "),
			start: bufferStart,
			end:   lastEnd,
		})
	}
	return windows
}

// acousticWindow is a fixed time span for waveform embedding.
type acousticWindow struct {
	start float64
	end   *float64
}

// acousticWindows cuts [0, duration) into fixed windows of windowSec. A
// windowSec of 0 yields a single open-ended window covering the whole file.
func acousticWindows(duration, windowSec float64) []acousticWindow {
	if windowSec <= 0 {
		return []acousticWindow{{start: 0, end: nil}}
	}
	var windows []acousticWindow
	for t := 0.0; t < duration; t += windowSec {
		end := t + windowSec
		if end > duration {
			end = duration
		}
		e := end
		windows = append(windows, acousticWindow{start: t, end: &e})
	}
	return windows
}
