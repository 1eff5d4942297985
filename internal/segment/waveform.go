package segment

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"voxarch/internal/service"
)

// Waveform is decoded mono PCM audio.
type Waveform struct {
	SampleRate int
	Samples    []int
}

// DecodeWAV decodes a WAV file to mono PCM, downsampling to targetRate when
// the source rate is an integer multiple of it. Other rates pass through
// unchanged; the embedding service resamples on its side if needed.
func DecodeWAV(path string, targetRate int) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrSourceRead, err)
	}
	defer func() {
		_ = f.Close()
	}()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", service.ErrSourceRead, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", service.ErrSourceRead, path, err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %s has no sample rate", service.ErrSourceRead, path)
	}

	samples := mixToMono(buf.Data, buf.Format.NumChannels)
	rate := buf.Format.SampleRate

	if targetRate > 0 && rate > targetRate && rate%targetRate == 0 {
		factor := rate / targetRate
		decimated := make([]int, 0, len(samples)/factor+1)
		for i := 0; i < len(samples); i += factor {
			decimated = append(decimated, samples[i])
		}
		samples = decimated
		rate = targetRate
	}

	return &Waveform{SampleRate: rate, Samples: samples}, nil
}

// mixToMono averages interleaved channels down to one.
func mixToMono(data []int, channels int) []int {
	if channels <= 1 {
		return data
	}
	frames := len(data) / channels
	mono := make([]int, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += data[i*channels+ch]
		}
		mono[i] = sum / channels
	}
	return mono
}

// Duration returns the waveform length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Truncate cuts the waveform to at most maxSec seconds.
func (w *Waveform) Truncate(maxSec float64) {
	if maxSec <= 0 {
		return
	}
	limit := int(maxSec * float64(w.SampleRate))
	if limit < len(w.Samples) {
		w.Samples = w.Samples[:limit]
	}
}

// Window returns the samples between start and end seconds. A nil end means
// "to end of file".
func (w *Waveform) Window(start float64, end *float64) *Waveform {
	from := int(start * float64(w.SampleRate))
	if from < 0 {
		from = 0
	}
	if from > len(w.Samples) {
		from = len(w.Samples)
	}
	to := len(w.Samples)
	if end != nil {
		to = int(*end * float64(w.SampleRate))
		if to > len(w.Samples) {
			to = len(w.Samples)
		}
	}
	if to < from {
		to = from
	}
	return &Waveform{SampleRate: w.SampleRate, Samples: w.Samples[from:to]}
}

// IsSilent reports whether the waveform is empty or all-zero.
func (w *Waveform) IsSilent() bool {
	for _, s := range w.Samples {
		if s != 0 {
			return false
		}
	}
	return true
}

// EncodeWAV encodes the waveform as 16-bit mono PCM WAV bytes.
func (w *Waveform) EncodeWAV() ([]byte, error) {
	var ws memWriteSeeker
	enc := wav.NewEncoder(&ws, w.SampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           w.Samples,
		Format:         &audio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to encode waveform: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize waveform: %w", err)
	}
	return ws.data, nil
}

// memWriteSeeker is an in-memory io.WriteSeeker; the wav encoder seeks back
// to patch the RIFF header after writing samples.
type memWriteSeeker struct {
	data []byte
	pos  int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.data) {
		grown := make([]byte, need)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(m.pos) + offset
	case io.SeekEnd:
		pos = int64(len(m.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative seek position")
	}
	m.pos = int(pos)
	return pos, nil
}
