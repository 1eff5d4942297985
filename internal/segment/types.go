package segment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Modality identifies the kind of source a chunk came from.
type Modality string

const (
	// ModalityText marks chunks cut from book/prose sources.
	ModalityText Modality = "text"
	// ModalityAudio marks chunks cut from spoken audio sources.
	ModalityAudio Modality = "audio"
)

// Embedding space names. A chunk may carry a vector in more than one space;
// spaces are never mixed inside a single similarity search.
const (
	// SpaceText holds text embeddings (prose chunks and audio transcripts).
	SpaceText = "text"
	// SpaceAudio holds acoustic waveform embeddings.
	SpaceAudio = "audio"
)

// Chunk is the atomic retrievable unit. Text and audio chunks share this
// record; the audio-only fields are nil for text chunks.
type Chunk struct {
	// ID is a stable identifier, unique within a corpus and deterministic
	// across rebuilds of an unchanged corpus.
	ID string
	// SourceFile is the originating filename (base name, not a path).
	SourceFile string
	// ChunkIndex is the 0-based ordinal position within the source file.
	// Indices are dense and monotonically increasing per source.
	ChunkIndex int
	// Modality is text or audio.
	Modality Modality
	// Text holds prose for text chunks and the transcript for audio chunks.
	// Empty for pure-acoustic chunks.
	Text string
	// Section is the heading/label the chunk belongs to, if derivable.
	Section string
	// StartTime/EndTime are offsets in seconds, audio chunks only.
	// A nil EndTime means "to end of file".
	StartTime *float64
	EndTime   *float64
	// SpaceRefs maps embedding-space name to the vector id stored in that
	// space's index.
	SpaceRefs map[string]string
}

// NewTextChunk builds a text-modality chunk with a deterministic ID.
func NewTextChunk(sourceFile string, index int, section, text string) Chunk {
	return Chunk{
		ID:         ChunkID(sourceFile, index, text),
		SourceFile: sourceFile,
		ChunkIndex: index,
		Modality:   ModalityText,
		Text:       text,
		Section:    section,
		SpaceRefs:  make(map[string]string),
	}
}

// NewAudioChunk builds an audio-modality chunk with a deterministic ID.
// text is the aligned transcript and may be empty for pure-acoustic chunks.
func NewAudioChunk(sourceFile string, index int, text string, start float64, end *float64) Chunk {
	c := Chunk{
		ID:         ChunkID(sourceFile, index, text),
		SourceFile: sourceFile,
		ChunkIndex: index,
		Modality:   ModalityAudio,
		Text:       text,
		StartTime:  &start,
		EndTime:    end,
		SpaceRefs:  make(map[string]string),
	}
	return c
}

// ChunkID derives a stable chunk identifier from provenance and content, so
// rebuilding an unchanged corpus yields identical IDs. Callers that renumber
// chunks after a drop must re-derive the ID with the new index.
func ChunkID(sourceFile string, index int, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", sourceFile, index, text)))
	return hex.EncodeToString(sum[:16])
}
