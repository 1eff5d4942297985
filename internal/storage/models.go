package storage

import "time"

// SourceRecord is a corpus file that has been indexed.
type SourceRecord struct {
	ID        string // Deterministic ID derived from the filename
	Filename  string // Base filename within its corpus directory
	Modality  string // "text" or "audio"
	Hash      string // SHA256 hex string of file content
	IndexedAt time.Time
}

// ChunkRecord is a chunk row in the catalog. The vector store holds only
// vectors and chunk IDs; display text and provenance live here.
type ChunkRecord struct {
	ID         string
	SourceID   string
	ChunkIndex int      // 0-based, dense per source
	Modality   string   // "text" or "audio"
	Section    string   // Heading/label, empty if not derivable
	Text       string   // Prose or transcript; empty for pure-acoustic chunks
	StartTime  *float64 // Seconds, audio only
	EndTime    *float64 // Seconds, audio only; nil means "to end of file"
	// SourceFile is the originating filename, joined from sources.
	SourceFile string
	// SpaceRefs maps embedding-space name to vector id.
	SpaceRefs map[string]string
}
