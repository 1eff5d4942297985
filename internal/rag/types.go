package rag

// QueryRequest represents a text question against the corpus.
type QueryRequest struct {
	// Question is the user's question to answer.
	Question string `json:"question"`
	// TopK optionally overrides the configured evidence count.
	TopK int `json:"top_k,omitempty"`
}

// EvidenceMeta carries the provenance of one evidence item.
type EvidenceMeta struct {
	// Filename is the originating corpus filename.
	Filename string `json:"filename"`
	// Section is the heading label for text evidence, or a positional label
	// when no heading is derivable.
	Section string `json:"section,omitempty"`
	// ChunkIndex is the 0-based position within the source file.
	ChunkIndex int `json:"chunk_index"`
	// StartTime/EndTime are offsets in seconds, audio evidence only.
	StartTime *float64 `json:"start_time,omitempty"`
	EndTime   *float64 `json:"end_time,omitempty"`
}

// Evidence is one retrieved chunk with its provenance and match distance.
type Evidence struct {
	// Text is a preview of the chunk content. Pure-acoustic evidence carries
	// a placeholder instead of text.
	Text string `json:"text"`
	// Meta is the provenance of this evidence.
	Meta EvidenceMeta `json:"meta"`
	// Distance is the match distance; lower is a better match.
	Distance float32 `json:"distance"`
}

// QueryResponse represents the answer to a corpus query.
type QueryResponse struct {
	// Answer is the generated answer.
	Answer string `json:"answer"`
	// Evidence lists the chunks the answer is grounded on, best match first.
	Evidence []Evidence `json:"evidence"`
}
