package rag

import (
	"fmt"
	"strings"
)

// acousticPlaceholder stands in for evidence text when a chunk was matched
// purely on its waveform and carries no transcript.
const acousticPlaceholder = "[non-text audio evidence]"

// assembleEvidence converts a merged ranking into the evidence list returned
// to callers, preserving rank order.
func assembleEvidence(ranked []rankedChunk, previewChars int) []Evidence {
	evidence := make([]Evidence, 0, len(ranked))
	for _, rc := range ranked {
		text := rc.chunk.Text
		if text == "" && rc.chunk.Modality == "audio" {
			text = acousticPlaceholder
		}
		section := rc.chunk.Section
		if section == "" {
			section = fmt.Sprintf("chunk %d", rc.chunk.ChunkIndex)
		}
		evidence = append(evidence, Evidence{
			Text: truncatePreview(text, previewChars),
			Meta: EvidenceMeta{
				Filename:   rc.chunk.SourceFile,
				Section:    section,
				ChunkIndex: rc.chunk.ChunkIndex,
				StartTime:  rc.chunk.StartTime,
				EndTime:    rc.chunk.EndTime,
			},
			Distance: rc.distance,
		})
	}
	return evidence
}

// truncatePreview cuts text to at most limit runes, marking the cut.
func truncatePreview(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimRight(string(runes[:limit]), " ") + "..."
}

// formatContext renders the retrieved chunks into the context block handed to
// the generator. Full chunk text is used here; previews apply only to the
// evidence payload.
func formatContext(ranked []rankedChunk) string {
	var b strings.Builder
	b.WriteString("--- Context from corpus ---\n\n")
	for _, rc := range ranked {
		b.WriteString(fmt.Sprintf("File: %s\n", rc.chunk.SourceFile))
		if rc.chunk.Section != "" {
			b.WriteString(fmt.Sprintf("Section: %s\n", rc.chunk.Section))
		}
		if rc.chunk.StartTime != nil {
			if rc.chunk.EndTime != nil {
				b.WriteString(fmt.Sprintf("Time: %.1fs-%.1fs\n", *rc.chunk.StartTime, *rc.chunk.EndTime))
			} else {
				b.WriteString(fmt.Sprintf("Time: from %.1fs\n", *rc.chunk.StartTime))
			}
		}
		text := rc.chunk.Text
		if text == "" {
			text = acousticPlaceholder
		}
		b.WriteString(fmt.Sprintf("Content: %s\n\n", text))
	}
	b.WriteString("--- End Context ---")
	return b.String()
}
