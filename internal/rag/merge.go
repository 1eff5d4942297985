package rag

import (
	"sort"

	"voxarch/internal/storage"
)

// rankedChunk pairs a resolved chunk with its match distance.
type rankedChunk struct {
	chunk    *storage.ChunkRecord
	distance float32
}

// mergeRanked combines per-space result lists into one ranking: duplicates
// (same chunk reached through more than one space) collapse to their best
// distance, and the result is ordered ascending by distance with a
// deterministic tie-break on provenance.
func mergeRanked(lists ...[]rankedChunk) []rankedChunk {
	best := make(map[string]rankedChunk)
	var order []string

	for _, list := range lists {
		for _, rc := range list {
			existing, ok := best[rc.chunk.ID]
			if !ok {
				best[rc.chunk.ID] = rc
				order = append(order, rc.chunk.ID)
				continue
			}
			if rc.distance < existing.distance {
				best[rc.chunk.ID] = rc
			}
		}
	}

	merged := make([]rankedChunk, 0, len(order))
	for _, id := range order {
		merged = append(merged, best[id])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].distance != merged[j].distance {
			return merged[i].distance < merged[j].distance
		}
		if merged[i].chunk.ChunkIndex != merged[j].chunk.ChunkIndex {
			return merged[i].chunk.ChunkIndex < merged[j].chunk.ChunkIndex
		}
		return merged[i].chunk.SourceFile < merged[j].chunk.SourceFile
	})
	return merged
}

// truncateRanked cuts a merged ranking to at most k entries.
func truncateRanked(ranked []rankedChunk, k int) []rankedChunk {
	if k > 0 && len(ranked) > k {
		return ranked[:k]
	}
	return ranked
}
