package vectorstore

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"voxarch/internal/service"
)

// FlatStore is an exact nearest-neighbor index held in memory and persisted
// to a single gob file. The build pipeline is the sole writer; queries are
// read-only against a loaded index, so concurrent searches need no
// coordination beyond the read lock.
type FlatStore struct {
	path   string
	mu     sync.RWMutex
	spaces map[string]*flatSpace
}

// flatSpace is one embedding space. Fields are exported for gob encoding.
type flatSpace struct {
	Metric  Metric
	Dim     int
	IDs     []string
	Vectors [][]float32
}

// NewFlatStore creates a flat store persisting to path.
func NewFlatStore(path string) *FlatStore {
	return &FlatStore{
		path:   path,
		spaces: make(map[string]*flatSpace),
	}
}

// EnsureSpace creates the named space if absent and validates its geometry
// if present.
func (s *FlatStore) EnsureSpace(ctx context.Context, space string, dim int, metric Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.spaces[space]; ok {
		if existing.Dim != dim {
			return fmt.Errorf("space %s dimension mismatch: have %d, want %d", space, existing.Dim, dim)
		}
		if existing.Metric != metric {
			return fmt.Errorf("space %s metric mismatch: have %s, want %s", space, existing.Metric, metric)
		}
		return nil
	}
	s.spaces[space] = &flatSpace{Metric: metric, Dim: dim}
	return nil
}

// Add appends points to a space.
func (s *FlatStore) Add(ctx context.Context, space string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.spaces[space]
	if !ok {
		return fmt.Errorf("unknown space %s", space)
	}
	for _, p := range points {
		if len(p.Vec) != sp.Dim {
			return fmt.Errorf("vector %s has dimension %d, space %s expects %d", p.ID, len(p.Vec), space, sp.Dim)
		}
		sp.IDs = append(sp.IDs, p.ID)
		sp.Vectors = append(sp.Vectors, p.Vec)
	}
	return nil
}

// Search returns the k nearest points, ascending by distance. Equal distances
// keep insertion order, which tracks chunk order within a source.
func (s *FlatStore) Search(ctx context.Context, space string, query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := s.spaces[space]
	if !ok || len(sp.IDs) == 0 {
		return nil, fmt.Errorf("%w: space %s is empty or absent", service.ErrIndexUnavailable, space)
	}
	if len(query) != sp.Dim {
		return nil, fmt.Errorf("query has dimension %d, space %s expects %d", len(query), space, sp.Dim)
	}

	hits := make([]Hit, len(sp.IDs))
	for i, vec := range sp.Vectors {
		hits[i] = Hit{ID: sp.IDs[i], Distance: distance(sp.Metric, query, vec)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of vectors in a space (0 if absent).
func (s *FlatStore) Count(ctx context.Context, space string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.spaces[space]
	if !ok {
		return 0, nil
	}
	return len(sp.IDs), nil
}

// Reset clears all spaces for a full rebuild.
func (s *FlatStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaces = make(map[string]*flatSpace)
	return nil
}

// Persist writes the index to its file atomically (write to a temp file,
// then rename).
func (s *FlatStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(s.spaces); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}

// Load restores the index from its file, replacing in-memory contents.
func (s *FlatStore) Load(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	spaces := make(map[string]*flatSpace)
	if err := gob.NewDecoder(f).Decode(&spaces); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}

	s.mu.Lock()
	s.spaces = spaces
	s.mu.Unlock()
	return nil
}

// distance computes the metric distance between two vectors of equal length.
func distance(metric Metric, a, b []float32) float32 {
	switch metric {
	case MetricEuclidean:
		var sum float32
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return float32(math.Sqrt(float64(sum)))
	default: // cosine
		var dot, normA, normB float32
		for i := range a {
			dot += a[i] * b[i]
			normA += a[i] * a[i]
			normB += b[i] * b[i]
		}
		if normA == 0 || normB == 0 {
			return 1
		}
		sim := dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
		return 1 - sim
	}
}
