package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_store.go -package=mocks voxarch/internal/vectorstore Store

import "context"

// Metric is the distance geometry of an embedding space, fixed at build time
// to match the embedding model (cosine for normalized embeddings, Euclidean
// otherwise).
type Metric string

const (
	// MetricCosine ranks by cosine distance (1 - cosine similarity).
	MetricCosine Metric = "cosine"
	// MetricEuclidean ranks by L2 distance.
	MetricEuclidean Metric = "euclidean"
)

// Point is a vector with its chunk reference.
type Point struct {
	ID  string
	Vec []float32
}

// Hit is a search result. Lower distance is a better match.
type Hit struct {
	ID       string
	Distance float32
}

// Store is a persistent similarity index holding one independent index per
// named embedding space. Spaces are never mixed inside a single search.
// Stores support incremental add and full rebuild but not item deletion;
// that is a documented limitation, not an oversight.
type Store interface {
	// EnsureSpace creates the named space if absent and validates its
	// dimensionality and metric if present.
	EnsureSpace(ctx context.Context, space string, dim int, metric Metric) error

	// Add appends points to a space.
	Add(ctx context.Context, space string, points []Point) error

	// Search returns the k nearest points in a space, ascending by distance.
	// An absent or empty space fails with ErrIndexUnavailable.
	Search(ctx context.Context, space string, query []float32, k int) ([]Hit, error)

	// Count returns the number of vectors in a space (0 if absent).
	Count(ctx context.Context, space string) (int, error)

	// Reset clears all spaces for a full rebuild.
	Reset(ctx context.Context) error

	// Persist writes the index to durable storage.
	Persist(ctx context.Context) error

	// Load restores the index from durable storage.
	Load(ctx context.Context) error
}
