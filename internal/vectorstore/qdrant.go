package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"voxarch/internal/contextutil"
	"voxarch/internal/service"
)

// QdrantStore implements Store against a Qdrant server, one collection per
// embedding space. Persist and Load are no-ops because durability lives on
// the server side.
type QdrantStore struct {
	client *qdrant.Client

	mu      sync.RWMutex
	metrics map[string]Metric // metric per space, needed for score conversion
}

// NewQdrantStore creates a new Qdrant-backed store.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewQdrantStore(urlStr string) (*QdrantStore, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		if httpPort, err := strconv.Atoi(parsedURL.Port()); err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client:  client,
		metrics: make(map[string]Metric),
	}, nil
}

// EnsureSpace creates the collection for a space if absent and validates its
// vector size if present.
func (s *QdrantStore) EnsureSpace(ctx context.Context, space string, dim int, metric Metric) error {
	logger := contextutil.LoggerFromContext(ctx)

	s.mu.Lock()
	s.metrics[space] = metric
	s.mu.Unlock()

	exists, err := s.client.CollectionExists(ctx, space)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "space", space, "vector_size", dim, "metric", metric)
		qdrantDistance := qdrant.Distance_Cosine
		if metric == MetricEuclidean {
			qdrantDistance = qdrant.Distance_Euclid
		}
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: space,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrantDistance,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, space)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	config := info.Config
	if config == nil || config.Params == nil {
		return fmt.Errorf("collection config is invalid")
	}
	vectorsConfig := config.Params.GetVectorsConfig()
	if vectorsConfig == nil {
		return fmt.Errorf("collection vectors config is invalid")
	}
	params := vectorsConfig.GetParams()
	if params == nil {
		return fmt.Errorf("collection vector params are invalid")
	}
	if int(params.Size) != dim {
		return fmt.Errorf("collection %s vector size mismatch: expected %d, got %d", space, dim, params.Size)
	}
	return nil
}

// Add upserts points into a space's collection.
func (s *QdrantStore) Add(ctx context.Context, space string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(point.ID),
			Vectors: qdrant.NewVectors(point.Vec...),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: space,
		Points:         qdrantPoints,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "space", space, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.DebugContext(ctx, "upserted points", "space", space, "count", len(points))
	return nil
}

// Search returns the k nearest points in a space, ascending by distance.
// Qdrant returns similarity scores for cosine collections, so those are
// converted to distances to keep the ranking contract uniform.
func (s *QdrantStore) Search(ctx context.Context, space string, query []float32, k int) ([]Hit, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	count, err := s.Count(ctx, space)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: space %s is empty or absent", service.ErrIndexUnavailable, space)
	}

	limit := uint64(k)
	scoredPoints, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: space,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "space", space, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	s.mu.RLock()
	metric := s.metrics[space]
	s.mu.RUnlock()

	hits := make([]Hit, 0, len(scoredPoints))
	for _, result := range scoredPoints {
		id := ""
		if result.Id != nil {
			id = result.Id.GetUuid()
		}
		dist := result.Score
		if metric != MetricEuclidean {
			dist = 1 - result.Score
		}
		hits = append(hits, Hit{ID: id, Distance: dist})
	}

	logger.DebugContext(ctx, "search completed", "space", space, "k", k, "results", len(hits))
	return hits, nil
}

// Count returns the number of points in a space's collection (0 if absent).
func (s *QdrantStore) Count(ctx context.Context, space string) (int, error) {
	exists, err := s.client.CollectionExists(ctx, space)
	if err != nil {
		return 0, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return 0, nil
	}
	info, err := s.client.GetCollectionInfo(ctx, space)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection info: %w", err)
	}
	if info.PointsCount == nil {
		return 0, nil
	}
	return int(*info.PointsCount), nil
}

// Reset drops the collections registered via EnsureSpace for a full rebuild.
// Callers must register every space before resetting; the build pipeline does
// this so a fresh process still clears server-side collections.
func (s *QdrantStore) Reset(ctx context.Context) error {
	s.mu.RLock()
	spaces := make([]string, 0, len(s.metrics))
	for space := range s.metrics {
		spaces = append(spaces, space)
	}
	s.mu.RUnlock()

	for _, space := range spaces {
		exists, err := s.client.CollectionExists(ctx, space)
		if err != nil {
			return fmt.Errorf("failed to check collection existence: %w", err)
		}
		if !exists {
			continue
		}
		if err := s.client.DeleteCollection(ctx, space); err != nil {
			return fmt.Errorf("failed to delete collection %s: %w", space, err)
		}
	}
	return nil
}

// Persist is a no-op: the Qdrant server owns durability.
func (s *QdrantStore) Persist(ctx context.Context) error {
	return nil
}

// Load is a no-op: collections are available as soon as the server is.
func (s *QdrantStore) Load(ctx context.Context) error {
	return nil
}
