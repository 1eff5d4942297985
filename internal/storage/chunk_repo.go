package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks voxarch/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"fmt"
)

// ChunkStore defines the interface for chunk catalog operations.
type ChunkStore interface {
	// Insert inserts a single chunk with its space refs.
	// The chunk.ID must be set before calling this method.
	Insert(ctx context.Context, chunk *ChunkRecord) error
	// DeleteBySource deletes all chunks for a given source ID.
	DeleteBySource(ctx context.Context, sourceID string) error
	// GetByID gets a chunk by its ID, with source filename and space refs
	// joined in. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
	// GetByVectorRef resolves a vector id within a space back to its chunk.
	// Returns ErrNotFound if no chunk references that vector.
	GetByVectorRef(ctx context.Context, space, vectorID string) (*ChunkRecord, error)
	// ListBySource returns all chunks for a source, ordered by chunk_index.
	ListBySource(ctx context.Context, sourceID string) ([]*ChunkRecord, error)
	// CountAll returns the total number of chunks in the catalog.
	CountAll(ctx context.Context) (int, error)
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Insert inserts a single chunk with its space refs.
func (r *ChunkRepo) Insert(ctx context.Context, chunk *ChunkRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, source_id, chunk_index, modality, section, text, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.SourceID, chunk.ChunkIndex, chunk.Modality, chunk.Section, chunk.Text,
		chunk.StartTime, chunk.EndTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	for space, vectorID := range chunk.SpaceRefs {
		_, err := r.db.ExecContext(ctx,
			"INSERT OR REPLACE INTO chunk_spaces (chunk_id, space, vector_id) VALUES (?, ?, ?)",
			chunk.ID, space, vectorID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk space ref: %w", err)
		}
	}
	return nil
}

// DeleteBySource deletes all chunks for a given source ID.
// Used when re-indexing a source to remove old chunks before inserting new ones.
func (r *ChunkRepo) DeleteBySource(ctx context.Context, sourceID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM chunks WHERE source_id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by source: %w", err)
	}
	return nil
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	var chunk ChunkRecord
	var section sql.NullString
	var startTime, endTime sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.source_id, c.chunk_index, c.modality, c.section, c.text,
		        c.start_time, c.end_time, s.filename
		 FROM chunks c JOIN sources s ON s.id = c.source_id
		 WHERE c.id = ?`,
		id,
	).Scan(&chunk.ID, &chunk.SourceID, &chunk.ChunkIndex, &chunk.Modality, &section,
		&chunk.Text, &startTime, &endTime, &chunk.SourceFile)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}

	chunk.Section = section.String
	if startTime.Valid {
		chunk.StartTime = &startTime.Float64
	}
	if endTime.Valid {
		chunk.EndTime = &endTime.Float64
	}

	refs, err := r.spaceRefs(ctx, chunk.ID)
	if err != nil {
		return nil, err
	}
	chunk.SpaceRefs = refs

	return &chunk, nil
}

// GetByVectorRef resolves a vector id within a space back to its chunk.
func (r *ChunkRepo) GetByVectorRef(ctx context.Context, space, vectorID string) (*ChunkRecord, error) {
	var chunkID string
	err := r.db.QueryRowContext(ctx,
		"SELECT chunk_id FROM chunk_spaces WHERE space = ? AND vector_id = ?",
		space, vectorID,
	).Scan(&chunkID)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vector ref: %w", err)
	}
	return r.GetByID(ctx, chunkID)
}

// ListBySource returns all chunks for a source, ordered by chunk_index.
func (r *ChunkRepo) ListBySource(ctx context.Context, sourceID string) ([]*ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.source_id, c.chunk_index, c.modality, c.section, c.text,
		        c.start_time, c.end_time, s.filename
		 FROM chunks c JOIN sources s ON s.id = c.source_id
		 WHERE c.source_id = ? ORDER BY c.chunk_index`,
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []*ChunkRecord
	for rows.Next() {
		var chunk ChunkRecord
		var section sql.NullString
		var startTime, endTime sql.NullFloat64
		if err := rows.Scan(&chunk.ID, &chunk.SourceID, &chunk.ChunkIndex, &chunk.Modality,
			&section, &chunk.Text, &startTime, &endTime, &chunk.SourceFile); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunk.Section = section.String
		if startTime.Valid {
			chunk.StartTime = &startTime.Float64
		}
		if endTime.Valid {
			chunk.EndTime = &endTime.Float64
		}
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, chunk := range chunks {
		refs, err := r.spaceRefs(ctx, chunk.ID)
		if err != nil {
			return nil, err
		}
		chunk.SpaceRefs = refs
	}
	return chunks, nil
}

// CountAll returns the total number of chunks in the catalog.
func (r *ChunkRepo) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// spaceRefs loads the space → vector id mapping for a chunk.
func (r *ChunkRepo) spaceRefs(ctx context.Context, chunkID string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT space, vector_id FROM chunk_spaces WHERE chunk_id = ?",
		chunkID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk space refs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	refs := make(map[string]string)
	for rows.Next() {
		var space, vectorID string
		if err := rows.Scan(&space, &vectorID); err != nil {
			return nil, fmt.Errorf("failed to scan chunk space ref: %w", err)
		}
		refs[space] = vectorID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return refs, nil
}
