package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_source_store.go -package=mocks voxarch/internal/storage SourceStore

import (
	"context"
	"database/sql"
	"fmt"
)

// SourceStore defines the interface for source catalog operations.
type SourceStore interface {
	// Upsert inserts or replaces a source record.
	Upsert(ctx context.Context, source *SourceRecord) error
	// GetByFilename gets a source by filename. Returns ErrNotFound if not found.
	GetByFilename(ctx context.Context, filename string) (*SourceRecord, error)
	// ListAll returns all sources ordered by filename.
	ListAll(ctx context.Context) ([]*SourceRecord, error)
}

// SourceRepo provides methods for source operations.
// It implements the SourceStore interface.
type SourceRepo struct {
	db *sql.DB
}

// NewSourceRepo creates a new SourceRepo.
func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

// Upsert inserts or replaces a source record.
func (r *SourceRepo) Upsert(ctx context.Context, source *SourceRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (id, filename, modality, hash) VALUES (?, ?, ?, ?)
		 ON CONFLICT(filename) DO UPDATE SET modality = excluded.modality,
		 hash = excluded.hash, indexed_at = CURRENT_TIMESTAMP`,
		source.ID, source.Filename, source.Modality, source.Hash,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

// GetByFilename gets a source by filename. Returns ErrNotFound if not found.
func (r *SourceRepo) GetByFilename(ctx context.Context, filename string) (*SourceRecord, error) {
	var source SourceRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, filename, modality, hash, indexed_at FROM sources WHERE filename = ?",
		filename,
	).Scan(&source.ID, &source.Filename, &source.Modality, &source.Hash, &source.IndexedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}
	return &source, nil
}

// ListAll returns all sources ordered by filename.
func (r *SourceRepo) ListAll(ctx context.Context) ([]*SourceRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, filename, modality, hash, indexed_at FROM sources ORDER BY filename",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sources []*SourceRecord
	for rows.Next() {
		var source SourceRecord
		if err := rows.Scan(&source.ID, &source.Filename, &source.Modality, &source.Hash, &source.IndexedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, &source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sources, nil
}
