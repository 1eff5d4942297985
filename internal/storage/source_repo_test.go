package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestSourceRepo_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSourceRepo(setupTestDB(t))

	source := &SourceRecord{
		ID:       "source-1",
		Filename: "book.txt",
		Modality: "text",
		Hash:     "abc123",
	}
	if err := repo.Upsert(ctx, source); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.GetByFilename(ctx, "book.txt")
	if err != nil {
		t.Fatalf("GetByFilename() error = %v", err)
	}
	if got.ID != "source-1" {
		t.Errorf("ID = %q, want source-1", got.ID)
	}
	if got.Modality != "text" {
		t.Errorf("Modality = %q, want text", got.Modality)
	}
	if got.Hash != "abc123" {
		t.Errorf("Hash = %q, want abc123", got.Hash)
	}
	if got.IndexedAt.IsZero() {
		t.Error("IndexedAt should be set on insert")
	}
}

func TestSourceRepo_UpsertReplacesOnFilename(t *testing.T) {
	ctx := context.Background()
	repo := NewSourceRepo(setupTestDB(t))

	first := &SourceRecord{ID: "source-1", Filename: "book.txt", Modality: "text", Hash: "old"}
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Re-indexing the same filename updates the hash in place.
	second := &SourceRecord{ID: "source-1", Filename: "book.txt", Modality: "text", Hash: "new"}
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert() second error = %v", err)
	}

	got, err := repo.GetByFilename(ctx, "book.txt")
	if err != nil {
		t.Fatalf("GetByFilename() error = %v", err)
	}
	if got.Hash != "new" {
		t.Errorf("Hash = %q, want new", got.Hash)
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ListAll() returned %d sources, want 1", len(all))
	}
}

func TestSourceRepo_GetByFilename_NotFound(t *testing.T) {
	repo := NewSourceRepo(setupTestDB(t))
	_, err := repo.GetByFilename(context.Background(), "missing.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByFilename() error = %v, want ErrNotFound", err)
	}
}

func TestSourceRepo_ListAll_OrderedByFilename(t *testing.T) {
	ctx := context.Background()
	repo := NewSourceRepo(setupTestDB(t))

	for _, s := range []*SourceRecord{
		{ID: "s1", Filename: "zebra.txt", Modality: "text", Hash: "h"},
		{ID: "s2", Filename: "alpha.wav", Modality: "audio", Hash: "h"},
		{ID: "s3", Filename: "middle.txt", Modality: "text", Hash: "h"},
	} {
		if err := repo.Upsert(ctx, s); err != nil {
			t.Fatalf("Upsert(%s) error = %v", s.Filename, err)
		}
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	want := []string{"alpha.wav", "middle.txt", "zebra.txt"}
	if len(all) != len(want) {
		t.Fatalf("ListAll() returned %d sources, want %d", len(all), len(want))
	}
	for i, filename := range want {
		if all[i].Filename != filename {
			t.Errorf("all[%d].Filename = %q, want %q", i, all[i].Filename, filename)
		}
	}
}
