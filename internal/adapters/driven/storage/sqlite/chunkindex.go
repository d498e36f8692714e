package sqlite

import (
	"context"
	"fmt"

	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/core/ports/driven"
)

// Ensure ChunkIndex implements the interface.
var _ driven.ChunkIndex = (*ChunkIndex)(nil)

// ChunkIndex mirrors chunk text into an FTS5 table on the same database.
// It is fed after the canonical transaction commits, so the mirror may lag
// but the canonical rows never depend on it.
type ChunkIndex struct {
	store *Store
}

// NewChunkIndex creates the index adapter on an open store.
func NewChunkIndex(store *Store) *ChunkIndex {
	return &ChunkIndex{store: store}
}

// IndexChunks mirrors the chunk text for a work, replacing any previous
// mirror rows so re-delivery stays idempotent.
func (i *ChunkIndex) IndexChunks(ctx context.Context, workID string, chunks []domain.Chunk) error {
	tx, err := i.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning index transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunk_fts WHERE work_id = ?", workID); err != nil {
		return fmt.Errorf("clearing index rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO chunk_fts (text, chunk_id, work_id) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing index insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.Text, c.ID, workID); err != nil {
			return fmt.Errorf("indexing chunk %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index transaction: %w", err)
	}
	return nil
}

// RemoveWork drops all mirrored chunks for a work.
func (i *ChunkIndex) RemoveWork(ctx context.Context, workID string) error {
	if _, err := i.store.db.ExecContext(ctx, "DELETE FROM chunk_fts WHERE work_id = ?", workID); err != nil {
		return fmt.Errorf("removing index rows: %w", err)
	}
	return nil
}
