package driven

import (
	"context"

	"github.com/archivista/lore-ingest/internal/core/domain"
)

// ChunkIndex is the full-text index mirror fed by chunk writes. It is
// notified after the canonical transaction commits; index failures are
// logged and never roll back the ingest.
type ChunkIndex interface {
	// IndexChunks mirrors the chunk text for a work.
	IndexChunks(ctx context.Context, workID string, chunks []domain.Chunk) error

	// RemoveWork drops all mirrored chunks for a work, used before
	// re-indexing on resegmentation.
	RemoveWork(ctx context.Context, workID string) error
}
