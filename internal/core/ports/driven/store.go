package driven

import (
	"context"

	"github.com/archivista/lore-ingest/internal/core/domain"
)

// WorkStore is the canonical store for works and their derived rows.
// The ingest coordinator exclusively owns the write path; all other
// components read.
type WorkStore interface {
	// CreateWork writes the work, its scenes and chunks, and the ingest run
	// in one atomic transaction. Any partial failure rolls back entirely.
	// If another work with the same content fingerprint already exists the
	// write is aborted and domain.ErrAlreadyExists is returned; callers
	// resolve the race by re-reading with FindWorkByFingerprint.
	CreateWork(ctx context.Context, work *domain.Work, scenes []domain.Scene, chunks []domain.Chunk, run *domain.IngestRun) error

	// ReplaceSegments atomically deletes a work's current scenes and chunks,
	// writes the replacement sets and the new ingest run, and repoints the
	// work at that run. The canonical text is never touched.
	ReplaceSegments(ctx context.Context, workID string, scenes []domain.Scene, chunks []domain.Chunk, run *domain.IngestRun) error

	// FindWorkByFingerprint returns the work with the given content
	// fingerprint, or domain.ErrNotFound.
	FindWorkByFingerprint(ctx context.Context, fingerprint string) (*domain.Work, error)

	// GetWork returns a work by ID, or domain.ErrNotFound.
	GetWork(ctx context.Context, id string) (*domain.Work, error)

	// ListWorks returns up to limit works, newest first, optionally
	// filtered by a title substring.
	ListWorks(ctx context.Context, titleQuery string, limit int) ([]domain.Work, error)

	// ListScenes returns a work's scenes ordered by index.
	ListScenes(ctx context.Context, workID string) ([]domain.Scene, error)

	// ListChunks returns a work's chunks ordered by index.
	ListChunks(ctx context.Context, workID string) ([]domain.Chunk, error)

	// Counts returns the derived-row sizes for a work.
	Counts(ctx context.Context, workID string) (*domain.SegmentCounts, error)
}
