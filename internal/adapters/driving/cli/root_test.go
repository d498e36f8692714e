package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/core/ports/driven"
	"github.com/archivista/lore-ingest/internal/core/ports/driving"
)

// testPipeline is a canned coordinator for command tests.
type testPipeline struct {
	ingestResult    *driving.IngestResult
	ingestErr       error
	resegmentResult *driving.ResegmentResult
	resegmentErr    error
	sliceText       string
	sliceErr        error

	lastIngest driving.IngestRequest
}

func (p *testPipeline) Ingest(_ context.Context, req driving.IngestRequest) (*driving.IngestResult, error) {
	p.lastIngest = req
	if p.ingestErr != nil {
		return nil, p.ingestErr
	}
	if p.ingestResult != nil {
		return p.ingestResult, nil
	}
	return &driving.IngestResult{
		WorkID:      "w-test",
		Fingerprint: "deadbeef",
		Sizes:       domain.SegmentCounts{Chars: 42, Scenes: 2, Chunks: 3},
	}, nil
}

func (p *testPipeline) Resegment(context.Context, string, string, int, int) (*driving.ResegmentResult, error) {
	if p.resegmentErr != nil {
		return nil, p.resegmentErr
	}
	if p.resegmentResult != nil {
		return p.resegmentResult, nil
	}
	return &driving.ResegmentResult{SceneCount: 2, ChunkCount: 3}, nil
}

func (p *testPipeline) Slice(context.Context, string, int, int) (string, error) {
	return p.sliceText, p.sliceErr
}

func (p *testPipeline) Profiles() []string   { return []string{"default", "markdown", "pdf_pages"} }
func (p *testPipeline) Extractors() []string { return []string{".docx", ".md", ".pdf", ".txt"} }

// testStore is a canned read-only store for command tests.
type testStore struct {
	works  []domain.Work
	scenes []domain.Scene
	chunks []domain.Chunk
	err    error
}

var _ driven.WorkStore = (*testStore)(nil)

func (s *testStore) CreateWork(context.Context, *domain.Work, []domain.Scene, []domain.Chunk, *domain.IngestRun) error {
	return errors.New("not used")
}

func (s *testStore) ReplaceSegments(context.Context, string, []domain.Scene, []domain.Chunk, *domain.IngestRun) error {
	return errors.New("not used")
}

func (s *testStore) FindWorkByFingerprint(context.Context, string) (*domain.Work, error) {
	return nil, domain.ErrNotFound
}

func (s *testStore) GetWork(_ context.Context, id string) (*domain.Work, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.works {
		if s.works[i].ID == id {
			return &s.works[i], nil
		}
	}
	return nil, fmt.Errorf("work %q: %w", id, domain.ErrNotFound)
}

func (s *testStore) ListWorks(_ context.Context, titleQuery string, limit int) ([]domain.Work, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Work
	for _, w := range s.works {
		if titleQuery == "" || strings.Contains(w.Title, titleQuery) {
			out = append(out, w)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *testStore) ListScenes(context.Context, string) ([]domain.Scene, error) {
	return s.scenes, s.err
}

func (s *testStore) ListChunks(context.Context, string) ([]domain.Chunk, error) {
	return s.chunks, s.err
}

func (s *testStore) Counts(context.Context, string) (*domain.SegmentCounts, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.SegmentCounts{Scenes: len(s.scenes), Chunks: len(s.chunks)}, nil
}

// setupTestServices injects canned collaborators and returns a cleanup that
// restores the previous state.
func setupTestServices() func() {
	oldService := ingestService
	oldStore := workStore

	ingestService = &testPipeline{}
	workStore = &testStore{}

	return func() {
		ingestService = oldService
		workStore = oldStore
	}
}
