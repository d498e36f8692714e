package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/archivista/lore-ingest/internal/chunk"
	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/core/ports/driven"
	"github.com/archivista/lore-ingest/internal/core/ports/driving"
	"github.com/archivista/lore-ingest/internal/metrics"
	"github.com/archivista/lore-ingest/internal/normalise"
	"github.com/archivista/lore-ingest/internal/segment"
)

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

// IngestService is the ingestion coordinator. It orchestrates the
// extract → normalise → segment → chunk pipeline, enforces idempotency by
// content fingerprint, and exclusively owns the canonical write path.
type IngestService struct {
	store      driven.WorkStore
	extractors driven.ExtractorRegistry
	index      driven.ChunkIndex // optional
	events     driven.EventSink  // optional
	clock      driven.Clock
	logger     *zap.Logger
	metrics    *metrics.Pipeline // optional

	// busy serialises runs per work: a resegmentation holds its work's
	// slot for the duration of the run.
	mu   sync.Mutex
	busy map[string]struct{}
}

// NewIngestService creates the coordinator. index, events and collectors
// may be nil; clock defaults to the system clock.
func NewIngestService(
	store driven.WorkStore,
	extractors driven.ExtractorRegistry,
	index driven.ChunkIndex,
	events driven.EventSink,
	clock driven.Clock,
	logger *zap.Logger,
	collectors *metrics.Pipeline,
) *IngestService {
	if clock == nil {
		clock = driven.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		store:      store,
		extractors: extractors,
		index:      index,
		events:     events,
		clock:      clock,
		logger:     logger,
		metrics:    collectors,
		busy:       make(map[string]struct{}),
	}
}

// Ingest runs the pipeline for one source file.
//
// Byte-identical content is recognised by fingerprint before anything is
// written; the existing work is returned untouched, which is what makes
// at-least-once delivery from the watcher and workflow retries safe.
func (s *IngestService) Ingest(ctx context.Context, req driving.IngestRequest) (*driving.IngestResult, error) {
	started := s.clock.Now()

	extractor, err := s.extractors.ForPath(req.Path)
	if err != nil {
		return nil, domain.AtStage(domain.StageExtract, err)
	}
	extracted, err := extractor.Extract(ctx, req.Path)
	if err != nil {
		return nil, domain.AtStage(domain.StageExtract, err)
	}

	canonical, err := normalise.Canonical([]byte(extracted.Text))
	if err != nil {
		return nil, domain.AtStage(domain.StageNormalise, err)
	}

	// Idempotency: same canonical content means same work, no new rows.
	if existing, err := s.store.FindWorkByFingerprint(ctx, canonical.Fingerprint); err == nil {
		counts, err := s.store.Counts(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("count existing segments: %w", err)
		}
		s.logger.Info("duplicate content, returning existing work",
			zap.String("work_id", existing.ID),
			zap.String("fingerprint", canonical.Fingerprint))
		if s.metrics != nil {
			s.metrics.DuplicateHits.Inc()
		}
		return &driving.IngestResult{
			WorkID:      existing.ID,
			Fingerprint: canonical.Fingerprint,
			Sizes:       *counts,
			Duplicate:   true,
		}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("fingerprint lookup: %w", err)
	}

	profile := segment.Get(req.Profile)
	window, stride := windowGeometry(req.WindowChars, req.StrideChars)

	scenes := profile.Segment(canonical.Text)
	chunkSpans, err := chunk.Windows(scenes, window, stride)
	if err != nil {
		return nil, domain.AtStage(domain.StageChunk, err)
	}

	run := &domain.IngestRun{
		ID:        uuid.New().String(),
		CreatedAt: s.clock.Now(),
		Params: domain.RunParams{
			Profile:     profile.Name(),
			WindowChars: window,
			StrideChars: stride,
			Extractor:   extractor.Name(),
			SourceExt:   strings.ToLower(filepath.Ext(req.Path)),
			Ingestor:    req.Ingestor,
			Warnings:    extracted.Warnings,
		},
	}
	work := &domain.Work{
		ID:            uuid.New().String(),
		Title:         orDefault(req.Title, titleFromPath(req.Path)),
		Author:        req.Author,
		Source:        filepath.Base(req.Path),
		CanonicalText: canonical.Text,
		CharCount:     canonical.CharCount,
		Fingerprint:   canonical.Fingerprint,
		IngestRunID:   run.ID,
		CreatedAt:     run.CreatedAt,
	}
	sceneRows, chunkRows := buildRows(work, canonical.Text, scenes, chunkSpans)

	if err := s.store.CreateWork(ctx, work, sceneRows, chunkRows, run); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost the insert race: another caller committed the same
			// content first. Re-read and return the winner.
			return s.raceWinner(ctx, canonical.Fingerprint)
		}
		return nil, err
	}

	s.mirrorChunks(ctx, work.ID, chunkRows)

	sizes := domain.SegmentCounts{
		Chars:  canonical.CharCount,
		Scenes: len(sceneRows),
		Chunks: len(chunkRows),
	}
	s.emit(ctx, domain.Event{
		Type:        domain.EventDocumentIngested,
		WorkID:      work.ID,
		Path:        req.Path,
		Title:       work.Title,
		Author:      work.Author,
		Fingerprint: work.Fingerprint,
		Sizes:       &sizes,
		Profile:     run.Params.Profile,
		RunID:       run.ID,
		CreatedAt:   s.clock.Now(),
	})

	if s.metrics != nil {
		s.metrics.DocumentsIngested.Inc()
		s.metrics.IngestDuration.Observe(s.clock.Now().Sub(started).Seconds())
	}
	s.logger.Info("work ingested",
		zap.String("work_id", work.ID),
		zap.String("profile", run.Params.Profile),
		zap.Int("scenes", len(sceneRows)),
		zap.Int("chunks", len(chunkRows)))

	return &driving.IngestResult{
		WorkID:      work.ID,
		Fingerprint: work.Fingerprint,
		Sizes:       sizes,
	}, nil
}

// Resegment re-derives scenes and chunks for an existing work, superseding
// the current set in one transaction. Concurrent runs for the same work are
// refused with domain.ErrConflictingRun.
func (s *IngestService) Resegment(ctx context.Context, workID, profileName string, windowChars, strideChars int) (*driving.ResegmentResult, error) {
	if !s.acquire(workID) {
		return nil, domain.ErrConflictingRun
	}
	defer s.release(workID)

	work, err := s.store.GetWork(ctx, workID)
	if err != nil {
		return nil, err
	}

	profile := segment.Get(profileName)
	window, stride := windowGeometry(windowChars, strideChars)

	scenes := profile.Segment(work.CanonicalText)
	chunkSpans, err := chunk.Windows(scenes, window, stride)
	if err != nil {
		return nil, domain.AtStage(domain.StageChunk, err)
	}

	run := &domain.IngestRun{
		ID:        uuid.New().String(),
		CreatedAt: s.clock.Now(),
		Params: domain.RunParams{
			Profile:     profile.Name(),
			WindowChars: window,
			StrideChars: stride,
			Ingestor:    "resegment",
		},
	}
	sceneRows, chunkRows := buildRows(work, work.CanonicalText, scenes, chunkSpans)

	if err := s.store.ReplaceSegments(ctx, workID, sceneRows, chunkRows, run); err != nil {
		return nil, err
	}

	if s.index != nil {
		if err := s.index.RemoveWork(ctx, workID); err != nil {
			s.logger.Warn("index remove failed", zap.String("work_id", workID), zap.Error(err))
		}
	}
	s.mirrorChunks(ctx, workID, chunkRows)

	sizes := domain.SegmentCounts{
		Chars:  work.CharCount,
		Scenes: len(sceneRows),
		Chunks: len(chunkRows),
	}
	s.emit(ctx, domain.Event{
		Type:        domain.EventWorkResegmented,
		WorkID:      workID,
		Title:       work.Title,
		Author:      work.Author,
		Fingerprint: work.Fingerprint,
		Sizes:       &sizes,
		Profile:     run.Params.Profile,
		RunID:       run.ID,
		CreatedAt:   s.clock.Now(),
	})

	return &driving.ResegmentResult{
		SceneCount: len(sceneRows),
		ChunkCount: len(chunkRows),
	}, nil
}

// Slice returns the exact substring of a work's canonical text.
func (s *IngestService) Slice(ctx context.Context, workID string, start, end int) (string, error) {
	work, err := s.store.GetWork(ctx, workID)
	if err != nil {
		return "", err
	}
	if start < 0 || end > work.CharCount || start > end {
		return "", fmt.Errorf("%w: [%d, %d) of %d", domain.ErrRangeOutOfBounds, start, end, work.CharCount)
	}
	return work.CanonicalText[start:end], nil
}

// raceWinner resolves an insert race by returning the committed work.
func (s *IngestService) raceWinner(ctx context.Context, fingerprint string) (*driving.IngestResult, error) {
	winner, err := s.store.FindWorkByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("re-read after uniqueness violation: %w", err)
	}
	counts, err := s.store.Counts(ctx, winner.ID)
	if err != nil {
		return nil, fmt.Errorf("count existing segments: %w", err)
	}
	if s.metrics != nil {
		s.metrics.DuplicateHits.Inc()
	}
	return &driving.IngestResult{
		WorkID:      winner.ID,
		Fingerprint: fingerprint,
		Sizes:       *counts,
		Duplicate:   true,
	}, nil
}

// mirrorChunks feeds the full-text index. Best-effort by contract.
func (s *IngestService) mirrorChunks(ctx context.Context, workID string, chunks []domain.Chunk) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexChunks(ctx, workID, chunks); err != nil {
		s.logger.Warn("chunk index mirror failed", zap.String("work_id", workID), zap.Error(err))
	}
}

// emit delivers an event to the sink. Best-effort by contract.
func (s *IngestService) emit(ctx context.Context, event domain.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.Warn("event emit failed", zap.String("type", event.Type), zap.Error(err))
	}
}

func (s *IngestService) acquire(workID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.busy[workID]; taken {
		return false
	}
	s.busy[workID] = struct{}{}
	return true
}

func (s *IngestService) release(workID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, workID)
}

// buildRows materialises scene and chunk rows from spans, slicing chunk
// text out of the canonical text so the round-trip contract holds by
// construction.
func buildRows(work *domain.Work, text string, scenes []segment.Span, chunkSpans []chunk.Span) ([]domain.Scene, []domain.Chunk) {
	sceneRows := make([]domain.Scene, len(scenes))
	sceneIDByIndex := make(map[int]string, len(scenes))
	for i, sp := range scenes {
		id := uuid.New().String()
		sceneIDByIndex[sp.Index] = id
		sceneRows[i] = domain.Scene{
			ID:      id,
			WorkID:  work.ID,
			Index:   sp.Index,
			Start:   sp.Start,
			End:     sp.End,
			Heading: sp.Heading,
		}
	}

	chunkRows := make([]domain.Chunk, len(chunkSpans))
	for i, cs := range chunkSpans {
		body := text[cs.Start:cs.End]
		chunkRows[i] = domain.Chunk{
			ID:          uuid.New().String(),
			WorkID:      work.ID,
			SceneID:     sceneIDByIndex[cs.SceneIndex],
			Index:       cs.Index,
			Start:       cs.Start,
			End:         cs.End,
			Text:        body,
			Fingerprint: normalise.Fingerprint(body),
		}
	}
	return sceneRows, chunkRows
}

// windowGeometry applies chunker defaults to unset values.
func windowGeometry(window, stride int) (int, int) {
	if window == 0 {
		window = chunk.DefaultWindow
	}
	if stride == 0 {
		stride = chunk.DefaultStride
	}
	return window, stride
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// titleFromPath derives a title from the filename stem.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Profiles lists the registered segmentation profiles.
func (s *IngestService) Profiles() []string { return segment.Names() }

// Extractors lists the registered source extensions.
func (s *IngestService) Extractors() []string { return s.extractors.Extensions() }
