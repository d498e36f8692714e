package driving

import (
	"context"

	"github.com/archivista/lore-ingest/internal/core/domain"
)

// IngestRequest describes one document to ingest.
type IngestRequest struct {
	// Path is the source file to ingest.
	Path string

	// Title is optional; when empty it is derived from the filename.
	Title string

	// Author is optional author metadata.
	Author string

	// Profile selects the segmentation strategy; empty means default.
	Profile string

	// WindowChars and StrideChars are the chunk window geometry; zero
	// values take the defaults.
	WindowChars int
	StrideChars int

	// Ingestor labels the calling surface (watcher, api, cli) on the run.
	Ingestor string
}

// IngestResult reports the outcome of an ingest.
type IngestResult struct {
	WorkID      string               `json:"work_id"`
	Fingerprint string               `json:"content_sha1"`
	Sizes       domain.SegmentCounts `json:"sizes"`

	// Duplicate is true when the content fingerprint already existed and
	// no new rows were written.
	Duplicate bool `json:"duplicate,omitempty"`
}

// ResegmentResult reports the replaced segment sizes.
type ResegmentResult struct {
	SceneCount int `json:"scene_count"`
	ChunkCount int `json:"chunk_count"`
}

// Ingestor is the coordinator boundary consumed by the HTTP API, the CLI
// and the folder watcher.
type Ingestor interface {
	// Ingest runs extract, normalise, segment, chunk and persist for one
	// source file. Repeated ingestion of byte-identical content returns
	// the existing work untouched.
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)

	// Resegment re-derives scenes and chunks for an existing work with new
	// parameters, superseding the current set. It refuses to run
	// concurrently with another run for the same work.
	Resegment(ctx context.Context, workID, profile string, windowChars, strideChars int) (*ResegmentResult, error)

	// Slice returns the exact substring of a work's canonical text.
	Slice(ctx context.Context, workID string, start, end int) (string, error)
}
