package domain

import "time"

// Work is one ingested document. The canonical text is immutable after
// creation; only the derived scenes and chunks may be regenerated.
type Work struct {
	// ID is the stable unique identifier for the work.
	ID string

	// Title is the human-readable title, usually derived from the filename.
	Title string

	// Author is optional author metadata supplied by the caller.
	Author string

	// Source is the original path or label the work was ingested from.
	Source string

	// CanonicalText is the normalised, encoding-resolved text. All scene and
	// chunk offsets address into this text.
	CanonicalText string

	// CharCount is len(CanonicalText).
	CharCount int

	// Fingerprint is the SHA-1 hex digest of the canonical text. It is the
	// de-duplication key: at most one work exists per distinct fingerprint.
	Fingerprint string

	// IngestRunID references the run that produced the current scenes/chunks.
	IngestRunID string

	// CreatedAt is when the work was first ingested.
	CreatedAt time.Time
}

// Scene is a contiguous, non-overlapping span of a work's canonical text.
// For a given work, scenes sorted by Index form a gapless partition of
// [0, CharCount): Start of the first is 0, End of the last is CharCount,
// and each End equals the next Start.
type Scene struct {
	// ID is the unique identifier for the scene.
	ID string

	// WorkID links to the owning Work.
	WorkID string

	// Index is the 0-based, gapless ordinal within the work.
	Index int

	// Start and End are absolute byte offsets into the canonical text.
	Start int
	End   int

	// Heading is an optional label taken from the boundary line.
	Heading string

	// ChapterID optionally links to a parent grouping.
	ChapterID *string
}

// Chunk is a retrieval window over a scene's text. Consecutive chunks within
// a scene overlap by window minus stride characters; the final chunk may be
// shorter than the window. Text always equals CanonicalText[Start:End].
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// WorkID links to the owning Work.
	WorkID string

	// SceneID links to the scene the window was drawn from.
	SceneID string

	// Index is the 0-based ordinal within the work.
	Index int

	// Start and End are absolute byte offsets into the canonical text.
	Start int
	End   int

	// Text is the extracted substring CanonicalText[Start:End].
	Text string

	// Fingerprint is the SHA-1 hex digest of Text, used as a
	// de-duplication/index key downstream.
	Fingerprint string
}

// IngestRun records one execution of the pipeline, either an initial ingest
// or a resegmentation.
type IngestRun struct {
	// ID is the unique identifier for the run.
	ID string

	// CreatedAt is when the run was recorded.
	CreatedAt time.Time

	// Params are the parameters the run executed with.
	Params RunParams
}

// RunParams captures the knobs a pipeline run executed with, persisted
// alongside the run for reproducibility.
type RunParams struct {
	Profile     string   `json:"profile"`
	WindowChars int      `json:"window_chars"`
	StrideChars int      `json:"stride_chars"`
	Extractor   string   `json:"extractor,omitempty"`
	SourceExt   string   `json:"source_ext,omitempty"`
	Ingestor    string   `json:"ingestor,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// SegmentCounts reports the derived-row sizes for a work.
type SegmentCounts struct {
	Chars  int `json:"chars"`
	Scenes int `json:"scenes"`
	Chunks int `json:"chunks"`
}
