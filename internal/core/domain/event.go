package domain

import "time"

// Event types emitted by the pipeline.
const (
	EventDocumentIngested = "document.ingested"
	EventDocumentFailed   = "document.failed"
	EventWorkResegmented  = "work.resegmented"
)

// Event is the fire-and-forget notification emitted after a pipeline run.
// Success events carry the work identity and sizes; failure events carry the
// reason and the pipeline stage that failed. Sink delivery is best-effort
// and never fails the ingest that produced the event.
type Event struct {
	Type        string         `json:"type"`
	WorkID      string         `json:"work_id,omitempty"`
	Path        string         `json:"path,omitempty"`
	Title       string         `json:"title,omitempty"`
	Author      string         `json:"author,omitempty"`
	Fingerprint string         `json:"content_sha1,omitempty"`
	Sizes       *SegmentCounts `json:"sizes,omitempty"`
	Profile     string         `json:"profile,omitempty"`
	RunID       string         `json:"run_id,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Stage       string         `json:"stage,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Pipeline stages recorded on failure events and watcher error records.
const (
	StageAdmission = "admission"
	StageExtract   = "extract"
	StageNormalise = "normalise"
	StageSegment   = "segment"
	StageChunk     = "chunk"
	StagePersist   = "persist"
)
