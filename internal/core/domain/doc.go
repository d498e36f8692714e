// Package domain contains the core business entities for the ingestion
// pipeline: works, scenes, chunks, ingest runs and the events they produce.
// It has no dependencies on adapters or infrastructure.
package domain
