// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - WorkStore: canonical Work/Scene/Chunk/IngestRun persistence
//   - Extractor: yields raw text from a source file
//   - ExtractorRegistry: selects an extractor by file extension
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ChunkIndex: full-text index mirror fed by chunk writes
//   - EventSink: fire-and-forget run notifications
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
