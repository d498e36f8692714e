package driven

import "context"

// Extractor yields raw text from a source file. Each extractor handles
// specific file extensions (e.g., .txt/.md, .pdf, .docx).
type Extractor interface {
	// Name returns the extractor identifier recorded in run parameters.
	Name() string

	// Extensions returns the lower-case file extensions this extractor
	// handles, dot included.
	Extensions() []string

	// Extract reads the file and returns its raw text. Format-specific
	// parse failures wrap domain.ErrExtraction.
	Extract(ctx context.Context, path string) (*ExtractResult, error)
}

// ExtractResult is the normalised output of any extractor.
type ExtractResult struct {
	// Text is the extracted raw text, before canonicalisation.
	Text string

	// Warnings are non-fatal extraction notes (skipped pages, repaired
	// structure), recorded on the ingest run.
	Warnings []string
}

// ExtractorRegistry selects an extractor for a file path.
type ExtractorRegistry interface {
	// ForPath returns the extractor for the path's extension, or
	// domain.ErrUnsupportedType.
	ForPath(path string) (Extractor, error)

	// Extensions returns every registered extension, sorted.
	Extensions() []string
}
