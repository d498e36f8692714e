package extractors

import (
	"context"
	"fmt"
	"os"

	"github.com/archivista/lore-ingest/internal/core/ports/driven"
)

// Ensure Plaintext implements the interface.
var _ driven.Extractor = (*Plaintext)(nil)

// Plaintext handles files that already are text. Decoding and cleanup are
// the normaliser's job; this extractor just reads bytes.
type Plaintext struct{}

// NewPlaintext creates a plaintext extractor.
func NewPlaintext() *Plaintext {
	return &Plaintext{}
}

// Name returns the extractor identifier.
func (e *Plaintext) Name() string { return "plaintext" }

// Extensions returns the handled file extensions.
func (e *Plaintext) Extensions() []string { return []string{".txt", ".md"} }

// Extract reads the file as-is.
func (e *Plaintext) Extract(_ context.Context, path string) (*driven.ExtractResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return &driven.ExtractResult{Text: string(data)}, nil
}
