package extractors

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/core/ports/driven"
	"github.com/archivista/lore-ingest/internal/segment"
)

// Ensure PDF implements the interface.
var _ driven.Extractor = (*PDF)(nil)

// PDF extracts text per page and joins pages with a sentinel line, so the
// pages segmentation profile can recover the exact page boundaries after
// normalisation.
type PDF struct{}

// NewPDF creates a PDF extractor.
func NewPDF() *PDF {
	return &PDF{}
}

// Name returns the extractor identifier.
func (e *PDF) Name() string { return "pdf" }

// Extensions returns the handled file extensions.
func (e *PDF) Extensions() []string { return []string{".pdf"} }

// Extract reads every page's plain text. Pages that fail to decode are
// kept as empty pages with a warning, preserving the page count.
func (e *PDF) Extract(ctx context.Context, path string) (*driven.ExtractResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening pdf: %v", domain.ErrExtraction, err)
	}
	defer f.Close()

	var warnings []string
	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			warnings = append(warnings, fmt.Sprintf("page %d: missing page object", i))
			continue
		}
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			pages = append(pages, "")
			warnings = append(warnings, fmt.Sprintf("page %d: %v", i, err))
			continue
		}
		pages = append(pages, strings.TrimRight(text, " \t\n"))
	}

	return &driven.ExtractResult{
		Text:     strings.Join(pages, "\n"+segment.PageBreakSentinel+"\n"),
		Warnings: warnings,
	}, nil
}
