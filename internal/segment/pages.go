package segment

import "strings"

// PageBreakSentinel is the marker line the page-extraction collaborator
// inserts between pages. The pdf_pages profile splits strictly on it.
const PageBreakSentinel = "[[PAGE_BREAK]]"

// pagesProfile performs a strict 1:1 split on page-break sentinel lines:
// every inter-sentinel run is exactly one scene regardless of content.
// To keep the partition gapless the sentinel line opens the scene it
// precedes; it is never reported as a heading.
type pagesProfile struct{}

func (p *pagesProfile) Name() string { return "pdf_pages" }

func (p *pagesProfile) Segment(text string) []Span {
	var bounds []boundary
	for _, l := range splitLines(text) {
		if strings.TrimSpace(l.text) == PageBreakSentinel {
			bounds = append(bounds, boundary{at: l.start})
		}
	}
	return spansFromBoundaries(text, bounds)
}
