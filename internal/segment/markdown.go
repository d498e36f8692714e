package segment

import "strings"

// markdownProfile splits at ATX heading lines (# through ######). Heading
// lines start the scene they title. Lines inside fenced code blocks are
// never treated as headings; an unterminated fence runs to end of text.
type markdownProfile struct{}

func (p *markdownProfile) Name() string { return "markdown" }

func (p *markdownProfile) Segment(text string) []Span {
	var bounds []boundary
	inFence := false
	fenceMarker := ""

	for _, l := range splitLines(text) {
		trimmed := strings.TrimSpace(l.text)

		if inFence {
			if isFenceLine(trimmed, fenceMarker) {
				inFence = false
			}
			continue
		}
		if marker, ok := fenceOpen(trimmed); ok {
			inFence = true
			fenceMarker = marker
			continue
		}

		if heading, ok := atxHeading(trimmed); ok {
			bounds = append(bounds, boundary{at: l.start, heading: heading})
		}
	}

	return spansFromBoundaries(text, bounds)
}

// atxHeading parses an ATX heading line, returning the heading text.
func atxHeading(line string) (string, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level > 6 || level == len(line) || line[level] != ' ' {
		return "", false
	}
	heading := strings.TrimSpace(line[level:])
	if heading == "" {
		return "", false
	}
	return heading, true
}

// fenceOpen reports whether a line opens a fenced code block and returns
// the fence marker (``` or ~~~).
func fenceOpen(line string) (string, bool) {
	for _, marker := range []string{"```", "~~~"} {
		if strings.HasPrefix(line, marker) {
			return marker, true
		}
	}
	return "", false
}

// isFenceLine reports whether a line closes the fence opened by marker.
func isFenceLine(line, marker string) bool {
	return strings.HasPrefix(line, marker)
}
