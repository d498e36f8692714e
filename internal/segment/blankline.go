package segment

import "strings"

// blankLineProfile splits on runs of blank lines. A boundary is placed at
// the first non-blank line following a run of at least blankRun blank lines;
// the blank run itself stays with the preceding scene. Spans shorter than
// minSceneChars are coalesced with a neighbour.
//
// The three heuristic profiles differ only in their run thresholds:
// sparse splits at every blank line, default at paragraph-sized runs of two,
// dense only at runs of three or more (plus a minimum span size), yielding
// progressively fewer, larger scenes.
type blankLineProfile struct {
	name          string
	blankRun      int
	minSceneChars int
}

func (p *blankLineProfile) Name() string { return p.name }

func (p *blankLineProfile) Segment(text string) []Span {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}

	var bounds []boundary
	run := 0
	seenContent := false
	for _, l := range lines {
		if l.blank() {
			run++
			continue
		}
		if seenContent && run >= p.blankRun {
			bounds = append(bounds, boundary{at: l.start})
		}
		run = 0
		seenContent = true
	}

	spans := mergeShort(spansFromBoundaries(text, bounds), p.minSceneChars)
	for i := range spans {
		spans[i].Heading = headingLabel(text[spans[i].Start:spans[i].End])
	}
	return spans
}

// headingLabel returns the first line of a span when it reads like a title:
// short, more than one line in the span, and no sentence-final punctuation.
// Prose openings ("It was the best of times.") are left unlabelled.
func headingLabel(span string) string {
	first, rest, found := strings.Cut(span, "\n")
	if !found || strings.TrimSpace(rest) == "" {
		return ""
	}
	first = strings.TrimSpace(first)
	if first == "" || len(first) > 60 {
		return ""
	}
	switch first[len(first)-1] {
	case '.', '!', '?', ',', ';', ':':
		return ""
	}
	return first
}
