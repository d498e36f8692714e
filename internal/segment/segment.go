// Package segment partitions canonical text into ordered, non-overlapping
// scene spans. Segmentation policy is selected by profile name; every
// profile is a strategy implementing the single Segment capability.
//
// All profiles guarantee the partition invariant: spans sorted by index are
// gapless, the first starts at 0 and the last ends at len(text). Identical
// (text, profile) input always yields byte-identical span lists.
package segment

import (
	"sort"
	"strings"
)

// Span is one scene span over canonical text. Offsets are absolute byte
// offsets; End is exclusive.
type Span struct {
	Index   int
	Start   int
	End     int
	Heading string
}

// Profile is a named segmentation strategy.
type Profile interface {
	// Name returns the profile identifier.
	Name() string

	// Segment partitions text into ordered scene spans covering [0, len(text)).
	// Empty text yields no spans.
	Segment(text string) []Span
}

// DefaultProfile is used when no profile is named.
const DefaultProfile = "default"

var profiles = map[string]Profile{
	"default":    &blankLineProfile{name: "default", blankRun: 2, minSceneChars: 0},
	"dense":      &blankLineProfile{name: "dense", blankRun: 3, minSceneChars: 120},
	"sparse":     &blankLineProfile{name: "sparse", blankRun: 1, minSceneChars: 0},
	"markdown":   &markdownProfile{},
	"screenplay": &screenplayProfile{},
	"pdf_pages":  &pagesProfile{},
}

// Get returns the profile registered under name. Unknown or empty names fall
// back to the default profile, matching the lenient selection at the
// coordinator boundary.
func Get(name string) Profile {
	if p, ok := profiles[strings.ToLower(name)]; ok {
		return p
	}
	return profiles[DefaultProfile]
}

// Known reports whether name is a registered profile.
func Known(name string) bool {
	_, ok := profiles[strings.ToLower(name)]
	return ok
}

// Names returns all registered profile names, sorted.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// line is one physical line of text. end includes the trailing newline, so
// consecutive lines tile the text exactly.
type line struct {
	start, end int
	text       string // line content without the trailing newline
}

func (l line) blank() bool {
	return strings.TrimSpace(l.text) == ""
}

// splitLines cuts text into newline-delimited lines with absolute offsets.
func splitLines(text string) []line {
	if text == "" {
		return nil
	}
	var out []line
	start := 0
	for {
		i := strings.IndexByte(text[start:], '\n')
		if i < 0 {
			out = append(out, line{start: start, end: len(text), text: text[start:]})
			break
		}
		end := start + i + 1
		out = append(out, line{start: start, end: end, text: text[start : end-1]})
		if end == len(text) {
			break
		}
		start = end
	}
	return out
}

// boundary marks the start of a new span at a byte offset, optionally
// carrying a heading captured from the boundary line.
type boundary struct {
	at      int
	heading string
}

// spansFromBoundaries builds a gapless partition of [0, len(text)) from
// sorted interior boundaries. Boundaries at 0 contribute only their heading.
func spansFromBoundaries(text string, bounds []boundary) []Span {
	if text == "" {
		return nil
	}

	spans := []Span{{Start: 0}}
	for _, b := range bounds {
		if b.at <= 0 {
			spans[0].Heading = b.heading
			continue
		}
		if b.at >= len(text) || b.at <= spans[len(spans)-1].Start {
			continue
		}
		spans[len(spans)-1].End = b.at
		spans = append(spans, Span{Start: b.at, Heading: b.heading})
	}
	spans[len(spans)-1].End = len(text)

	for i := range spans {
		spans[i].Index = i
	}
	return spans
}

// mergeShort coalesces spans shorter than min into a neighbour so the
// partition stays gapless: a short span joins the span before it, or the one
// after it when it is first. Headings of absorbed spans are dropped; the
// surviving span keeps its own.
func mergeShort(spans []Span, min int) []Span {
	if min <= 0 || len(spans) < 2 {
		return spans
	}

	out := spans[:0]
	for _, s := range spans {
		if len(out) > 0 && s.End-s.Start < min {
			out[len(out)-1].End = s.End
			continue
		}
		out = append(out, s)
	}

	// The first span may itself be short; fold it forward.
	if len(out) > 1 && out[0].End-out[0].Start < min {
		out[1].Start = out[0].Start
		out = out[1:]
	}

	for i := range out {
		out[i].Index = i
	}
	return out
}
