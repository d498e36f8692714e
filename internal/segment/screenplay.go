package segment

import (
	"sort"
	"strings"
)

// screenplayProfile splits at slugline scene headings (INT./EXT./EST.
// conventions) and at blank-line runs. Transition lines (CUT TO: and
// friends) are boundary hints: the scene break falls after them so the
// transition stays with the scene it closes. Character-cue lines are
// tracked and surfaced as the span label so dialogue blocks stay
// attributable to their speaker.
type screenplayProfile struct{}

// minScreenplaySpan folds stray fragments, such as a lone transition line,
// into the preceding scene.
const minScreenplaySpan = 20

func (p *screenplayProfile) Name() string { return "screenplay" }

func (p *screenplayProfile) Segment(text string) []Span {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}

	headings := map[int]string{}
	at := map[int]bool{}
	seenContent := false
	blank := false
	afterSlug := false

	for i, l := range lines {
		trimmed := strings.TrimSpace(l.text)
		if trimmed == "" {
			blank = true
			continue
		}

		switch {
		case isSlugline(trimmed):
			if seenContent {
				at[l.start] = true
			}
			headings[l.start] = trimmed
		case blank && seenContent && !afterSlug:
			// The first block after a slugline is that scene's action;
			// splitting there would orphan the heading.
			at[l.start] = true
		}

		if isTransition(trimmed) && i+1 < len(lines) {
			at[lines[i+1].start] = true
		}

		blank = false
		seenContent = true
		afterSlug = isSlugline(trimmed)
	}

	offsets := make([]int, 0, len(at))
	for o := range at {
		offsets = append(offsets, o)
	}
	sort.Ints(offsets)

	bounds := make([]boundary, 0, len(offsets)+1)
	if h, ok := headings[0]; ok {
		bounds = append(bounds, boundary{at: 0, heading: h})
	}
	for _, o := range offsets {
		bounds = append(bounds, boundary{at: o, heading: headings[o]})
	}

	spans := mergeShort(spansFromBoundaries(text, bounds), minScreenplaySpan)
	for i := range spans {
		if spans[i].Heading == "" {
			if cue, ok := characterCue(text[spans[i].Start:spans[i].End]); ok {
				spans[i].Heading = cue
			}
		}
	}
	return spans
}

// sluglinePrefixes are the scene-heading markers: interior, exterior,
// establishing, and the combined interior/exterior forms.
var sluglinePrefixes = []string{"INT.", "EXT.", "EST.", "INT./EXT.", "I/E."}

func isSlugline(line string) bool {
	for _, prefix := range sluglinePrefixes {
		if strings.HasPrefix(line, prefix) && len(strings.TrimSpace(strings.TrimPrefix(line, prefix))) > 0 {
			return true
		}
	}
	return false
}

// isTransition matches editing transitions such as "CUT TO:" or "FADE OUT:".
func isTransition(line string) bool {
	if !strings.HasSuffix(line, ":") || len(line) > 24 {
		return false
	}
	body := strings.TrimSuffix(line, ":")
	if body == "" || body != strings.ToUpper(body) {
		return false
	}
	for _, r := range body {
		if !(r == ' ' || r == '.' || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return strings.HasSuffix(body, "TO") || strings.HasPrefix(body, "FADE") || strings.HasPrefix(body, "DISSOLVE")
}

// characterCue reports the speaker when a span opens with a character cue:
// a short all-capitals line immediately followed by dialogue.
func characterCue(span string) (string, bool) {
	first, rest, found := strings.Cut(span, "\n")
	if !found {
		return "", false
	}
	next, _, _ := strings.Cut(rest, "\n")
	if strings.TrimSpace(next) == "" {
		return "", false
	}

	cue := strings.TrimSpace(first)
	// Parenthetical extensions like (V.O.) or (CONT'D) are part of the cue.
	if i := strings.IndexByte(cue, '('); i > 0 {
		cue = strings.TrimSpace(cue[:i])
	}
	if cue == "" || len(cue) > 40 || cue != strings.ToUpper(cue) || isSlugline(cue) || isTransition(strings.TrimSpace(first)) {
		return "", false
	}
	hasLetter := false
	for _, r := range cue {
		switch {
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r == ' ' || r == '.' || r == '\'' || (r >= '0' && r <= '9'):
		default:
			return "", false
		}
	}
	if !hasLetter {
		return "", false
	}
	return cue, true
}
