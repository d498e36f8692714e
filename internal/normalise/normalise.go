// Package normalise converts raw document bytes into canonical text and
// computes the content fingerprint used as the pipeline idempotency key.
//
// The canonical form is the single addressing space for all scene and chunk
// offsets, so the transformation must be deterministic: byte-identical input
// always yields byte-identical canonical text and the same fingerprint,
// regardless of platform or source encoding.
package normalise

import (
	"crypto/sha1" //nolint:gosec // fingerprint, not a security boundary
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/archivista/lore-ingest/internal/core/domain"
)

// Result is the output of normalisation.
type Result struct {
	// Text is the canonical text: valid UTF-8, LF line endings, no trailing
	// whitespace per line, exactly one trailing newline (unless empty).
	Text string

	// Fingerprint is the SHA-1 hex digest of Text.
	Fingerprint string

	// CharCount is len(Text).
	CharCount int
}

// Canonical normalises raw bytes into canonical text.
//
// Rules, applied in order: decode (UTF-8, falling back to Windows-1252),
// strip NULs and a leading BOM, unify CRLF/CR to LF, replace a small set of
// typographic characters with plain equivalents, strip trailing whitespace
// per line, and guarantee exactly one trailing newline.
func Canonical(raw []byte) (*Result, error) {
	text, err := decode(raw)
	if err != nil {
		return nil, err
	}

	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\x00", "")
	text = replaceLineEndings(text)
	text = typographic.Replace(text)
	text = stripTrailingSpace(text)

	if text != "" {
		text = strings.TrimRight(text, "\n") + "\n"
	}

	sum := sha1.Sum([]byte(text)) //nolint:gosec // idempotency key
	return &Result{
		Text:        text,
		Fingerprint: hex.EncodeToString(sum[:]),
		CharCount:   len(text),
	}, nil
}

// Fingerprint computes the SHA-1 hex digest of already-canonical text.
// Chunk fingerprints use the same hash family as the document fingerprint.
func Fingerprint(text string) string {
	sum := sha1.Sum([]byte(text)) //nolint:gosec // idempotency key
	return hex.EncodeToString(sum[:])
}

// typographic maps smart punctuation to plain ASCII equivalents without
// altering semantic content.
var typographic = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"–", "-", // en dash
	"—", "-", // em dash
	"…", "...", // ellipsis
	"\u00A0", " ", // no-break space
)

// replaceLineEndings converts CRLF and bare CR to LF.
func replaceLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// stripTrailingSpace removes trailing spaces and tabs from every line.
func stripTrailingSpace(s string) string {
	if s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// decode interprets raw bytes as text. Valid UTF-8 is taken as-is; anything
// else is treated as Windows-1252. Bytes that are undefined in Windows-1252
// make the input undecodable.
func decode(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range raw {
		r, ok := cp1252[c]
		if !ok {
			return "", domain.ErrEncoding
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// cp1252 maps the Windows-1252 0x80-0x9F block to Unicode. All other bytes
// are identical to Latin-1. The five undefined code points are absent so
// they surface as encoding errors.
var cp1252 = func() map[byte]rune {
	m := make(map[byte]rune, 256)
	for i := 0; i < 256; i++ {
		if i < 0x80 || i > 0x9F {
			m[byte(i)] = rune(i)
		}
	}
	special := map[byte]rune{
		0x80: '€', 0x82: '‚', 0x83: 'ƒ', 0x84: '„',
		0x85: '…', 0x86: '†', 0x87: '‡', 0x88: 'ˆ',
		0x89: '‰', 0x8A: 'Š', 0x8B: '‹', 0x8C: 'Œ',
		0x8E: 'Ž', 0x91: '‘', 0x92: '’', 0x93: '“',
		0x94: '”', 0x95: '•', 0x96: '–', 0x97: '—',
		0x98: '˜', 0x99: '™', 0x9A: 'š', 0x9B: '›',
		0x9C: 'œ', 0x9E: 'ž', 0x9F: 'Ÿ',
	}
	for b, r := range special {
		m[b] = r
	}
	return m
}()
