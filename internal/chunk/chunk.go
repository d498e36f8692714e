// Package chunk slides retrieval windows over scene spans. Chunks never
// cross a scene boundary; consecutive chunks within a scene overlap by
// window minus stride bytes.
package chunk

import (
	"fmt"

	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/segment"
)

// Default window geometry, matching the coordinator boundary defaults.
const (
	DefaultWindow = 512
	DefaultStride = 384
)

// Span is one retrieval window. Offsets are absolute byte offsets into the
// canonical text; SceneIndex links back to the owning scene span.
type Span struct {
	Index      int
	SceneIndex int
	Start      int
	End        int
}

// Windows chunks every scene with a sliding window of length window
// advancing by stride. Windows are clipped to the scene boundary; the final
// window may be shorter than window but never empty, and a scene shorter
// than window yields exactly one chunk spanning the whole scene.
func Windows(scenes []segment.Span, window, stride int) ([]Span, error) {
	if window <= 0 || stride <= 0 {
		return nil, fmt.Errorf("%w: window and stride must be positive", domain.ErrInvalidInput)
	}
	if stride > window {
		return nil, fmt.Errorf("%w: stride %d exceeds window %d", domain.ErrInvalidInput, stride, window)
	}

	var out []Span
	for _, s := range scenes {
		for start := s.Start; start < s.End; {
			end := start + window
			if end > s.End {
				end = s.End
			}
			out = append(out, Span{
				Index:      len(out),
				SceneIndex: s.Index,
				Start:      start,
				End:        end,
			})
			if end == s.End {
				break
			}
			start += stride
		}
	}
	return out, nil
}
