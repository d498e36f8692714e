package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/segment"
)

func TestWindows_InvalidGeometry(t *testing.T) {
	scenes := []segment.Span{{Index: 0, Start: 0, End: 10}}

	_, err := Windows(scenes, 0, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Windows(scenes, 4, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Windows(scenes, 4, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWindows_ShortSceneYieldsOneChunk(t *testing.T) {
	chunks, err := Windows([]segment.Span{{Index: 0, Start: 0, End: 7}}, 512, 384)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, Span{Index: 0, SceneIndex: 0, Start: 0, End: 7}, chunks[0])
}

func TestWindows_OverlapWithinScene(t *testing.T) {
	chunks, err := Windows([]segment.Span{{Index: 0, Start: 0, End: 10}}, 4, 2)
	require.NoError(t, err)

	want := []Span{
		{Index: 0, SceneIndex: 0, Start: 0, End: 4},
		{Index: 1, SceneIndex: 0, Start: 2, End: 6},
		{Index: 2, SceneIndex: 0, Start: 4, End: 8},
		{Index: 3, SceneIndex: 0, Start: 6, End: 10},
	}
	assert.Equal(t, want, chunks)

	// Consecutive chunks overlap by window minus stride.
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, 2, chunks[i-1].End-chunks[i].Start)
	}
}

func TestWindows_FinalChunkClippedNeverEmpty(t *testing.T) {
	chunks, err := Windows([]segment.Span{{Index: 0, Start: 0, End: 5}}, 4, 4)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, Span{Index: 1, SceneIndex: 0, Start: 4, End: 5}, chunks[1])
	for _, c := range chunks {
		assert.Greater(t, c.End, c.Start)
	}
}

func TestWindows_NeverCrossSceneBoundary(t *testing.T) {
	scenes := []segment.Span{
		{Index: 0, Start: 0, End: 9},
		{Index: 1, Start: 9, End: 30},
	}
	chunks, err := Windows(scenes, 8, 6)
	require.NoError(t, err)

	for _, c := range chunks {
		s := scenes[c.SceneIndex]
		assert.GreaterOrEqual(t, c.Start, s.Start)
		assert.LessOrEqual(t, c.End, s.End)
	}

	// Chunk indices are a single 0-based sequence across scenes.
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestWindows_EmptySceneListYieldsNoChunks(t *testing.T) {
	chunks, err := Windows(nil, 512, 384)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
