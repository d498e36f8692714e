package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivista/lore-ingest/internal/core/domain"
)

func sampleEvent() domain.Event {
	return domain.Event{
		Type:        domain.EventDocumentIngested,
		WorkID:      "w-1",
		Path:        "/inbox/story.txt",
		Title:       "Story",
		Fingerprint: "abc123",
		Sizes:       &domain.SegmentCounts{Chars: 100, Scenes: 2, Chunks: 3},
		Profile:     "default",
		RunID:       "r-1",
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestStdoutSink_WritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	require.NoError(t, sink.Emit(context.Background(), sampleEvent()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "document.ingested", decoded["type"])
	assert.Equal(t, "w-1", decoded["work_id"])

	sizes, ok := decoded["sizes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), sizes["scenes"])
}

func TestStdoutSink_OmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	event := domain.Event{
		Type:      domain.EventDocumentFailed,
		Path:      "/inbox/bad.bin",
		Reason:    "unsupported file type",
		Stage:     domain.StageAdmission,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, sink.Emit(context.Background(), event))

	line := buf.String()
	assert.NotContains(t, line, "work_id")
	assert.NotContains(t, line, "sizes")
	assert.Contains(t, line, `"stage":"admission"`)
}

func TestWebhookSink_Delivers(t *testing.T) {
	var (
		mu       sync.Mutex
		received []domain.Event
		gotAuth  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e domain.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		mu.Lock()
		received = append(received, e)
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(WebhookConfig{URL: srv.URL, Auth: "Bearer tok"})
	require.NoError(t, err)

	require.NoError(t, sink.Emit(context.Background(), sampleEvent()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "w-1", received[0].WorkID)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestWebhookSink_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(WebhookConfig{URL: srv.URL})
	require.NoError(t, err)

	err = sink.Emit(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "503")
}

func TestWebhookSink_RequiresURL(t *testing.T) {
	_, err := NewWebhookSink(WebhookConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// flakySink fails a fixed number of times, then records events.
type flakySink struct {
	name     string
	failures int
	events   []domain.Event
}

func (s *flakySink) Name() string { return s.name }

func (s *flakySink) Emit(_ context.Context, event domain.Event) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("sink down")
	}
	s.events = append(s.events, event)
	return nil
}

func TestEmitter_FanOutContinuesPastFailures(t *testing.T) {
	bad := &flakySink{name: "bad", failures: 1}
	good := &flakySink{name: "good"}
	emitter := NewEmitter(nil, bad, nil, good)

	require.NoError(t, emitter.Emit(context.Background(), sampleEvent()))

	assert.Empty(t, bad.events)
	assert.Len(t, good.events, 1)
	assert.Equal(t, "bad+good", emitter.Name())
}
