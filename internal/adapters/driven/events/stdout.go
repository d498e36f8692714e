package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/core/ports/driven"
)

// Ensure StdoutSink implements the interface.
var _ driven.EventSink = (*StdoutSink)(nil)

// StdoutSink writes one JSON line per event, suitable for piping into log
// shippers.
type StdoutSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdoutSink creates a sink writing to standard output.
func NewStdoutSink() *StdoutSink {
	return &StdoutSink{out: os.Stdout}
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *StdoutSink {
	return &StdoutSink{out: w}
}

// Name returns the sink identifier.
func (s *StdoutSink) Name() string { return "stdout" }

// Emit writes the event as a single JSON line.
func (s *StdoutSink) Emit(_ context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.out, string(data)); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}
