package events

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/core/ports/driven"
)

// Ensure Emitter implements the interface.
var _ driven.EventSink = (*Emitter)(nil)

// Emitter fans one event out to every configured sink. A failing sink is
// logged and skipped; the others still receive the event.
type Emitter struct {
	sinks  []driven.EventSink
	logger *zap.Logger
}

// NewEmitter creates a fan-out emitter. Nil sinks are dropped.
func NewEmitter(logger *zap.Logger, sinks ...driven.EventSink) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	kept := make([]driven.EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Emitter{sinks: kept, logger: logger}
}

// Name returns the joined sink identifiers.
func (e *Emitter) Name() string {
	names := make([]string, len(e.sinks))
	for i, s := range e.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// Emit delivers the event to every sink, best-effort.
func (e *Emitter) Emit(ctx context.Context, event domain.Event) error {
	for _, sink := range e.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			e.logger.Warn("sink delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("type", event.Type),
				zap.Error(err))
		}
	}
	return nil
}
