package driven

import (
	"context"

	"github.com/archivista/lore-ingest/internal/core/domain"
)

// EventSink receives fire-and-forget run notifications. Delivery is
// best-effort: a sink error is logged by the emitter and never fails or
// rolls back the ingest that produced the event.
type EventSink interface {
	// Name returns the sink identifier for logging.
	Name() string

	// Emit delivers one event.
	Emit(ctx context.Context, event domain.Event) error
}
