package handler

import (
	"context"
	"log/slog"

	"github.com/matthewbaird/strata/internal/event"
)

// recorder records domain events on behalf of a handler.
type recorder struct {
	rec event.Recorder
	log *slog.Logger
}

func newRecorder(rec event.Recorder, logger *slog.Logger) recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return recorder{rec: rec, log: logger}
}

// recordEvent records a domain event if a recorder is configured.
// Errors are logged but do not fail the request: event recording is
// best-effort and runs detached from the request's cancellation.
func (r recorder) recordEvent(ctx context.Context, evt event.DomainEvent) {
	if r.rec == nil {
		return
	}
	if err := r.rec.Record(context.WithoutCancel(ctx), evt); err != nil {
		r.log.Warn("event recording failed",
			slog.String("event_type", evt.EventType),
			slog.String("error", err.Error()))
	}
}
