package eventbus

import (
	"context"
	"log/slog"

	"github.com/matthewbaird/strata/internal/event"
)

// LogConsumer logs all domain events for observability.
type LogConsumer struct {
	log *slog.Logger
}

func NewLogConsumer(logger *slog.Logger) *LogConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogConsumer{log: logger}
}

func (c *LogConsumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	entities := make([]string, len(evt.AffectedEntities))
	for i, ref := range evt.AffectedEntities {
		entities[i] = ref.EntityType + ":" + ref.EntityID
	}
	level := slog.LevelInfo
	if evt.Weight == "critical" {
		level = slog.LevelWarn
	}
	c.log.LogAttrs(ctx, level, "domain event",
		slog.String("event_type", evt.EventType),
		slog.String("category", evt.Category),
		slog.String("weight", evt.Weight),
		slog.String("summary", evt.Summary),
		slog.Any("entities", entities))
	return nil
}
