// Package event defines the domain events the evaluators emit and files
// them into per-entity activity feeds.
package event

import (
	"context"
	"fmt"

	"github.com/matthewbaird/strata/internal/activity"
	"github.com/matthewbaird/strata/internal/types"
)

// Recorder persists a domain event.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher hands a recorded event to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// ActivityRecorder files each event under every unit, event, resident,
// ticket, document or calculation it names, then publishes it. pub may be nil.
type ActivityRecorder struct {
	store activity.Store
	pub   Publisher
}

// NewActivityRecorder creates an ActivityRecorder. pub may be nil.
func NewActivityRecorder(store activity.Store, pub Publisher) *ActivityRecorder {
	return &ActivityRecorder{store: store, pub: pub}
}

// Entries indexes evt under each referenced entity that has an id. An RSVP
// yields one entry for the event and one for the resident; a ticket yields
// one for the ticket and one for the unit.
func Entries(evt DomainEvent) []types.ActivityEntry {
	var out []types.ActivityEntry
	for _, ref := range evt.AffectedEntities {
		if ref.EntityID == "" {
			continue
		}
		out = append(out, types.ActivityEntry{
			EventID:           evt.ID,
			EventType:         evt.EventType,
			OccurredAt:        evt.OccurredAt,
			IndexedEntityType: ref.EntityType,
			IndexedEntityID:   ref.EntityID,
			EntityRole:        ref.Role,
			SourceRefs:        evt.AffectedEntities,
			Summary:           evt.Summary,
			Category:          evt.Category,
			Weight:            evt.Weight,
			Polarity:          evt.Polarity,
			Payload:           evt.Payload,
		})
	}
	return out
}

// Record writes evt's entries and publishes it. An event that names no
// entity, or an entity no feed can be requested for, is rejected unwritten.
func (r *ActivityRecorder) Record(ctx context.Context, evt DomainEvent) error {
	entries := Entries(evt)
	if len(entries) == 0 {
		return fmt.Errorf("%s %s names no entity", evt.EventType, evt.ID)
	}
	for _, e := range entries {
		if err := activity.CheckEntityType(e.IndexedEntityType); err != nil {
			return fmt.Errorf("%s %s: %w", evt.EventType, evt.ID, err)
		}
	}
	if err := r.store.WriteEntries(ctx, entries); err != nil {
		return fmt.Errorf("recording %s: %w", evt.EventType, err)
	}
	if r.pub != nil {
		r.pub.Publish(ctx, evt)
	}
	return nil
}
