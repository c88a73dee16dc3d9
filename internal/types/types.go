// Package types holds the value types shared between the event, activity and
// handler layers.
package types

import (
	"encoding/json"
	"time"
)

// Entity kinds referenced by domain events and indexed by the activity store.
const (
	EntityCalculation = "calculation"
	EntityUnitType    = "unit_type"
	EntityTicket      = "ticket"
	EntityUnit        = "unit"
	EntityEvent       = "event"
	EntityResident    = "resident"
	EntityDocument    = "document"
)

// EntityKinds lists every entity kind an activity feed can be requested for.
var EntityKinds = []string{
	EntityUnit, EntityEvent, EntityResident, EntityTicket,
	EntityDocument, EntityCalculation, EntityUnitType,
}

// Activity categories, one per evaluator.
const (
	CategoryLevy        = "levy"
	CategoryMaintenance = "maintenance"
	CategoryEvent       = "event"
	CategoryDocument    = "document"
)

// Categories lists every activity category.
var Categories = []string{CategoryLevy, CategoryMaintenance, CategoryEvent, CategoryDocument}

// SourceRef identifies an entity referenced by a domain event.
type SourceRef struct {
	EntityType string `json:"entity_type"` // one of EntityKinds
	EntityID   string `json:"entity_id"`
	Role       string `json:"role"` // "subject", "target", "related", "context"
}

// ActivityEntry is a secondary index entry over the domain event log, keyed
// by a referenced entity. One event produces one entry per referenced entity.
type ActivityEntry struct {
	EventID           string          `json:"event_id"`
	EventType         string          `json:"event_type"`
	OccurredAt        time.Time       `json:"occurred_at"`
	IndexedEntityType string          `json:"indexed_entity_type"`
	IndexedEntityID   string          `json:"indexed_entity_id"`
	EntityRole        string          `json:"entity_role"`
	SourceRefs        []SourceRef     `json:"source_refs"`
	Summary           string          `json:"summary"`
	Category          string          `json:"category"` // one of Categories
	Weight            string          `json:"weight"`   // "critical", "major", "minor", "info"
	Polarity          string          `json:"polarity"` // "positive", "negative", "neutral"
	Payload           json.RawMessage `json:"payload"`
}
