package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/strata/internal/types"
)

// Event types.
const (
	TypeLevyCalculated = "levy_calculated"
	TypeTicketIssued   = "maintenance_ticket_issued"
	TypeRSVPConfirmed  = "rsvp_confirmed"
	TypeRSVPWaitlisted = "rsvp_waitlisted"
	TypeDocumentStored = "document_stored"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID               string            `json:"id"`
	EventType        string            `json:"event_type"`
	OccurredAt       time.Time         `json:"occurred_at"`
	AffectedEntities []types.SourceRef `json:"affected_entities"`
	Summary          string            `json:"summary"`
	Category         string            `json:"category"` // "levy", "maintenance", "event", "document"
	Weight           string            `json:"weight"`   // "critical", "major", "minor", "info"
	Polarity         string            `json:"polarity"` // "positive", "negative", "neutral"
	Payload          json.RawMessage   `json:"payload"`
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// ── Levy ─────────────────────────────────────────────────────────────────────

// LevyCalculatedPayload carries event-specific data for LevyCalculated.
type LevyCalculatedPayload struct {
	CalculationID string    `json:"calculation_id"`
	UnitType      string    `json:"unit_type"`
	UnitSize      float64   `json:"unit_size"`
	Floor         int       `json:"floor"`
	MonthlyLevy   float64   `json:"monthly_levy"`
	Currency      string    `json:"currency"`
	CalculatedAt  time.Time `json:"calculated_at"`
}

func NewLevyCalculated(p LevyCalculatedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeLevyCalculated,
		OccurredAt: stamp(p.CalculatedAt),
		AffectedEntities: []types.SourceRef{
			{EntityType: types.EntityCalculation, EntityID: p.CalculationID, Role: "subject"},
			{EntityType: types.EntityUnitType, EntityID: p.UnitType, Role: "context"},
		},
		Summary:  fmt.Sprintf("Levy of %.2f %s/month quoted for %.0f sqm %s", p.MonthlyLevy, p.Currency, p.UnitSize, p.UnitType),
		Category: types.CategoryLevy,
		Weight:   "info",
		Polarity: "neutral",
		Payload:  mustJSON(p),
	}
}

// ── Maintenance ──────────────────────────────────────────────────────────────

// TicketIssuedPayload carries event-specific data for TicketIssued.
type TicketIssuedPayload struct {
	TicketNumber     string    `json:"ticket_number"`
	RequestType      string    `json:"request_type"`
	Urgency          string    `json:"urgency"`
	RequestedUrgency string    `json:"requested_urgency"`
	AutoEscalated    bool      `json:"auto_escalated"`
	UnitNumber       string    `json:"unit_number"`
	Contractor       string    `json:"contractor"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// NewTicketIssued weighs emergency tickets as critical and escalations as major.
func NewTicketIssued(p TicketIssuedPayload) DomainEvent {
	weight, polarity := "minor", "neutral"
	switch {
	case p.Urgency == "emergency":
		weight, polarity = "critical", "negative"
	case p.AutoEscalated || p.Urgency == "urgent":
		weight, polarity = "major", "negative"
	}
	summary := fmt.Sprintf("%s %s request raised for unit %s, assigned to %s", p.Urgency, p.RequestType, p.UnitNumber, p.Contractor)
	if p.AutoEscalated {
		summary += fmt.Sprintf(" (escalated from %s)", p.RequestedUrgency)
	}
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeTicketIssued,
		OccurredAt: stamp(p.SubmittedAt),
		AffectedEntities: []types.SourceRef{
			{EntityType: types.EntityTicket, EntityID: p.TicketNumber, Role: "subject"},
			{EntityType: types.EntityUnit, EntityID: p.UnitNumber, Role: "target"},
		},
		Summary:  summary,
		Category: types.CategoryMaintenance,
		Weight:   weight,
		Polarity: polarity,
		Payload:  mustJSON(p),
	}
}

// ── Events ───────────────────────────────────────────────────────────────────

// RSVPPayload carries event-specific data for RSVPConfirmed and RSVPWaitlisted,
// including the capacity snapshot taken inside the allocation.
type RSVPPayload struct {
	ConfirmationNumber string    `json:"confirmation_number"`
	EventID            string    `json:"event_id"`
	EventName          string    `json:"event_name"`
	ResidentID         string    `json:"resident_id"`
	Attendees          int       `json:"attendees"`
	QueuePosition      int       `json:"queue_position,omitempty"`
	MaxCapacity        int       `json:"max_capacity"`
	CurrentRSVPs       int       `json:"current_rsvps"`
	RemainingSpots     int       `json:"remaining_spots"`
	Waitlisted         int       `json:"waitlisted"`
	SubmittedAt        time.Time `json:"submitted_at"`
}

func rsvpRefs(p RSVPPayload) []types.SourceRef {
	return []types.SourceRef{
		{EntityType: types.EntityEvent, EntityID: p.EventID, Role: "subject"},
		{EntityType: types.EntityResident, EntityID: p.ResidentID, Role: "related"},
	}
}

func NewRSVPConfirmed(p RSVPPayload) DomainEvent {
	return DomainEvent{
		ID:               newID(),
		EventType:        TypeRSVPConfirmed,
		OccurredAt:       stamp(p.SubmittedAt),
		AffectedEntities: rsvpRefs(p),
		Summary:          fmt.Sprintf("Resident %s confirmed %d for %s (%d/%d)", p.ResidentID, p.Attendees, p.EventName, p.CurrentRSVPs, p.MaxCapacity),
		Category:         types.CategoryEvent,
		Weight:           "minor",
		Polarity:         "positive",
		Payload:          mustJSON(p),
	}
}

func NewRSVPWaitlisted(p RSVPPayload) DomainEvent {
	return DomainEvent{
		ID:               newID(),
		EventType:        TypeRSVPWaitlisted,
		OccurredAt:       stamp(p.SubmittedAt),
		AffectedEntities: rsvpRefs(p),
		Summary:          fmt.Sprintf("Resident %s waitlisted at #%d for %s", p.ResidentID, p.QueuePosition, p.EventName),
		Category:         types.CategoryEvent,
		Weight:           "minor",
		Polarity:         "negative",
		Payload:          mustJSON(p),
	}
}

// ── Documents ────────────────────────────────────────────────────────────────

// DocumentStoredPayload carries event-specific data for DocumentStored.
type DocumentStoredPayload struct {
	SubmissionID string    `json:"submission_id"`
	UnitNumber   string    `json:"unit_number"`
	PetName      string    `json:"pet_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	StoredAt     time.Time `json:"stored_at"`
}

func NewDocumentStored(p DocumentStoredPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeDocumentStored,
		OccurredAt: stamp(p.StoredAt),
		AffectedEntities: []types.SourceRef{
			{EntityType: types.EntityDocument, EntityID: p.SubmissionID, Role: "subject"},
			{EntityType: types.EntityUnit, EntityID: p.UnitNumber, Role: "related"},
		},
		Summary:  fmt.Sprintf("Pet registration for %s uploaded by unit %s", p.PetName, p.UnitNumber),
		Category: types.CategoryDocument,
		Weight:   "info",
		Polarity: "positive",
		Payload:  mustJSON(p),
	}
}
