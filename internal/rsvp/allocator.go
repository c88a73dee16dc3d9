package rsvp

import (
	"fmt"
	"strings"
	"time"

	"github.com/matthewbaird/strata/internal/ident"
	"github.com/matthewbaird/strata/internal/validate"
)

// Request is an RSVP as submitted. AttendeeCount defaults to 1 when absent.
type Request struct {
	EventID             string `json:"event_id"`
	ResidentID          string `json:"resident_id"`
	ResidentName        string `json:"resident_name"`
	Email               string `json:"email"`
	AttendeeCount       *int   `json:"attendee_count,omitempty"`
	DietaryRequirements string `json:"dietary_requirements,omitempty"`
}

// Confirmation is returned for every accepted RSVP, confirmed or waitlisted.
type Confirmation struct {
	Status             string       `json:"status"`
	ConfirmationNumber string       `json:"confirmation_number"`
	EventDetails       EventDetails `json:"event_details"`
	RSVPDetails        RSVPDetails  `json:"rsvp_details"`
	CapacityInfo       CapacityInfo `json:"capacity_info"`
	QueuePosition      *int         `json:"queue_position"`
	WaitlistMessage    string       `json:"waitlist_message,omitempty"`
	NextSteps          string       `json:"next_steps"`
	SubmittedAt        time.Time    `json:"submitted_at"`
}

// EventDetails describes the event the RSVP is for.
type EventDetails struct {
	EventID     string    `json:"event_id"`
	EventName   string    `json:"event_name"`
	DateTime    time.Time `json:"date_time"`
	Location    string    `json:"location"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
}

// RSVPDetails echoes the resident's submission.
type RSVPDetails struct {
	ResidentName        string `json:"resident_name"`
	ResidentID          string `json:"resident_id"`
	Email               string `json:"email"`
	AttendeeCount       int    `json:"attendee_count"`
	DietaryRequirements string `json:"dietary_requirements"`
}

// CapacityInfo is the capacity snapshot taken inside the allocation.
type CapacityInfo struct {
	TotalCapacity  int `json:"total_capacity"`
	CurrentRSVPs   int `json:"current_rsvps"`
	RemainingSpots int `json:"remaining_spots"`
	YourSpots      int `json:"your_spots"`
	Waitlisted     int `json:"waitlisted"`
}

// Allocator validates RSVPs and allocates them on the registry.
type Allocator struct {
	registry *Registry
	now      func() time.Time
}

// NewAllocator creates an Allocator. now may be nil.
func NewAllocator(registry *Registry, now func() time.Time) *Allocator {
	if now == nil {
		now = time.Now
	}
	return &Allocator{registry: registry, now: now}
}

// Registry exposes the underlying registry for read-only queries.
func (a *Allocator) Registry() *Registry { return a.registry }

// Validate checks every field before the registry is consulted and returns
// the attendee count to allocate.
func (a *Allocator) Validate(req Request) (int, error) {
	err := validate.Required(map[string]*string{
		"event_id":      &req.EventID,
		"resident_id":   &req.ResidentID,
		"resident_name": &req.ResidentName,
		"email":         &req.Email,
	}, "event_id", "resident_id", "resident_name", "email")
	if err != nil {
		return 0, err
	}
	if err := validate.Email("email", req.Email); err != nil {
		return 0, err
	}
	attendees := 1
	if req.AttendeeCount != nil {
		attendees = *req.AttendeeCount
	}
	if attendees < 1 {
		return 0, validate.Invalid("attendee_count", "must be at least 1, got %d", attendees)
	}
	return attendees, nil
}

// Submit validates req and allocates it.
func (a *Allocator) Submit(req Request) (*Confirmation, error) {
	attendees, err := a.Validate(req)
	if err != nil {
		return nil, err
	}
	now := a.now().UTC()
	alloc, err := a.registry.Reserve(req.EventID, req.ResidentID, attendees, now)
	if err != nil {
		return nil, err
	}

	ev := alloc.Event
	dietary := strings.TrimSpace(req.DietaryRequirements)
	if dietary == "" {
		dietary = "None specified"
	}
	c := &Confirmation{
		Status:             alloc.Status,
		ConfirmationNumber: ident.Scoped("EVT", ev.ID, now),
		EventDetails: EventDetails{
			EventID:     ev.ID,
			EventName:   ev.Name,
			DateTime:    ev.DateTime,
			Location:    ev.Location,
			Type:        ev.Type,
			Description: ev.Description,
		},
		RSVPDetails: RSVPDetails{
			ResidentName:        req.ResidentName,
			ResidentID:          req.ResidentID,
			Email:               req.Email,
			AttendeeCount:       attendees,
			DietaryRequirements: dietary,
		},
		CapacityInfo: CapacityInfo{
			TotalCapacity:  ev.MaxCapacity,
			CurrentRSVPs:   ev.CurrentRSVPs,
			RemainingSpots: ev.Remaining(),
			YourSpots:      attendees,
			Waitlisted:     ev.Waitlisted,
		},
		SubmittedAt: now,
	}
	if alloc.Status == StatusWaitlisted {
		pos := alloc.QueuePosition
		c.QueuePosition = &pos
		c.WaitlistMessage = fmt.Sprintf("You are #%d on the waitlist. We'll notify you if spots become available.", pos)
		c.NextSteps = "We will contact you if spots become available. Thank you for your interest."
	} else {
		c.NextSteps = "You will receive a confirmation email shortly. Please arrive 15 minutes early."
	}
	return c, nil
}

// EventView is an event as reported by the query operation.
type EventView struct {
	Event          Event `json:"event"`
	AvailableSpots int   `json:"available_spots"`
	RSVPRequired   bool  `json:"rsvp_required"`
}

// Lookup returns one event with its computed availability.
func (a *Allocator) Lookup(id string) (*EventView, error) {
	ev, err := a.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return &EventView{Event: ev, AvailableSpots: ev.Remaining(), RSVPRequired: ev.RequiresRSVP}, nil
}

// Events returns every event with its computed availability.
func (a *Allocator) Events() []EventView {
	evs := a.registry.List()
	out := make([]EventView, 0, len(evs))
	for _, ev := range evs {
		out = append(out, EventView{Event: ev, AvailableSpots: ev.Remaining(), RSVPRequired: ev.RequiresRSVP})
	}
	return out
}

// Capabilities documents the RSVP payload.
type Capabilities struct {
	Endpoint        string            `json:"endpoint"`
	Methods         map[string]string `json:"methods"`
	Parameters      map[string]string `json:"parameters"`
	AvailableEvents []EventView       `json:"available_events"`
	Example         Request           `json:"example"`
}

// Describe returns the capabilities document for the RSVP endpoint.
func (a *Allocator) Describe(endpoint string) Capabilities {
	attendees := 2
	ids := a.registry.IDs()
	example := Request{
		ResidentID:          "15B",
		ResidentName:        "Jane Citizen",
		Email:               "jane@example.com",
		AttendeeCount:       &attendees,
		DietaryRequirements: "Vegetarian",
	}
	if len(ids) > 0 {
		example.EventID = ids[0]
	}
	return Capabilities{
		Endpoint: endpoint,
		Methods: map[string]string{
			"GET":  "List all events or get specific event details (?event_id=EVENT_ID)",
			"POST": "Submit RSVP for an event",
		},
		Parameters: map[string]string{
			"event_id":             "string (required) - Event identifier",
			"resident_id":          "string (required) - Unit number or resident ID",
			"resident_name":        "string (required) - Full name",
			"email":                "string (required) - Contact email",
			"attendee_count":       "number (optional, default: 1) - Number of attendees",
			"dietary_requirements": "string (optional) - Dietary needs or restrictions",
		},
		AvailableEvents: a.Events(),
		Example:         example,
	}
}
