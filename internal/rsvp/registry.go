// Package rsvp allocates event RSVPs against capacity and keeps the
// process-wide event registry.
package rsvp

import (
	"fmt"
	"sync"
	"time"

	"github.com/matthewbaird/strata/internal/reference"
	"github.com/matthewbaird/strata/internal/validate"
)

// Allocation statuses.
const (
	StatusConfirmed  = "confirmed"
	StatusWaitlisted = "waitlisted"
)

// Event is a point-in-time copy of a registry entry.
type Event struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DateTime     time.Time `json:"date_time"`
	Location     string    `json:"location"`
	MaxCapacity  int       `json:"max_capacity"`
	CurrentRSVPs int       `json:"current_rsvps"`
	Type         string    `json:"type"`
	RequiresRSVP bool      `json:"requires_rsvp"`
	Description  string    `json:"description"`
	Waitlisted   int       `json:"waitlisted"`
}

// Remaining is the number of unallocated spots.
func (e Event) Remaining() int {
	return max(0, e.MaxCapacity-e.CurrentRSVPs)
}

// Allocation is the outcome of one reservation attempt.
type Allocation struct {
	Status        string
	QueuePosition int
	Event         Event
}

// WaitlistEntry records a request that did not fit.
type WaitlistEntry struct {
	ResidentID string
	Attendees  int
	Position   int
	At         time.Time
}

type slot struct {
	mu       sync.Mutex
	ev       Event
	waitlist []WaitlistEntry
}

// Registry owns every Event. The set of events is fixed at construction, so
// the map itself is read-only; each event is guarded by its own mutex, which
// serialises check-and-increment per event while leaving events independent.
type Registry struct {
	slots map[string]*slot
	order []string
}

// NewRegistry seeds a registry from reference data.
func NewRegistry(seeds []reference.EventSeed) (*Registry, error) {
	r := &Registry{slots: make(map[string]*slot, len(seeds))}
	for _, s := range seeds {
		if _, dup := r.slots[s.ID]; dup {
			return nil, fmt.Errorf("duplicate event %q", s.ID)
		}
		if s.MaxCapacity <= 0 || s.CurrentRSVPs < 0 || s.CurrentRSVPs > s.MaxCapacity {
			return nil, fmt.Errorf("event %q: invalid occupancy %d/%d", s.ID, s.CurrentRSVPs, s.MaxCapacity)
		}
		at, err := time.Parse(time.RFC3339, s.DateTime)
		if err != nil {
			return nil, fmt.Errorf("event %q: parsing date_time: %w", s.ID, err)
		}
		r.slots[s.ID] = &slot{ev: Event{
			ID:           s.ID,
			Name:         s.Name,
			DateTime:     at,
			Location:     s.Location,
			MaxCapacity:  s.MaxCapacity,
			CurrentRSVPs: s.CurrentRSVPs,
			Type:         s.Type,
			RequiresRSVP: s.RequiresRSVP,
			Description:  s.Description,
		}}
		r.order = append(r.order, s.ID)
	}
	return r, nil
}

// IDs lists event ids in seed order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns a snapshot of one event.
func (r *Registry) Get(id string) (Event, error) {
	s, ok := r.slots[id]
	if !ok {
		return Event{}, validate.NotFound("event", id, r.IDs())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ev, nil
}

// List returns snapshots of every event in seed order.
func (r *Registry) List() []Event {
	out := make([]Event, 0, len(r.order))
	for _, id := range r.order {
		ev, _ := r.Get(id)
		out = append(out, ev)
	}
	return out
}

// Reserve atomically allocates attendees spots on event id. If they fit, the
// occupancy grows by exactly attendees; otherwise the request is waitlisted at
// position (current + attendees - capacity) and occupancy is untouched.
func (r *Registry) Reserve(id, residentID string, attendees int, at time.Time) (Allocation, error) {
	if attendees <= 0 {
		return Allocation{}, validate.Invalid("attendee_count", "must be at least 1, got %d", attendees)
	}
	s, ok := r.slots[id]
	if !ok {
		return Allocation{}, validate.NotFound("event", id, r.IDs())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if attendees <= s.ev.MaxCapacity-s.ev.CurrentRSVPs {
		s.ev.CurrentRSVPs += attendees
		return Allocation{Status: StatusConfirmed, Event: s.ev}, nil
	}

	pos := s.ev.CurrentRSVPs + attendees - s.ev.MaxCapacity
	s.waitlist = append(s.waitlist, WaitlistEntry{
		ResidentID: residentID,
		Attendees:  attendees,
		Position:   pos,
		At:         at,
	})
	s.ev.Waitlisted = len(s.waitlist)
	return Allocation{Status: StatusWaitlisted, QueuePosition: pos, Event: s.ev}, nil
}

// Waitlist returns a copy of the waitlisted requests for an event in arrival order.
func (r *Registry) Waitlist(id string) ([]WaitlistEntry, error) {
	s, ok := r.slots[id]
	if !ok {
		return nil, validate.NotFound("event", id, r.IDs())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WaitlistEntry, len(s.waitlist))
	copy(out, s.waitlist)
	return out, nil
}
