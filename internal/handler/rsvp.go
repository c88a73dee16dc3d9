package handler

import (
	"log/slog"
	"net/http"

	"github.com/matthewbaird/strata/internal/event"
	"github.com/matthewbaird/strata/internal/rsvp"
)

// RSVPHandler implements the event and RSVP endpoints.
type RSVPHandler struct {
	alloc *rsvp.Allocator
	recorder
}

// NewRSVPHandler creates a new RSVPHandler.
func NewRSVPHandler(alloc *rsvp.Allocator, rec event.Recorder, logger *slog.Logger) *RSVPHandler {
	return &RSVPHandler{alloc: alloc, recorder: newRecorder(rec, logger)}
}

// Submit allocates an RSVP, confirming or waitlisting it.
// POST /v1/events/rsvp
func (h *RSVPHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req rsvp.Request
	if err := decodeJSON(w, r, &req); err != nil {
		invalidBody(w, err)
		return
	}
	c, err := h.alloc.Submit(req)
	if err != nil {
		domainErrorToHTTP(w, h.log, err)
		return
	}

	p := event.RSVPPayload{
		ConfirmationNumber: c.ConfirmationNumber,
		EventID:            c.EventDetails.EventID,
		EventName:          c.EventDetails.EventName,
		ResidentID:         c.RSVPDetails.ResidentID,
		Attendees:          c.RSVPDetails.AttendeeCount,
		MaxCapacity:        c.CapacityInfo.TotalCapacity,
		CurrentRSVPs:       c.CapacityInfo.CurrentRSVPs,
		RemainingSpots:     c.CapacityInfo.RemainingSpots,
		Waitlisted:         c.CapacityInfo.Waitlisted,
		SubmittedAt:        c.SubmittedAt,
	}
	if c.Status == rsvp.StatusWaitlisted {
		p.QueuePosition = *c.QueuePosition
		h.recordEvent(r.Context(), event.NewRSVPWaitlisted(p))
	} else {
		h.recordEvent(r.Context(), event.NewRSVPConfirmed(p))
	}
	writeJSON(w, http.StatusOK, c)
}

// Describe documents the RSVP payload and lists the events.
// GET /v1/events/rsvp
func (h *RSVPHandler) Describe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.alloc.Describe(r.URL.Path))
}

// Events lists every event, or one with ?event_id=.
// GET /v1/events
func (h *RSVPHandler) Events(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("event_id"); id != "" {
		v, err := h.alloc.Lookup(id)
		if err != nil {
			domainErrorToHTTP(w, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": h.alloc.Events()})
}
