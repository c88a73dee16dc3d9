package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/matthewbaird/strata/internal/event"
	"github.com/matthewbaird/strata/internal/maintenance"
)

// MaintenanceHandler implements the maintenance request endpoints.
type MaintenanceHandler struct {
	triage *maintenance.Triage
	recorder
}

// NewMaintenanceHandler creates a new MaintenanceHandler.
func NewMaintenanceHandler(triage *maintenance.Triage, rec event.Recorder, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{triage: triage, recorder: newRecorder(rec, logger)}
}

// Submit triages a maintenance request and issues a ticket.
// POST /v1/maintenance/requests
func (h *MaintenanceHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req maintenance.Request
	if err := decodeJSON(w, r, &req); err != nil {
		invalidBody(w, err)
		return
	}
	tk, err := h.triage.Submit(req)
	if err != nil {
		domainErrorToHTTP(w, h.log, err)
		return
	}

	h.recordEvent(r.Context(), event.NewTicketIssued(event.TicketIssuedPayload{
		TicketNumber:     tk.TicketNumber,
		RequestType:      tk.RequestDetails.Type,
		Urgency:          tk.Urgency,
		RequestedUrgency: tk.RequestedUrgency,
		AutoEscalated:    tk.AutoEscalated,
		UnitNumber:       tk.RequestDetails.UnitNumber,
		Contractor:       tk.AssignedContractor.Company,
		SubmittedAt:      tk.SubmittedAt,
	}))
	writeJSON(w, http.StatusOK, tk)
}

// Query returns reference data: one request type (?type=), the contractor
// registry (?contractors=true), or the capabilities document.
// GET /v1/maintenance/requests
func (h *MaintenanceHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if t := q.Get("type"); t != "" {
		info, err := h.triage.Info(t)
		if err != nil {
			domainErrorToHTTP(w, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
		return
	}
	if all, _ := strconv.ParseBool(q.Get("contractors")); all {
		writeJSON(w, http.StatusOK, map[string]any{"contractors": h.triage.Contractors()})
		return
	}
	writeJSON(w, http.StatusOK, h.triage.Describe(r.URL.Path))
}
