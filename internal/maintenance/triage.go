// Package maintenance triages maintenance requests: it classifies urgency,
// auto-escalates on emergency keywords, assigns the category's contractor and
// estimates cost and completion time.
package maintenance

import (
	"fmt"
	"strings"
	"time"

	"github.com/matthewbaird/strata/internal/ident"
	"github.com/matthewbaird/strata/internal/reference"
	"github.com/matthewbaird/strata/internal/validate"
)

// DefaultPreferredTime is used when the resident gives no preference.
const DefaultPreferredTime = "Any time during business hours"

// Request is a maintenance ticket draft as submitted.
type Request struct {
	RequestType   string `json:"request_type"`
	Urgency       string `json:"urgency"`
	Description   string `json:"description"`
	UnitNumber    string `json:"unit_number"`
	ContactName   string `json:"contact_name"`
	ContactPhone  string `json:"contact_phone"`
	PreferredTime string `json:"preferred_time,omitempty"`
}

// Ticket is the issued, immutable triage result.
type Ticket struct {
	TicketNumber        string         `json:"ticket_number"`
	Status              string         `json:"status"`
	Priority            string         `json:"priority"`
	Urgency             string         `json:"urgency"`
	RequestedUrgency    string         `json:"requested_urgency"`
	AutoEscalated       bool           `json:"auto_escalated"`
	MatchedKeywords     []string       `json:"matched_keywords,omitempty"`
	EstimatedResponse   string         `json:"estimated_response"`
	RequestDetails      RequestDetails `json:"request_details"`
	ContactInfo         ContactInfo    `json:"contact_info"`
	AssignedContractor  ContractorRef  `json:"assigned_contractor"`
	CostEstimate        CostEstimate   `json:"cost_estimate"`
	NextSteps           string         `json:"next_steps"`
	ImportantNotes      []string       `json:"important_notes"`
	SubmittedAt         time.Time      `json:"submitted_at"`
	EstimatedCompletion time.Time      `json:"estimated_completion"`
}

// RequestDetails echoes what was reported.
type RequestDetails struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	UnitNumber  string `json:"unit_number"`
}

// ContactInfo echoes the resident's contact details.
type ContactInfo struct {
	ResidentName  string `json:"resident_name"`
	PhoneNumber   string `json:"phone_number"`
	PreferredTime string `json:"preferred_time"`
}

// ContractorRef is the assigned contractor's contact card.
type ContractorRef struct {
	Company   string `json:"company"`
	Phone     string `json:"phone"`
	Specialty string `json:"specialty"`
}

// CostEstimate is the expected cost range for the final urgency.
type CostEstimate struct {
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

// Triage evaluates maintenance requests against the reference tables.
type Triage struct {
	tables *reference.Tables
	now    func() time.Time
}

// NewTriage creates a Triage. now may be nil.
func NewTriage(tables *reference.Tables, now func() time.Time) *Triage {
	if now == nil {
		now = time.Now
	}
	return &Triage{tables: tables, now: now}
}

// Validate checks the draft and returns it with request type and urgency
// canonicalised. Nothing is computed until every check passes.
func (t *Triage) Validate(req Request) (Request, error) {
	err := validate.Required(map[string]*string{
		"request_type":  &req.RequestType,
		"urgency":       &req.Urgency,
		"description":   &req.Description,
		"unit_number":   &req.UnitNumber,
		"contact_name":  &req.ContactName,
		"contact_phone": &req.ContactPhone,
	}, "request_type", "urgency", "description", "unit_number", "contact_name", "contact_phone")
	if err != nil {
		return Request{}, err
	}
	if req.RequestType, err = validate.OneOf("request_type", req.RequestType, t.tables.RequestTypes()); err != nil {
		return Request{}, err
	}
	if req.Urgency, err = validate.OneOf("urgency", req.Urgency, t.tables.Urgencies()); err != nil {
		return Request{}, err
	}
	if err := validate.Phone("contact_phone", req.ContactPhone); err != nil {
		return Request{}, err
	}
	if strings.TrimSpace(req.PreferredTime) == "" {
		req.PreferredTime = DefaultPreferredTime
	}
	return req, nil
}

// Submit validates req and issues a ticket.
func (t *Triage) Submit(req Request) (*Ticket, error) {
	req, err := t.Validate(req)
	if err != nil {
		return nil, err
	}

	final, matched := Escalate(req.Urgency, req.Description, t.tables.EmergencyKeywords())
	class, _ := t.tables.Urgency(final)
	contractor, _ := t.tables.Contractor(req.RequestType)
	now := t.now().UTC()

	return &Ticket{
		TicketNumber:      ident.New("MNT", now),
		Status:            "submitted",
		Priority:          class.Priority,
		Urgency:           final,
		RequestedUrgency:  req.Urgency,
		AutoEscalated:     final != req.Urgency,
		MatchedKeywords:   matched,
		EstimatedResponse: contractor.ResponseTime[final],
		RequestDetails: RequestDetails{
			Type:        req.RequestType,
			Description: req.Description,
			UnitNumber:  req.UnitNumber,
		},
		ContactInfo: ContactInfo{
			ResidentName:  req.ContactName,
			PhoneNumber:   req.ContactPhone,
			PreferredTime: req.PreferredTime,
		},
		AssignedContractor: ContractorRef{
			Company:   contractor.Name,
			Phone:     contractor.Phone,
			Specialty: contractor.Specialty,
		},
		CostEstimate: CostEstimate{
			Min:      class.CostMin,
			Max:      class.CostMax,
			Currency: t.tables.Currency(),
			Display:  fmt.Sprintf("$%d-%d", class.CostMin, class.CostMax),
		},
		NextSteps:           nextSteps(final, contractor.Name),
		ImportantNotes:      t.notes(final, req.RequestType),
		SubmittedAt:         now,
		EstimatedCompletion: now.Add(t.completionWindow(final, req.RequestType)),
	}, nil
}

// Escalate returns the final urgency for a request. A description containing
// any emergency keyword (case-insensitive substring) lifts a non-emergency
// request to emergency. The result is never less severe than requested.
func Escalate(requested, description string, emergencyKeywords []string) (string, []string) {
	if requested == reference.Emergency {
		return requested, nil
	}
	desc := strings.ToLower(description)
	var matched []string
	for _, kw := range emergencyKeywords {
		if strings.Contains(desc, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	if len(matched) == 0 {
		return requested, nil
	}
	return reference.Emergency, matched
}

func (t *Triage) completionWindow(urgency, requestType string) time.Duration {
	class, _ := t.tables.Urgency(urgency)
	hours := float64(class.BaseHours) * t.tables.CompletionMultiplier(requestType)
	return time.Duration(hours * float64(time.Hour))
}

func (t *Triage) notes(urgency, requestType string) []string {
	n := t.tables.Notes()
	var out []string
	if urgency == reference.Emergency {
		out = append(out, n.Emergency...)
	}
	if note, ok := n.RequestType[requestType]; ok {
		out = append(out, note)
	}
	return append(out, n.General...)
}

func nextSteps(urgency, contractor string) string {
	switch urgency {
	case reference.Emergency:
		return fmt.Sprintf("URGENT: %s has been notified immediately. Expect contact within 30 minutes. If this is a life-threatening emergency, call 000.", contractor)
	case reference.Urgent:
		return fmt.Sprintf("%s will contact you within 2-4 hours to schedule immediate service.", contractor)
	case reference.Normal:
		return fmt.Sprintf("Your request has been logged. %s will contact you within 24-72 hours to schedule service.", contractor)
	case reference.Low:
		return fmt.Sprintf("Your request is in queue. %s will contact you within 3-7 days to schedule service.", contractor)
	default:
		return fmt.Sprintf("%s will contact you to schedule service.", contractor)
	}
}
