package maintenance

import (
	"strings"

	"github.com/matthewbaird/strata/internal/reference"
	"github.com/matthewbaird/strata/internal/validate"
)

// TypeInfo is the reference data for a single request type.
type TypeInfo struct {
	RequestType   string                            `json:"request_type"`
	Contractor    reference.Contractor              `json:"contractor"`
	UrgencyLevels map[string]reference.UrgencyClass `json:"urgency_levels"`
}

// Capabilities documents the submission payload.
type Capabilities struct {
	Endpoint              string            `json:"endpoint"`
	Methods               map[string]string `json:"methods"`
	Parameters            map[string]string `json:"parameters"`
	AvailableRequestTypes []string          `json:"available_request_types"`
	UrgencyLevels         []string          `json:"urgency_levels"`
	Example               Request           `json:"example"`
}

// Info returns the contractor and urgency matrix for one request type.
func (t *Triage) Info(requestType string) (*TypeInfo, error) {
	rt := strings.ToLower(strings.TrimSpace(requestType))
	c, ok := t.tables.Contractor(rt)
	if !ok {
		return nil, validate.NotFound("request type", requestType, t.tables.RequestTypes())
	}
	return &TypeInfo{
		RequestType:   rt,
		Contractor:    c,
		UrgencyLevels: t.tables.UrgencyMatrix(),
	}, nil
}

// Contractors returns the full contractor registry.
func (t *Triage) Contractors() map[string]reference.Contractor {
	return t.tables.Contractors()
}

// Describe returns the capabilities document for the submission endpoint.
func (t *Triage) Describe(endpoint string) Capabilities {
	types := t.tables.RequestTypes()
	urgencies := t.tables.Urgencies()
	return Capabilities{
		Endpoint: endpoint,
		Methods: map[string]string{
			"GET":  "Get maintenance info (?type=TYPE or ?contractors=true)",
			"POST": "Submit maintenance request",
		},
		Parameters: map[string]string{
			"request_type":   "string (required) - " + strings.Join(types, ", "),
			"urgency":        "string (required) - " + strings.Join(urgencies, ", "),
			"description":    "string (required) - Detailed description of the issue",
			"unit_number":    "string (required) - Unit/apartment number",
			"contact_name":   "string (required) - Resident name",
			"contact_phone":  "string (required) - Australian phone number",
			"preferred_time": "string (optional) - Preferred time for service",
		},
		AvailableRequestTypes: types,
		UrgencyLevels:         urgencies,
		Example: Request{
			RequestType:   "plumbing",
			Urgency:       "urgent",
			Description:   "Kitchen sink is leaking under the cabinet",
			UnitNumber:    "15B",
			ContactName:   "John Smith",
			ContactPhone:  "0412 345 678",
			PreferredTime: "Weekday mornings",
		},
	}
}
