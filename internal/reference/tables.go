// Package reference loads the building's static reference data: levy rates,
// unit-type multipliers, the contractor registry, the urgency matrix and the
// seed event calendar. The data lives in tables.cue so that its invariants are
// enforced by CUE constraints before anything reaches Go. A loaded *Tables is
// read-only and safe for concurrent use.
package reference

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed tables.cue
var embedded []byte

// Urgency levels, most to least severe.
const (
	Emergency = "emergency"
	Urgent    = "urgent"
	Normal    = "normal"
	Low       = "low"
)

// LevyRates holds the constants of the levy formula.
type LevyRates struct {
	BaseRatePerSqm      float64            `json:"base_rate_per_sqm"`
	FloorThreshold      int                `json:"floor_threshold"`
	PerFloorRate        float64            `json:"per_floor_rate"`
	BalconyLevy         float64            `json:"balcony_levy"`
	ParkingLevy         float64            `json:"parking_levy"`
	BuildingAverageLevy float64            `json:"building_average_levy"`
	UnitTypes           map[string]float64 `json:"unit_types"`
}

// Contractor is the profile assigned to one request type.
type Contractor struct {
	Name                 string            `json:"name"`
	Phone                string            `json:"phone"`
	Specialty            string            `json:"specialty"`
	ResponseTime         map[string]string `json:"response_time"`
	CompletionMultiplier float64           `json:"completion_multiplier"`
}

// UrgencyClass describes one urgency level.
type UrgencyClass struct {
	Priority  string   `json:"priority"`
	CostMin   int      `json:"cost_min"`
	CostMax   int      `json:"cost_max"`
	BaseHours int      `json:"base_hours"`
	Keywords  []string `json:"keywords"`
}

// Notes are the safety and general notes attached to maintenance tickets.
type Notes struct {
	Emergency   []string          `json:"emergency"`
	RequestType map[string]string `json:"request_type"`
	General     []string          `json:"general"`
}

// EventSeed is an entry of the initial event calendar.
type EventSeed struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DateTime     string `json:"date_time"`
	Location     string `json:"location"`
	MaxCapacity  int    `json:"max_capacity"`
	CurrentRSVPs int    `json:"current_rsvps"`
	Type         string `json:"type"`
	RequiresRSVP bool   `json:"requires_rsvp"`
	Description  string `json:"description"`
}

type file struct {
	Currency         string                  `json:"currency"`
	Levy             LevyRates               `json:"levy"`
	UnitTypeOrder    []string                `json:"unit_type_order"`
	UrgencyOrder     []string                `json:"urgency_order"`
	RequestTypeOrder []string                `json:"request_type_order"`
	Contractors      map[string]Contractor   `json:"contractors"`
	Urgency          map[string]UrgencyClass `json:"urgency"`
	Notes            Notes                   `json:"notes"`
	Events           []EventSeed             `json:"events"`
}

// Tables is the decoded, validated reference data.
type Tables struct {
	f file
}

// Load decodes the embedded reference tables.
func Load() (*Tables, error) {
	return parse(embedded, "tables.cue")
}

// LoadFile decodes reference tables from a CUE file on disk, for deployments
// that override the built-in data.
func LoadFile(path string) (*Tables, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reference tables: %w", err)
	}
	return parse(src, path)
}

// MustLoad is Load for tests and start-up paths that cannot continue without data.
func MustLoad() *Tables {
	t, err := Load()
	if err != nil {
		panic(err)
	}
	return t
}

func parse(src []byte, name string) (*Tables, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", name, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating %s: %w", name, err)
	}
	var f file
	if err := v.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	if err := check(f); err != nil {
		return nil, fmt.Errorf("checking %s: %w", name, err)
	}
	return &Tables{f: f}, nil
}

// check enforces the cross-table invariants CUE cannot express per field.
func check(f file) error {
	if len(f.UrgencyOrder) == 0 || f.UrgencyOrder[0] != Emergency {
		return fmt.Errorf("urgency_order must start with %q", Emergency)
	}
	for _, u := range f.UrgencyOrder {
		if _, ok := f.Urgency[u]; !ok {
			return fmt.Errorf("urgency %q has no class", u)
		}
	}
	if len(f.Contractors) != len(f.RequestTypeOrder) {
		return fmt.Errorf("request_type_order lists %d types, contractors defines %d",
			len(f.RequestTypeOrder), len(f.Contractors))
	}
	for _, rt := range f.RequestTypeOrder {
		c, ok := f.Contractors[rt]
		if !ok {
			return fmt.Errorf("request type %q has no contractor", rt)
		}
		for _, u := range f.UrgencyOrder {
			if c.ResponseTime[u] == "" {
				return fmt.Errorf("contractor %q has no %s response time", c.Name, u)
			}
		}
	}
	for _, ut := range f.UnitTypeOrder {
		if _, ok := f.Levy.UnitTypes[ut]; !ok {
			return fmt.Errorf("unit type %q has no multiplier", ut)
		}
	}
	seen := make(map[string]bool, len(f.Events))
	for _, e := range f.Events {
		if seen[e.ID] {
			return fmt.Errorf("duplicate event id %q", e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

// Currency is the ISO 4217 code every monetary figure is expressed in.
func (t *Tables) Currency() string { return t.f.Currency }

// Levy returns the levy rates. The unit-type map is a copy.
func (t *Tables) Levy() LevyRates {
	r := t.f.Levy
	r.UnitTypes = maps.Clone(r.UnitTypes)
	return r
}

// UnitTypes lists the known unit types in display order.
func (t *Tables) UnitTypes() []string { return slices.Clone(t.f.UnitTypeOrder) }

// TypeMultiplier returns the levy multiplier for a unit type. Unknown types
// fall back to 1.0.
func (t *Tables) TypeMultiplier(unitType string) float64 {
	if m, ok := t.f.Levy.UnitTypes[unitType]; ok {
		return m
	}
	return 1.0
}

// RequestTypes lists the maintenance categories in display order.
func (t *Tables) RequestTypes() []string { return slices.Clone(t.f.RequestTypeOrder) }

// Urgencies lists urgency levels from most to least severe.
func (t *Tables) Urgencies() []string { return slices.Clone(t.f.UrgencyOrder) }

// UrgencyRank orders urgency levels; 0 is the most severe. Unknown levels
// rank after every known one.
func (t *Tables) UrgencyRank(u string) int {
	if i := slices.Index(t.f.UrgencyOrder, u); i >= 0 {
		return i
	}
	return len(t.f.UrgencyOrder)
}

// Contractor looks up the contractor assigned to a request type.
func (t *Tables) Contractor(requestType string) (Contractor, bool) {
	c, ok := t.f.Contractors[requestType]
	if !ok {
		return Contractor{}, false
	}
	c.ResponseTime = maps.Clone(c.ResponseTime)
	return c, true
}

// Contractors returns a copy of the whole registry keyed by request type.
func (t *Tables) Contractors() map[string]Contractor {
	out := make(map[string]Contractor, len(t.f.Contractors))
	for k := range t.f.Contractors {
		out[k], _ = t.Contractor(k)
	}
	return out
}

// CompletionMultiplier returns the per-category completion factor, 1.0 for
// unmapped categories.
func (t *Tables) CompletionMultiplier(requestType string) float64 {
	if c, ok := t.f.Contractors[requestType]; ok && c.CompletionMultiplier > 0 {
		return c.CompletionMultiplier
	}
	return 1.0
}

// Urgency looks up an urgency class.
func (t *Tables) Urgency(level string) (UrgencyClass, bool) {
	u, ok := t.f.Urgency[level]
	if !ok {
		return UrgencyClass{}, false
	}
	u.Keywords = slices.Clone(u.Keywords)
	return u, true
}

// UrgencyMatrix returns a copy of every urgency class keyed by level.
func (t *Tables) UrgencyMatrix() map[string]UrgencyClass {
	out := make(map[string]UrgencyClass, len(t.f.Urgency))
	for k := range t.f.Urgency {
		out[k], _ = t.Urgency(k)
	}
	return out
}

// EmergencyKeywords is the only keyword set consulted for auto-escalation.
func (t *Tables) EmergencyKeywords() []string {
	return slices.Clone(t.f.Urgency[Emergency].Keywords)
}

// Notes returns the ticket note templates.
func (t *Tables) Notes() Notes {
	n := t.f.Notes
	n.Emergency = slices.Clone(n.Emergency)
	n.General = slices.Clone(n.General)
	n.RequestType = maps.Clone(n.RequestType)
	return n
}

// Events returns the seed event calendar.
func (t *Tables) Events() []EventSeed { return slices.Clone(t.f.Events) }
