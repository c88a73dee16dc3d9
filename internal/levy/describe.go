package levy

import "strings"

// Capabilities documents the calculation payload.
type Capabilities struct {
	Endpoint   string             `json:"endpoint"`
	Methods    map[string]string  `json:"methods"`
	Parameters map[string]string  `json:"parameters"`
	UnitTypes  map[string]float64 `json:"unit_types"`
	Currency   string             `json:"currency"`
	Example    Request            `json:"example"`
}

// Describe returns the capabilities document for the calculation endpoint.
func (c *Calculator) Describe(endpoint string) Capabilities {
	types := c.tables.UnitTypes()
	multipliers := make(map[string]float64, len(types))
	for _, t := range types {
		multipliers[t] = c.tables.TypeMultiplier(t)
	}
	size, unitType, floor := 75.0, "2-bedroom", 8
	return Capabilities{
		Endpoint: endpoint,
		Methods: map[string]string{
			"GET":  "Describe the levy calculation",
			"POST": "Calculate the levy for a unit",
		},
		Parameters: map[string]string{
			"unit_size":         "number (required) - Floor area in square metres, greater than zero",
			"unit_type":         "string (required) - " + strings.Join(types, ", ") + " (others priced at x1.0)",
			"floor":             "integer (required) - Floor number, zero or more",
			"has_balcony":       "boolean (optional, default: false)",
			"has_parking_space": "boolean (optional, default: false)",
		},
		UnitTypes: multipliers,
		Currency:  c.tables.Currency(),
		Example: Request{
			UnitSize:        &size,
			UnitType:        &unitType,
			Floor:           &floor,
			HasBalcony:      true,
			HasParkingSpace: true,
		},
	}
}
