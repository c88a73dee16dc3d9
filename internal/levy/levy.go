// Package levy computes strata levies from unit attributes.
package levy

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/matthewbaird/strata/internal/ident"
	"github.com/matthewbaird/strata/internal/reference"
	"github.com/matthewbaird/strata/internal/validate"
)

// Request is the unvalidated calculator input. Pointer fields distinguish
// "absent" from a zero value.
type Request struct {
	UnitSize        *float64 `json:"unit_size"`
	UnitType        *string  `json:"unit_type"`
	Floor           *int     `json:"floor"`
	HasBalcony      bool     `json:"has_balcony"`
	HasParkingSpace bool     `json:"has_parking_space"`
}

// UnitSpecification is a validated unit description.
type UnitSpecification struct {
	Size            float64
	Type            string
	Floor           int
	HasBalcony      bool
	HasParkingSpace bool
}

// Breakdown holds unrounded levy components.
type Breakdown struct {
	TypeMultiplier float64
	UnitSizeLevy   float64
	TypeAdjustment float64
	FloorPremium   float64
	BalconyLevy    float64
	ParkingLevy    float64
	MonthlyLevy    float64
	QuarterlyLevy  float64
	AnnualLevy     float64
}

// Compute applies the levy formula. It is pure: no rounding, no clock, no ids.
func Compute(u UnitSpecification, r reference.LevyRates) Breakdown {
	mult := 1.0
	if m, ok := r.UnitTypes[u.Type]; ok {
		mult = m
	}
	var b Breakdown
	b.TypeMultiplier = mult
	b.UnitSizeLevy = u.Size * r.BaseRatePerSqm
	b.TypeAdjustment = b.UnitSizeLevy * (mult - 1)
	if above := u.Floor - r.FloorThreshold; above > 0 {
		b.FloorPremium = float64(above) * r.PerFloorRate
	}
	if u.HasBalcony {
		b.BalconyLevy = r.BalconyLevy
	}
	if u.HasParkingSpace {
		b.ParkingLevy = r.ParkingLevy
	}
	b.MonthlyLevy = b.UnitSizeLevy + b.TypeAdjustment + b.FloorPremium + b.BalconyLevy + b.ParkingLevy
	b.QuarterlyLevy = b.MonthlyLevy * 3
	b.AnnualLevy = b.MonthlyLevy * 12
	return b
}

// Result is the rounded calculator output returned to callers.
type Result struct {
	CalculationID string       `json:"calculation_id"`
	CalculatedAt  time.Time    `json:"calculated_at"`
	Currency      string       `json:"currency"`
	MonthlyLevy   float64      `json:"monthly_levy"`
	QuarterlyLevy float64      `json:"quarterly_levy"`
	AnnualLevy    float64      `json:"annual_levy"`
	Breakdown     ResultDetail `json:"breakdown"`
	Comparison    Comparison   `json:"comparison"`
	Explanation   string       `json:"explanation"`
}

// ResultDetail itemises the monthly levy.
type ResultDetail struct {
	BaseLevyPerSqm float64 `json:"base_levy_per_sqm"`
	UnitSize       float64 `json:"unit_size"`
	UnitSizeLevy   float64 `json:"unit_size_levy"`
	UnitType       string  `json:"unit_type"`
	TypeMultiplier float64 `json:"type_multiplier"`
	TypeAdjustment float64 `json:"type_adjustment"`
	Floor          int     `json:"floor"`
	FloorPremium   float64 `json:"floor_premium"`
	BalconyLevy    float64 `json:"balcony_levy"`
	ParkingLevy    float64 `json:"parking_levy"`
}

// Comparison places the levy against the building.
type Comparison struct {
	LevyPerSqmTotal     float64 `json:"levy_per_sqm_total"`
	BuildingAverageLevy float64 `json:"building_average_levy"`
}

// Calculator validates requests and prices them against injected rates.
type Calculator struct {
	tables *reference.Tables
	now    func() time.Time
}

// NewCalculator creates a Calculator. now may be nil.
func NewCalculator(tables *reference.Tables, now func() time.Time) *Calculator {
	if now == nil {
		now = time.Now
	}
	return &Calculator{tables: tables, now: now}
}

// Validate turns a Request into a UnitSpecification.
func (c *Calculator) Validate(req Request) (UnitSpecification, error) {
	var unitType string
	if req.UnitType != nil {
		unitType = *req.UnitType
	}
	var missing []string
	if req.UnitSize == nil {
		missing = append(missing, "unit_size")
	}
	if strings.TrimSpace(unitType) == "" {
		missing = append(missing, "unit_type")
	}
	if req.Floor == nil {
		missing = append(missing, "floor")
	}
	if len(missing) > 0 {
		return UnitSpecification{}, &validate.ValidationError{
			Field:   strings.Join(missing, ", "),
			Message: "required field missing",
		}
	}
	if err := validate.Positive("unit_size", *req.UnitSize); err != nil {
		return UnitSpecification{}, err
	}
	if err := validate.NonNegative("floor", *req.Floor); err != nil {
		return UnitSpecification{}, err
	}
	return UnitSpecification{
		Size:            *req.UnitSize,
		Type:            strings.ToLower(strings.TrimSpace(unitType)),
		Floor:           *req.Floor,
		HasBalcony:      req.HasBalcony,
		HasParkingSpace: req.HasParkingSpace,
	}, nil
}

// Calculate validates req and returns the levy breakdown.
func (c *Calculator) Calculate(req Request) (*Result, error) {
	u, err := c.Validate(req)
	if err != nil {
		return nil, err
	}
	rates := c.tables.Levy()
	b := Compute(u, rates)
	now := c.now().UTC()

	res := &Result{
		CalculationID: ident.New("LEV", now),
		CalculatedAt:  now,
		Currency:      c.tables.Currency(),
		MonthlyLevy:   round2(b.MonthlyLevy),
		QuarterlyLevy: round2(b.QuarterlyLevy),
		AnnualLevy:    round2(b.AnnualLevy),
		Breakdown: ResultDetail{
			BaseLevyPerSqm: rates.BaseRatePerSqm,
			UnitSize:       u.Size,
			UnitSizeLevy:   round2(b.UnitSizeLevy),
			UnitType:       u.Type,
			TypeMultiplier: b.TypeMultiplier,
			TypeAdjustment: round2(b.TypeAdjustment),
			Floor:          u.Floor,
			FloorPremium:   round2(b.FloorPremium),
			BalconyLevy:    round2(b.BalconyLevy),
			ParkingLevy:    round2(b.ParkingLevy),
		},
		Comparison: Comparison{
			LevyPerSqmTotal:     round2(b.MonthlyLevy / u.Size),
			BuildingAverageLevy: rates.BuildingAverageLevy,
		},
		Explanation: explain(u, b, rates),
	}
	if !finite(res.MonthlyLevy, res.QuarterlyLevy, res.AnnualLevy,
		res.Breakdown.UnitSizeLevy, res.Breakdown.TypeAdjustment, res.Comparison.LevyPerSqmTotal) {
		return nil, validate.Invalid("unit_size", "%g sqm is too large to price", u.Size)
	}
	return res, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

func explain(u UnitSpecification, b Breakdown, r reference.LevyRates) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%.2f sqm at $%.2f/sqm = $%.2f", u.Size, r.BaseRatePerSqm, b.UnitSizeLevy)
	if b.TypeAdjustment != 0 {
		fmt.Fprintf(&sb, "; %s adjustment (x%.2f) = $%.2f", u.Type, b.TypeMultiplier, b.TypeAdjustment)
	}
	if b.FloorPremium > 0 {
		fmt.Fprintf(&sb, "; floor %d premium ($%.2f per floor above %d) = $%.2f",
			u.Floor, r.PerFloorRate, r.FloorThreshold, b.FloorPremium)
	}
	if u.HasBalcony {
		fmt.Fprintf(&sb, "; balcony $%.2f", b.BalconyLevy)
	}
	if u.HasParkingSpace {
		fmt.Fprintf(&sb, "; parking $%.2f", b.ParkingLevy)
	}
	fmt.Fprintf(&sb, ". Monthly levy $%.2f, annual $%.2f.", b.MonthlyLevy, b.AnnualLevy)
	return sb.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
