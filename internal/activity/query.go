// Package activity provides the activity store interface and implementations
// for the per-entity activity stream (tickets per unit, RSVPs per event and
// resident, levy quotes per calculation).
package activity

import (
	"fmt"
	"slices"
	"time"

	"github.com/matthewbaird/strata/internal/types"
	"github.com/matthewbaird/strata/internal/validate"
)

// Weights from most to least severe.
var Weights = []string{"critical", "major", "minor", "info"}

// WeightOrder maps weights to numeric severity (lower = more severe).
var WeightOrder = map[string]int{
	"critical": 1,
	"major":    2,
	"minor":    3,
	"info":     4,
}

// Page size bounds for feed queries.
const (
	DefaultLimit       = 100
	MaxLimit           = 500
	DefaultSearchLimit = 20
)

// WeightSeverity returns the numeric severity of a weight; unknown weights
// rank as "info".
func WeightSeverity(w string) int {
	if s, ok := WeightOrder[w]; ok {
		return s
	}
	return WeightOrder["info"]
}

// IsAtLeastWeight reports whether weight is at least as severe as threshold.
func IsAtLeastWeight(weight, threshold string) bool {
	return WeightSeverity(weight) <= WeightSeverity(threshold)
}

// CheckEntityType reports whether kind is an entity the service records
// activity for.
func CheckEntityType(kind string) error {
	if !slices.Contains(types.EntityKinds, kind) {
		return validate.NotFound("entity type", kind, types.EntityKinds)
	}
	return nil
}

// QueryOptions controls filtering and pagination for entity activity queries.
type QueryOptions struct {
	Since      *time.Time // default: 6 months ago
	Until      *time.Time // default: now
	Categories []string   // filter to specific categories
	MinWeight  string     // minimum weight threshold (default: "info")
	Limit      int        // max results (default: 100, max: 500)
	Cursor     string     // occurred_at of the last entry of the previous page
}

// SearchOptions controls filtering for full-text activity search.
type SearchOptions struct {
	EntityType string     // filter to specific entity type
	Since      *time.Time // filter by time
	Categories []string   // filter to specific categories
	Limit      int        // max results (default: 20)
}

// DefaultQueryOptions returns QueryOptions with sensible defaults.
func DefaultQueryOptions() QueryOptions {
	now := time.Now()
	sixMonthsAgo := now.AddDate(0, -6, 0)
	return QueryOptions{
		Since:     &sixMonthsAgo,
		Until:     &now,
		MinWeight: "info",
		Limit:     DefaultLimit,
	}
}

// DefaultSearchOptions returns SearchOptions with sensible defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit: DefaultSearchLimit,
	}
}

// Validate rejects options no store could answer meaningfully.
func (o QueryOptions) Validate() error {
	if o.MinWeight != "" && !slices.Contains(Weights, o.MinWeight) {
		return &validate.ValidationError{Field: "min_weight", Message: fmt.Sprintf("unknown weight %q", o.MinWeight), Accepted: Weights}
	}
	if err := checkCategories(o.Categories); err != nil {
		return err
	}
	if o.Limit < 0 || o.Limit > MaxLimit {
		return validate.Invalid("limit", "must be between 1 and %d, got %d", MaxLimit, o.Limit)
	}
	if o.Since != nil && o.Until != nil && o.Since.After(*o.Until) {
		return validate.Invalid("since", "must not be after until")
	}
	if _, err := o.before(); err != nil {
		return validate.Invalid("cursor", "malformed cursor %q", o.Cursor)
	}
	return nil
}

// Validate rejects unknown entity types and categories.
func (o SearchOptions) Validate() error {
	if o.EntityType != "" {
		if err := CheckEntityType(o.EntityType); err != nil {
			return err
		}
	}
	if err := checkCategories(o.Categories); err != nil {
		return err
	}
	if o.Limit < 0 || o.Limit > MaxLimit {
		return validate.Invalid("limit", "must be between 1 and %d, got %d", MaxLimit, o.Limit)
	}
	return nil
}

func checkCategories(cats []string) error {
	for _, c := range cats {
		if !slices.Contains(types.Categories, c) {
			return &validate.ValidationError{Field: "categories", Message: fmt.Sprintf("unknown category %q", c), Accepted: types.Categories}
		}
	}
	return nil
}

// pageSize is Limit with the default applied.
func (o QueryOptions) pageSize() int {
	if o.Limit <= 0 || o.Limit > MaxLimit {
		return DefaultLimit
	}
	return o.Limit
}

// before decodes the cursor. The zero time means the first page.
func (o QueryOptions) before() (time.Time, error) {
	if o.Cursor == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, o.Cursor)
}

// cursorFor encodes the position after e.
func cursorFor(e types.ActivityEntry) string {
	return e.OccurredAt.Format(time.RFC3339Nano)
}

// admits reports whether e falls inside the window, categories and weight
// threshold of o, and strictly before the page boundary.
func (o QueryOptions) admits(e types.ActivityEntry, before time.Time) bool {
	switch {
	case o.Since != nil && e.OccurredAt.Before(*o.Since):
		return false
	case o.Until != nil && e.OccurredAt.After(*o.Until):
		return false
	case !before.IsZero() && !e.OccurredAt.Before(before):
		return false
	case len(o.Categories) > 0 && !slices.Contains(o.Categories, e.Category):
		return false
	case o.MinWeight != "" && !IsAtLeastWeight(e.Weight, o.MinWeight):
		return false
	}
	return true
}
