// Package validate provides the field-level validation primitives shared by
// every evaluator and the error taxonomy surfaced to callers.
package validate

import (
	"fmt"
	"strings"
)

// ValidationError reports a missing, out-of-range or malformed input field.
// Accepted lists the permitted values when the field is an enumeration.
type ValidationError struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Accepted []string `json:"accepted,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Accepted) > 0 {
		return fmt.Sprintf("invalid %s: %s (accepted: %s)", e.Field, e.Message, strings.Join(e.Accepted, ", "))
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError reports a lookup against an unknown identifier. Available
// carries the identifiers that would have matched.
type NotFoundError struct {
	Kind      string   `json:"kind"`
	ID        string   `json:"id"`
	Available []string `json:"available,omitempty"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Kind, e.ID)
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a NotFoundError.
func NotFound(kind, id string, available []string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id, Available: available}
}
