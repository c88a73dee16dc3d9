package validate

import (
	"regexp"
	"slices"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// Australian landline or mobile, optionally +61 prefixed.
	phonePattern = regexp.MustCompile(`^(\+61|0)[2-9]\d{8}$`)

	phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// Required reports which of the named string fields are blank, in the order
// given. Whitespace-only values count as blank.
func Required(fields map[string]*string, order ...string) error {
	var missing []string
	for _, name := range order {
		v := fields[name]
		if v == nil || strings.TrimSpace(*v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{
		Field:   strings.Join(missing, ", "),
		Message: "required field missing",
	}
}

// Positive rejects values that are not strictly greater than zero.
func Positive(field string, v float64) error {
	if v <= 0 {
		return Invalid(field, "must be greater than zero, got %v", v)
	}
	return nil
}

// NonNegative rejects values below zero.
func NonNegative(field string, v int) error {
	if v < 0 {
		return Invalid(field, "must not be negative, got %d", v)
	}
	return nil
}

// OneOf checks v against the accepted enumeration, case-insensitively, and
// returns the canonical lower-case value.
func OneOf(field, v string, accepted []string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(v))
	if slices.Contains(accepted, norm) {
		return norm, nil
	}
	return "", &ValidationError{
		Field:    field,
		Message:  "value " + quote(v) + " is not recognised",
		Accepted: accepted,
	}
}

// Email checks the basic local@domain.tld shape.
func Email(field, v string) error {
	if !emailPattern.MatchString(v) {
		return Invalid(field, "invalid email format")
	}
	return nil
}

// Phone checks v against the national phone format after stripping spaces,
// dashes and parentheses.
func Phone(field, v string) error {
	if !phonePattern.MatchString(NormalizePhone(v)) {
		return Invalid(field, "invalid Australian phone number format")
	}
	return nil
}

// NormalizePhone strips the formatting characters accepted in phone input.
func NormalizePhone(v string) string {
	return phoneNoise.Replace(v)
}

func quote(s string) string { return `"` + s + `"` }
