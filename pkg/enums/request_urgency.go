package enums

import "fmt"

// RequestUrgency maps to the request_urgency enum in Postgres.
type RequestUrgency string

const (
	RequestUrgencyLow    RequestUrgency = "low"
	RequestUrgencyMedium RequestUrgency = "medium"
	RequestUrgencyHigh   RequestUrgency = "high"
)

var validRequestUrgencies = []RequestUrgency{
	RequestUrgencyLow,
	RequestUrgencyMedium,
	RequestUrgencyHigh,
}

// Weight returns the ranking weight used for global queue ordering.
func (u RequestUrgency) Weight() int {
	switch u {
	case RequestUrgencyHigh:
		return 3
	case RequestUrgencyMedium:
		return 2
	case RequestUrgencyLow:
		return 1
	}
	return 0
}

// String implements fmt.Stringer.
func (u RequestUrgency) String() string {
	return string(u)
}

// IsValid reports whether the value is a known RequestUrgency.
func (u RequestUrgency) IsValid() bool {
	for _, candidate := range validRequestUrgencies {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseRequestUrgency converts raw input into a RequestUrgency.
func ParseRequestUrgency(value string) (RequestUrgency, error) {
	for _, candidate := range validRequestUrgencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request urgency %q", value)
}
