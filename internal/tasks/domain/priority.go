package domain

import (
	"errors"
	"strings"
)

// Priority represents task urgency level.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"

	// DefaultPriority is assigned when no (or an unknown) priority is given.
	DefaultPriority = PriorityMedium
)

var ErrInvalidPriority = errors.New("invalid priority value")

var priorityWeights = map[Priority]int{
	PriorityHigh:   3,
	PriorityMedium: 2,
	PriorityLow:    1,
}

// Priorities returns all priorities, most important first.
func Priorities() []Priority {
	return []Priority{PriorityHigh, PriorityMedium, PriorityLow}
}

// ParsePriority creates a Priority from a string.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := priorityWeights[p]; !ok {
		return DefaultPriority, ErrInvalidPriority
	}
	return p, nil
}

// PriorityOrDefault coerces s to a known priority, falling back to medium.
func PriorityOrDefault(s string) Priority {
	p, err := ParsePriority(s)
	if err != nil {
		return DefaultPriority
	}
	return p
}

// IsValid returns true if the priority is a known value.
func (p Priority) IsValid() bool {
	_, ok := priorityWeights[p]
	return ok
}

// Weight returns a numeric weight for sorting (higher = more important).
// Unknown values weigh as medium.
func (p Priority) Weight() int {
	if w, ok := priorityWeights[p]; ok {
		return w
	}
	return priorityWeights[DefaultPriority]
}

func (p Priority) String() string { return string(p) }
