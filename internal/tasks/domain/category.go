package domain

import (
	"errors"
	"strings"
)

// Category is one of a closed set of task groupings.
type Category string

const (
	CategoryPersonal  Category = "personal"
	CategoryWork      Category = "work"
	CategoryShopping  Category = "shopping"
	CategoryHealth    Category = "health"
	CategoryEducation Category = "education"
	CategoryFinance   Category = "finance"
	CategoryHome      Category = "home"
	CategoryTravel    Category = "travel"

	DefaultCategory = CategoryPersonal
)

var ErrInvalidCategory = errors.New("invalid category value")

// categoryLabels preserves display order.
var categoryLabels = []struct {
	category Category
	label    string
}{
	{CategoryPersonal, "Personal"},
	{CategoryWork, "Work"},
	{CategoryShopping, "Shopping"},
	{CategoryHealth, "Health"},
	{CategoryEducation, "Education"},
	{CategoryFinance, "Finance"},
	{CategoryHome, "Home"},
	{CategoryTravel, "Travel"},
}

// Categories returns the closed category set in display order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryLabels))
	for _, c := range categoryLabels {
		out = append(out, c.category)
	}
	return out
}

// ParseCategory creates a Category from a string.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return DefaultCategory, ErrInvalidCategory
	}
	return c, nil
}

// CategoryOrDefault coerces s to a known category, falling back to personal.
func CategoryOrDefault(s string) Category {
	c, err := ParseCategory(s)
	if err != nil {
		return DefaultCategory
	}
	return c
}

// IsValid returns true if the category belongs to the closed set.
func (c Category) IsValid() bool {
	for _, known := range categoryLabels {
		if known.category == c {
			return true
		}
	}
	return false
}

// Label returns the human readable name.
func (c Category) Label() string {
	for _, known := range categoryLabels {
		if known.category == c {
			return known.label
		}
	}
	return DefaultCategory.Label()
}

func (c Category) String() string { return string(c) }
