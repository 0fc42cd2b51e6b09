package domain

import (
	"fmt"
	"math"
	"sort"
)

// StatusFilter selects tasks by completion state.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusActive    StatusFilter = "active"
	StatusCompleted StatusFilter = "completed"
)

// ParseStatusFilter parses a status filter. Empty means all.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(s) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusActive, StatusCompleted:
		return StatusFilter(s), nil
	default:
		return "", fmt.Errorf("unknown status filter %q", s)
	}
}

// Filter narrows a task list. Zero values match everything.
type Filter struct {
	Status         StatusFilter
	Priority       Priority
	Category       Category
	SortByPriority bool
}

// Matches reports whether t passes the filter.
func (f Filter) Matches(t Task) bool {
	switch f.Status {
	case StatusActive:
		if t.Completed {
			return false
		}
	case StatusCompleted:
		if !t.Completed {
			return false
		}
	}
	if f.Priority != "" && effectivePriority(t) != f.Priority {
		return false
	}
	if f.Category != "" && effectiveCategory(t) != f.Category {
		return false
	}
	return true
}

// Apply returns the matching tasks, optionally sorted by priority.
// The input slice is not modified.
func (f Filter) Apply(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	if f.SortByPriority {
		SortByPriority(out)
	}
	return out
}

// SortByPriority orders tasks high to low, keeping the existing order
// among tasks of equal priority.
func SortByPriority(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority.Weight() > tasks[j].Priority.Weight()
	})
}

// Stats summarizes a task list.
type Stats struct {
	Total          int              `json:"total"`
	Completed      int              `json:"completed"`
	Pending        int              `json:"pending"`
	CompletionRate int              `json:"completion_rate"`
	ByPriority     map[Priority]int `json:"by_priority"`
	ByCategory     map[Category]int `json:"by_category"`
}

// ComputeStats counts tasks by status, priority and category.
func ComputeStats(tasks []Task) Stats {
	s := Stats{
		ByPriority: make(map[Priority]int, 3),
		ByCategory: make(map[Category]int),
	}
	for _, p := range Priorities() {
		s.ByPriority[p] = 0
	}

	for _, t := range tasks {
		s.Total++
		if t.Completed {
			s.Completed++
		}
		s.ByPriority[effectivePriority(t)]++
		s.ByCategory[effectiveCategory(t)]++
	}
	s.Pending = s.Total - s.Completed
	if s.Total > 0 {
		s.CompletionRate = int(math.Round(float64(s.Completed) / float64(s.Total) * 100))
	}
	return s
}

func effectivePriority(t Task) Priority {
	if t.Priority == "" {
		return DefaultPriority
	}
	return t.Priority
}

func effectiveCategory(t Task) Category {
	if t.Category == "" {
		return DefaultCategory
	}
	return t.Category
}
