package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// IsValidCandidate reports whether a loosely typed record is a well-formed
// task. Missing or empty priority and category count as their defaults; a
// value outside the closed sets does not.
func IsValidCandidate(candidate map[string]any) bool {
	if candidate == nil {
		return false
	}
	if _, ok := candidate["id"].(string); !ok {
		return false
	}
	text, ok := candidate["text"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return false
	}
	if _, ok := candidate["completed"].(bool); !ok {
		return false
	}
	if !optionalEnum(candidate["priority"], func(s string) bool { return Priority(s).IsValid() }) {
		return false
	}
	if !optionalEnum(candidate["category"], func(s string) bool { return Category(s).IsValid() }) {
		return false
	}
	if notes, present := candidate["notes"]; present && notes != nil {
		if _, ok := notes.(string); !ok {
			return false
		}
	}
	return true
}

func optionalEnum(v any, valid func(string) bool) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	return s == "" || valid(s)
}

// IsValidTask applies the same rules to a typed task.
func IsValidTask(t Task) bool {
	if t.ID == "" || strings.TrimSpace(t.Text) == "" {
		return false
	}
	if t.Priority != "" && !t.Priority.IsValid() {
		return false
	}
	if t.Category != "" && !t.Category.IsValid() {
		return false
	}
	return true
}

// Normalize fills in defaults for a valid task.
func Normalize(t Task) Task {
	if t.Priority == "" {
		t.Priority = DefaultPriority
	}
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	return t
}

// DecodeTask parses and validates a raw JSON record, such as a real-time
// payload or a locally stored entry.
func DecodeTask(raw []byte) (Task, error) {
	var candidate map[string]any
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	if !IsValidCandidate(candidate) {
		return Task{}, ErrInvalidTask
	}

	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	return Normalize(t), nil
}

// FilterValid splits tasks into valid normalized ones and the count dropped.
func FilterValid(tasks []Task) ([]Task, int) {
	valid := make([]Task, 0, len(tasks))
	seen := make(map[string]struct{}, len(tasks))
	dropped := 0
	for _, t := range tasks {
		if !IsValidTask(t) {
			dropped++
			continue
		}
		if _, dup := seen[t.ID]; dup {
			dropped++
			continue
		}
		seen[t.ID] = struct{}{}
		valid = append(valid, Normalize(t))
	}
	return valid, dropped
}

// Touch stamps UpdatedAt and returns the copy.
func (t Task) Touch(now time.Time) Task {
	t.UpdatedAt = now.UTC()
	return t
}
