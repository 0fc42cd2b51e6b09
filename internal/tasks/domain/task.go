package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxTextLength is the maximum task description length in characters.
	MaxTextLength = 500
	// MaxNotesLength is the maximum notes length in characters.
	MaxNotesLength = 1000
)

// Task represents a single to-do item.
//
// Tasks are values: the synchronization core copies them freely and
// consumers only ever see copies.
type Task struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	Priority  Priority  `json:"priority"`
	Category  Category  `json:"category"`
	Notes     string    `json:"notes"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
	// Version is assigned by the datastore and grows on every write.
	// Zero means the task has not been persisted yet.
	Version int64 `json:"version"`
}

// IsAnonymous reports whether the task has no owner.
func (t Task) IsAnonymous() bool { return t.OwnerID == "" }

// Input carries raw user input for a new task.
type Input struct {
	Text     string
	Priority string
	Category string
	Notes    string
}

// NewTask builds a task from user input with a client-generated id.
// Unknown priorities and categories are coerced to their defaults.
func NewTask(in Input, ownerID string, now time.Time) (Task, error) {
	text, err := normalizeText(in.Text)
	if err != nil {
		return Task{}, err
	}
	if utf8.RuneCountInString(in.Notes) > MaxNotesLength {
		return Task{}, ErrNotesTooLong
	}

	return Task{
		ID:        uuid.NewString(),
		Text:      text,
		Priority:  PriorityOrDefault(in.Priority),
		Category:  CategoryOrDefault(in.Category),
		Notes:     in.Notes,
		OwnerID:   ownerID,
		CreatedAt: now.UTC(),
	}, nil
}

// Fields is a partial update. Nil fields are left unchanged.
type Fields struct {
	Text      *string   `json:"text,omitempty"`
	Completed *bool     `json:"completed,omitempty"`
	Priority  *Priority `json:"priority,omitempty"`
	Category  *Category `json:"category,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (f Fields) IsEmpty() bool {
	return f.Text == nil && f.Completed == nil && f.Priority == nil && f.Category == nil && f.Notes == nil
}

// CompletedFields is the update sent for a toggle.
func CompletedFields(completed bool) Fields {
	return Fields{Completed: &completed}
}

// EditInput carries raw user input for an edit. Text is required; the
// optional fields are only applied when non-nil.
type EditInput struct {
	Text     string
	Priority *string
	Category *string
	Notes    *string
}

// NewEditFields validates an edit and converts it to a partial update.
func NewEditFields(in EditInput) (Fields, error) {
	text, err := normalizeText(in.Text)
	if err != nil {
		return Fields{}, err
	}

	f := Fields{Text: &text}
	if in.Priority != nil {
		p := PriorityOrDefault(*in.Priority)
		f.Priority = &p
	}
	if in.Category != nil {
		c := CategoryOrDefault(*in.Category)
		f.Category = &c
	}
	if in.Notes != nil {
		if utf8.RuneCountInString(*in.Notes) > MaxNotesLength {
			return Fields{}, ErrNotesTooLong
		}
		notes := *in.Notes
		f.Notes = &notes
	}
	return f, nil
}

// Apply returns a copy of t with the provided fields merged in.
func (t Task) Apply(f Fields, now time.Time) Task {
	if f.Text != nil {
		t.Text = *f.Text
	}
	if f.Completed != nil {
		t.Completed = *f.Completed
	}
	if f.Priority != nil {
		t.Priority = *f.Priority
	}
	if f.Category != nil {
		t.Category = *f.Category
	}
	if f.Notes != nil {
		t.Notes = *f.Notes
	}
	t.UpdatedAt = now.UTC()
	return t
}

func normalizeText(s string) (string, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return "", fmt.Errorf("%w: text cannot be empty", ErrInvalidTask)
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", ErrTextTooLong
	}
	return text, nil
}
