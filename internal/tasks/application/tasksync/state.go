package tasksync

import (
	"slices"

	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

// SaveError is the user-visible persistence failure banner.
type SaveError string

const (
	SaveErrorNone SaveError = ""
	SaveFailed    SaveError = "save_failed"
	LoadFailed    SaveError = "load_failed"
)

// Message returns the banner text shown to the user.
func (e SaveError) Message() string {
	switch e {
	case SaveFailed:
		return "Failed to save tasks. Please try again."
	case LoadFailed:
		return "Failed to load tasks. Please refresh the page."
	default:
		return ""
	}
}

// State is the authoritative in-memory task collection.
//
// Reduce never mutates a State in place, so a State value handed out by the
// store stays valid while the store moves on.
type State struct {
	// Tasks is ordered newest first.
	Tasks     []domain.Task
	IsLoading bool
	SaveError SaveError

	// ids removed by a delete; remote inserts and updates for them are ignored
	// until an authoritative load lists them again.
	tombstones map[string]struct{}
}

// Find returns the task with id.
func (s State) Find(id string) (domain.Task, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return domain.Task{}, false
	}
	return s.Tasks[i], true
}

// Deleted reports whether id is tombstoned.
func (s State) Deleted(id string) bool {
	_, ok := s.tombstones[id]
	return ok
}

func (s State) indexOf(id string) int {
	return slices.IndexFunc(s.Tasks, func(t domain.Task) bool { return t.ID == id })
}

func (s State) withTasks(tasks []domain.Task) State {
	s.Tasks = tasks
	return s
}

func (s State) withTombstone(id string) State {
	next := make(map[string]struct{}, len(s.tombstones)+1)
	for k := range s.tombstones {
		next[k] = struct{}{}
	}
	next[id] = struct{}{}
	s.tombstones = next
	return s
}

func (s State) withoutTombstones(ids ...string) State {
	if len(s.tombstones) == 0 {
		return s
	}
	next := make(map[string]struct{}, len(s.tombstones))
	for k := range s.tombstones {
		next[k] = struct{}{}
	}
	for _, id := range ids {
		delete(next, id)
	}
	s.tombstones = next
	return s
}

func prepend(tasks []domain.Task, t domain.Task) []domain.Task {
	out := make([]domain.Task, 0, len(tasks)+1)
	out = append(out, t)
	return append(out, tasks...)
}

func replaceAt(tasks []domain.Task, i int, t domain.Task) []domain.Task {
	out := slices.Clone(tasks)
	out[i] = t
	return out
}

func removeAt(tasks []domain.Task, i int) []domain.Task {
	out := make([]domain.Task, 0, len(tasks)-1)
	out = append(out, tasks[:i]...)
	return append(out, tasks[i+1:]...)
}

func insertAt(tasks []domain.Task, i int, t domain.Task) []domain.Task {
	if i < 0 || i > len(tasks) {
		i = 0
	}
	out := make([]domain.Task, 0, len(tasks)+1)
	out = append(out, tasks[:i]...)
	out = append(out, t)
	return append(out, tasks[i:]...)
}
