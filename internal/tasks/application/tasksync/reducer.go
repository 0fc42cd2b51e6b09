package tasksync

import (
	"slices"
	"time"

	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

// Action is a state transition applied by Reduce.
type Action interface {
	actionName() string
}

// Load replaces the collection with the valid subset of Tasks.
type Load struct{ Tasks []domain.Task }

// LoadErrored records a failed authoritative load and keeps the collection.
type LoadErrored struct{}

// AddOptimistic prepends a task that has not been confirmed yet.
type AddOptimistic struct{ Task domain.Task }

// AddConfirmed swaps the provisional entry for the canonical server copy.
type AddConfirmed struct {
	ProvisionalID string
	Task          domain.Task
}

// AddRolledBack removes a provisional entry after its create failed.
type AddRolledBack struct{ ID string }

// ToggleOptimistic flips completion.
type ToggleOptimistic struct {
	ID string
	At time.Time
}

// ToggleRollback flips completion back after the update failed.
type ToggleRollback struct{ ID string }

// EditOptimistic merges the provided fields.
type EditOptimistic struct {
	ID     string
	Fields domain.Fields
	At     time.Time
}

// EditRollback replaces the collection with a reload after a failed edit.
type EditRollback struct{ Tasks []domain.Task }

// DeleteOptimistic removes a task before the delete is confirmed.
type DeleteOptimistic struct{ ID string }

// DeleteRollback replaces the collection with a reload after a failed delete.
type DeleteRollback struct{ Tasks []domain.Task }

// DeleteRestored puts a task back at its old position when a failed delete
// could not be reconciled by a reload either.
type DeleteRestored struct {
	Task  domain.Task
	Index int
}

// UpdateConfirmed replaces an entry with the canonical copy returned by an
// update. Older versions than the local copy are ignored.
type UpdateConfirmed struct{ Task domain.Task }

// DeleteConfirmed closes a delete request.
type DeleteConfirmed struct{ ID string }

// RemoteInsert prepends a pushed task unless its id is already present.
type RemoteInsert struct{ Task domain.Task }

// RemoteUpdate replaces the matching entry, or inserts it when absent.
type RemoteUpdate struct{ Task domain.Task }

// RemoteDelete removes the matching entry.
type RemoteDelete struct{ ID string }

// OwnerAssigned stamps ownerID on anonymous entries among IDs.
type OwnerAssigned struct {
	IDs     []string
	OwnerID string
}

// Reset empties the collection, used when switching away from an identity.
type Reset struct{}

// SetLoading toggles the loading flag.
type SetLoading struct{ Loading bool }

// SetSaveError sets or clears the save error banner.
type SetSaveError struct{ Err SaveError }

func (Load) actionName() string             { return "load" }
func (LoadErrored) actionName() string      { return "load_errored" }
func (AddOptimistic) actionName() string    { return "add_optimistic" }
func (AddConfirmed) actionName() string     { return "add_confirmed" }
func (AddRolledBack) actionName() string    { return "add_rolled_back" }
func (ToggleOptimistic) actionName() string { return "toggle_optimistic" }
func (ToggleRollback) actionName() string   { return "toggle_rollback" }
func (EditOptimistic) actionName() string   { return "edit_optimistic" }
func (EditRollback) actionName() string     { return "edit_rollback" }
func (DeleteOptimistic) actionName() string { return "delete_optimistic" }
func (DeleteRollback) actionName() string   { return "delete_rollback" }
func (DeleteRestored) actionName() string   { return "delete_restored" }
func (UpdateConfirmed) actionName() string  { return "update_confirmed" }
func (DeleteConfirmed) actionName() string  { return "delete_confirmed" }
func (RemoteInsert) actionName() string     { return "remote_insert" }
func (RemoteUpdate) actionName() string     { return "remote_update" }
func (RemoteDelete) actionName() string     { return "remote_delete" }
func (OwnerAssigned) actionName() string    { return "owner_assigned" }
func (Reset) actionName() string            { return "reset" }
func (SetLoading) actionName() string       { return "set_loading" }
func (SetSaveError) actionName() string     { return "set_save_error" }

// Reduce applies a to s and returns the next state. It is pure: s is not
// modified and no I/O happens.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Load:
		return load(s, a.Tasks)

	case LoadErrored:
		s.IsLoading = false
		s.SaveError = LoadFailed
		return s

	case AddOptimistic:
		if !domain.IsValidTask(a.Task) || s.indexOf(a.Task.ID) >= 0 {
			return s
		}
		s = s.withoutTombstones(a.Task.ID)
		return s.withTasks(prepend(s.Tasks, domain.Normalize(a.Task)))

	case AddConfirmed:
		return addConfirmed(s, a)

	case AddRolledBack:
		i := s.indexOf(a.ID)
		s.SaveError = SaveFailed
		if i < 0 {
			return s
		}
		return s.withTasks(removeAt(s.Tasks, i))

	case ToggleOptimistic:
		i := s.indexOf(a.ID)
		if i < 0 {
			return s
		}
		t := s.Tasks[i]
		t.Completed = !t.Completed
		return s.withTasks(replaceAt(s.Tasks, i, t.Touch(a.At)))

	case ToggleRollback:
		s.SaveError = SaveFailed
		i := s.indexOf(a.ID)
		if i < 0 {
			return s
		}
		t := s.Tasks[i]
		t.Completed = !t.Completed
		return s.withTasks(replaceAt(s.Tasks, i, t))

	case EditOptimistic:
		i := s.indexOf(a.ID)
		if i < 0 {
			return s
		}
		if a.Fields.Text != nil && *a.Fields.Text == "" {
			return s
		}
		return s.withTasks(replaceAt(s.Tasks, i, s.Tasks[i].Apply(a.Fields, a.At)))

	case EditRollback:
		s = load(s, a.Tasks)
		s.SaveError = SaveFailed
		return s

	case DeleteOptimistic:
		i := s.indexOf(a.ID)
		if i < 0 {
			return s
		}
		s = s.withTombstone(a.ID)
		return s.withTasks(removeAt(s.Tasks, i))

	case DeleteRollback:
		s = load(s, a.Tasks)
		s.SaveError = SaveFailed
		return s

	case DeleteRestored:
		s.SaveError = SaveFailed
		if s.indexOf(a.Task.ID) >= 0 {
			return s
		}
		s = s.withoutTombstones(a.Task.ID)
		return s.withTasks(insertAt(s.Tasks, a.Index, a.Task))

	case UpdateConfirmed:
		s.SaveError = SaveErrorNone
		return upsertExisting(s, a.Task)

	case DeleteConfirmed:
		s.SaveError = SaveErrorNone
		return s

	case RemoteInsert:
		if !domain.IsValidTask(a.Task) || s.Deleted(a.Task.ID) || s.indexOf(a.Task.ID) >= 0 {
			return s
		}
		return s.withTasks(prepend(s.Tasks, domain.Normalize(a.Task)))

	case RemoteUpdate:
		if !domain.IsValidTask(a.Task) || s.Deleted(a.Task.ID) {
			return s
		}
		if s.indexOf(a.Task.ID) < 0 {
			return s.withTasks(prepend(s.Tasks, domain.Normalize(a.Task)))
		}
		return upsertExisting(s, a.Task)

	case RemoteDelete:
		s = s.withTombstone(a.ID)
		i := s.indexOf(a.ID)
		if i < 0 {
			return s
		}
		return s.withTasks(removeAt(s.Tasks, i))

	case OwnerAssigned:
		tasks := slices.Clone(s.Tasks)
		for i, t := range tasks {
			if t.IsAnonymous() && slices.Contains(a.IDs, t.ID) {
				tasks[i].OwnerID = a.OwnerID
			}
		}
		return s.withTasks(tasks)

	case Reset:
		return State{IsLoading: s.IsLoading}

	case SetLoading:
		s.IsLoading = a.Loading
		return s

	case SetSaveError:
		s.SaveError = a.Err
		return s

	default:
		return s
	}
}

func load(s State, tasks []domain.Task) State {
	valid, _ := domain.FilterValid(tasks)
	ids := make([]string, 0, len(valid))
	for _, t := range valid {
		ids = append(ids, t.ID)
	}
	s = s.withoutTombstones(ids...)
	s.Tasks = valid
	s.IsLoading = false
	s.SaveError = SaveErrorNone
	return s
}

func addConfirmed(s State, a AddConfirmed) State {
	s.SaveError = SaveErrorNone
	if !domain.IsValidTask(a.Task) {
		return s
	}
	confirmed := domain.Normalize(a.Task)

	i := s.indexOf(a.ProvisionalID)
	if i < 0 {
		// deleted while the create was in flight
		return s
	}
	if confirmed.ID == a.ProvisionalID {
		if s.Tasks[i].Version > confirmed.Version {
			return s
		}
		return s.withTasks(replaceAt(s.Tasks, i, confirmed))
	}

	// The server assigned a new id. If its copy already arrived through the
	// real-time feed the provisional entry is a duplicate.
	if s.indexOf(confirmed.ID) >= 0 {
		return s.withTasks(removeAt(s.Tasks, i))
	}
	return s.withTasks(replaceAt(s.Tasks, i, confirmed))
}

func upsertExisting(s State, t domain.Task) State {
	if !domain.IsValidTask(t) {
		return s
	}
	i := s.indexOf(t.ID)
	if i < 0 {
		return s
	}
	if t.Version != 0 && s.Tasks[i].Version > t.Version {
		return s
	}
	return s.withTasks(replaceAt(s.Tasks, i, domain.Normalize(t)))
}
