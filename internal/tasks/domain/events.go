package domain

import "fmt"

const (
	AggregateType = "Task"

	RoutingKeyInserted = "tasks.task.inserted"
	RoutingKeyUpdated  = "tasks.task.updated"
	RoutingKeyDeleted  = "tasks.task.deleted"
)

// ChangeKind is the kind of a real-time change notification.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// RoutingKey returns the event bus routing key for the kind.
func (k ChangeKind) RoutingKey() string {
	switch k {
	case ChangeInsert:
		return RoutingKeyInserted
	case ChangeUpdate:
		return RoutingKeyUpdated
	case ChangeDelete:
		return RoutingKeyDeleted
	default:
		return ""
	}
}

// ChangeKindFromRoutingKey maps a routing key back to its kind.
func ChangeKindFromRoutingKey(key string) (ChangeKind, error) {
	switch key {
	case RoutingKeyInserted:
		return ChangeInsert, nil
	case RoutingKeyUpdated:
		return ChangeUpdate, nil
	case RoutingKeyDeleted:
		return ChangeDelete, nil
	default:
		return "", fmt.Errorf("unknown routing key %q", key)
	}
}

// ChangeEvent is a server-originated notification about one task.
// Task is set for inserts and updates; deletes carry only TaskID.
type ChangeEvent struct {
	Kind    ChangeKind `json:"kind"`
	Task    *Task      `json:"task,omitempty"`
	TaskID  string     `json:"task_id"`
	OwnerID string     `json:"owner_id,omitempty"`
	Version int64      `json:"version"`
}

// NewUpsertEvent creates an insert or update event for t.
func NewUpsertEvent(kind ChangeKind, t Task) ChangeEvent {
	return ChangeEvent{
		Kind:    kind,
		Task:    &t,
		TaskID:  t.ID,
		OwnerID: t.OwnerID,
		Version: t.Version,
	}
}

// NewDeleteEvent creates a delete event.
func NewDeleteEvent(id, ownerID string, version int64) ChangeEvent {
	return ChangeEvent{
		Kind:    ChangeDelete,
		TaskID:  id,
		OwnerID: ownerID,
		Version: version,
	}
}
