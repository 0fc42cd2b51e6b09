package domain

import "errors"

var (
	// ErrInvalidTask marks a malformed task record or rejected input.
	ErrInvalidTask = errors.New("invalid task")
	// ErrTaskNotFound is returned when a task id is unknown.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTextTooLong is returned when task text exceeds MaxTextLength.
	ErrTextTooLong = errors.New("task description is too long")
	// ErrNotesTooLong is returned when notes exceed MaxNotesLength.
	ErrNotesTooLong = errors.New("task notes are too long")

	// ErrPersistence wraps failures of a create/update/delete/list request.
	ErrPersistence = errors.New("persistence failed")
	// ErrNotConfigured is returned by gateways running without a backing service.
	ErrNotConfigured = errors.New("remote gateway not configured")
	// ErrUnavailable is returned when the remote service cannot be reached.
	ErrUnavailable = errors.New("remote gateway unavailable")
	// ErrAuthRequired signals the anonymous quota is exhausted.
	ErrAuthRequired = errors.New("authentication required")
	// ErrMigration wraps anonymous task migration failures.
	ErrMigration = errors.New("anonymous task migration failed")
)

// ErrorKind classifies errors crossing the gateway and core boundaries.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindPersistence   ErrorKind = "persistence"
	KindNotConfigured ErrorKind = "not_configured"
	KindUnavailable   ErrorKind = "unavailable"
	KindAuthRequired  ErrorKind = "auth_required"
	KindMigration     ErrorKind = "migration"
)

// KindOf classifies err. Unrecognized errors are persistence failures.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMigration):
		return KindMigration
	case errors.Is(err, ErrNotConfigured):
		return KindNotConfigured
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrAuthRequired):
		return KindAuthRequired
	case errors.Is(err, ErrTaskNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidTask),
		errors.Is(err, ErrTextTooLong),
		errors.Is(err, ErrNotesTooLong):
		return KindValidation
	default:
		return KindPersistence
	}
}
