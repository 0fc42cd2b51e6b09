package domain

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned by sign-up when the email is registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrSessionExpired is returned when a session can no longer be refreshed.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidResetToken is returned for an unknown or expired reset token.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	// ErrNotConfigured is returned when no identity service is configured.
	ErrNotConfigured = errors.New("authentication service not configured")
	// ErrUnavailable is returned when the identity service cannot be reached.
	ErrUnavailable = errors.New("authentication service unavailable")
)

// ErrorKind classifies identity errors for callers.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindValidation    ErrorKind = "validation"
	KindCredentials   ErrorKind = "invalid_credentials"
	KindConflict      ErrorKind = "conflict"
	KindExpired       ErrorKind = "expired"
	KindNotConfigured ErrorKind = "not_configured"
	KindUnavailable   ErrorKind = "unavailable"
	KindInternal      ErrorKind = "internal"
)

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrWeakPassword):
		return KindValidation
	case errors.Is(err, ErrInvalidCredentials):
		return KindCredentials
	case errors.Is(err, ErrEmailTaken):
		return KindConflict
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrInvalidResetToken):
		return KindExpired
	case errors.Is(err, ErrNotConfigured):
		return KindNotConfigured
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}
