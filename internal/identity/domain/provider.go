package domain

import "context"

// Provider is the identity service the auth service delegates to.
// Implementations are stateless; the caller owns the current session.
type Provider interface {
	SignUp(ctx context.Context, email Email, password string) (Session, error)
	SignIn(ctx context.Context, email Email, password string) (Session, error)
	// SignOut revokes s. Revoking an unknown session is not an error.
	SignOut(ctx context.Context, s Session) error
	// Refresh exchanges the refresh token of s for a new session.
	Refresh(ctx context.Context, s Session) (Session, error)
	// ResetPassword starts a password reset. It succeeds for unknown
	// emails so callers cannot probe for accounts.
	ResetPassword(ctx context.Context, email Email) error
}

// OfflineProvider is used when no identity service is configured.
type OfflineProvider struct{}

func (OfflineProvider) SignUp(context.Context, Email, string) (Session, error) {
	return Session{}, ErrNotConfigured
}

func (OfflineProvider) SignIn(context.Context, Email, string) (Session, error) {
	return Session{}, ErrNotConfigured
}

func (OfflineProvider) SignOut(context.Context, Session) error { return ErrNotConfigured }

func (OfflineProvider) Refresh(context.Context, Session) (Session, error) {
	return Session{}, ErrNotConfigured
}

func (OfflineProvider) ResetPassword(context.Context, Email) error { return ErrNotConfigured }

var _ Provider = OfflineProvider{}
