package domain

import "time"

// User is an authenticated account.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Session is the credential pair issued on sign-in.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is past its expiry at now. A
// session without an expiry never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Valid reports whether s identifies a user.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.User.ID != ""
}

// ChangeKind names a session transition.
type ChangeKind string

const (
	SignedIn       ChangeKind = "signed_in"
	SignedOut      ChangeKind = "signed_out"
	TokenRefreshed ChangeKind = "token_refreshed"
)

// SessionChange is delivered to session listeners. Session is nil after
// sign-out.
type SessionChange struct {
	Kind    ChangeKind
	Session *Session
}

// OwnerID returns the id of the signed-in user, or "" when signed out.
func (c SessionChange) OwnerID() string {
	if c.Session == nil {
		return ""
	}
	return c.Session.User.ID
}
