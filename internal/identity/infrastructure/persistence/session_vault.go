package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/daytask/internal/identity/domain"
	"github.com/felixgeelhaar/daytask/internal/localcache"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/crypto"
)

// SessionKey is the local cache key holding the device session.
const SessionKey = "daytask_session"

// sealedSession is the stored form. Exactly one field is set.
type sealedSession struct {
	Sealed []byte          `json:"sealed,omitempty"`
	Plain  *domain.Session `json:"plain,omitempty"`
}

// SessionVault keeps the signed-in session in the local cache, sealed
// with AES-GCM when a sealer is configured.
type SessionVault struct {
	cache  *localcache.Gateway
	sealer crypto.Sealer
	logger *slog.Logger
}

// NewSessionVault creates a vault. A nil sealer stores the session in
// plain JSON.
func NewSessionVault(cache *localcache.Gateway, sealer crypto.Sealer, logger *slog.Logger) *SessionVault {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionVault{cache: cache, sealer: sealer, logger: logger.With("component", "session_vault")}
}

// Load returns the stored session, or nil if there is none or it cannot
// be opened with the current key.
func (v *SessionVault) Load(ctx context.Context) (*domain.Session, error) {
	var stored sealedSession
	found, err := v.cache.Get(ctx, SessionKey, &stored)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	if stored.Plain != nil {
		if v.sealer != nil {
			v.logger.Warn("ignoring unsealed session while a session key is configured")
			return nil, nil
		}
		return stored.Plain, nil
	}
	if len(stored.Sealed) == 0 {
		return nil, nil
	}
	if v.sealer == nil {
		v.logger.Warn("stored session is sealed but no session key is configured")
		return nil, nil
	}

	raw, err := v.sealer.Open(stored.Sealed, []byte(SessionKey))
	if err != nil {
		v.logger.Warn("discarding session sealed with another key", "error", err)
		return nil, nil
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		v.logger.Warn("discarding unreadable session", "error", err)
		return nil, nil
	}
	return &session, nil
}

// Save stores s.
func (v *SessionVault) Save(ctx context.Context, s domain.Session) error {
	if v.sealer == nil {
		return v.cache.Set(ctx, SessionKey, sealedSession{Plain: &s})
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	sealed, err := v.sealer.Seal(raw, []byte(SessionKey))
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	return v.cache.Set(ctx, SessionKey, sealedSession{Sealed: sealed})
}

// Clear removes the stored session.
func (v *SessionVault) Clear(ctx context.Context) error {
	return v.cache.Remove(ctx, SessionKey)
}
