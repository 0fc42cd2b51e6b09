// Package auth owns the current session: it signs users in and out through
// a Provider, keeps the session persisted across restarts and tells
// listeners when the signed-in user changes.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/daytask/internal/identity/domain"
)

// SessionStore persists the current session on the device.
type SessionStore interface {
	// Load returns nil when no session is stored.
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, s domain.Session) error
	Clear(ctx context.Context) error
}

// Result is the outcome of a successful sign-up or sign-in.
type Result struct {
	User    domain.User
	Session domain.Session
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the application-facing identity API.
type Service struct {
	provider domain.Provider
	store    SessionStore
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	current   *domain.Session
	restored  bool
	listeners map[int]func(domain.SessionChange)
	nextID    int
}

// NewService creates an auth service. A nil store keeps the session in
// memory only.
func NewService(provider domain.Provider, store SessionStore, logger *slog.Logger, opts ...Option) *Service {
	if provider == nil {
		provider = domain.OfflineProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		provider:  provider,
		store:     store,
		logger:    logger.With("component", "auth"),
		now:       time.Now,
		listeners: make(map[int]func(domain.SessionChange)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignUp registers a new account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string) (Result, error) {
	addr, err := domain.NewEmail(email)
	if err != nil {
		return Result{}, err
	}
	if err := domain.ValidatePassword(password); err != nil {
		return Result{}, err
	}

	session, err := s.provider.SignUp(ctx, addr, password)
	if err != nil {
		s.logger.Warn("sign up failed", "kind", domain.KindOf(err), "error", err)
		return Result{}, fmt.Errorf("sign up: %w", err)
	}
	s.establish(ctx, domain.SignedIn, session)
	s.logger.Info("signed up", "user_id", session.User.ID)
	return Result{User: session.User, Session: session}, nil
}

// SignIn authenticates with email and password.
func (s *Service) SignIn(ctx context.Context, email, password string) (Result, error) {
	addr, err := domain.NewEmail(email)
	if err != nil {
		return Result{}, err
	}

	session, err := s.provider.SignIn(ctx, addr, password)
	if err != nil {
		s.logger.Warn("sign in failed", "kind", domain.KindOf(err), "error", err)
		return Result{}, fmt.Errorf("sign in: %w", err)
	}
	s.establish(ctx, domain.SignedIn, session)
	s.logger.Info("signed in", "user_id", session.User.ID)
	return Result{User: session.User, Session: session}, nil
}

// SignOut revokes the current session. The local session is cleared even
// when the provider cannot be reached.
func (s *Service) SignOut(ctx context.Context) error {
	current, err := s.Session(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	revokeErr := s.provider.SignOut(ctx, *current)
	if revokeErr != nil {
		s.logger.Warn("revoking session failed", "user_id", current.User.ID, "error", revokeErr)
	}

	s.mu.Lock()
	s.current = nil
	s.restored = true
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Clear(ctx); err != nil {
			s.logger.Warn("clearing stored session failed", "error", err)
		}
	}
	s.notify(domain.SessionChange{Kind: domain.SignedOut})
	s.logger.Info("signed out", "user_id", current.User.ID)

	if revokeErr != nil && domain.KindOf(revokeErr) != domain.KindNotConfigured {
		return fmt.Errorf("sign out: %w", revokeErr)
	}
	return nil
}

// Session returns the current session, restoring it from the store on
// first use and refreshing it when expired. It returns nil when signed out.
func (s *Service) Session(ctx context.Context) (*domain.Session, error) {
	s.mu.Lock()
	current, restored := s.current, s.restored
	s.mu.Unlock()

	if !restored {
		loaded, err := s.restore(ctx)
		if err != nil {
			return nil, err
		}
		current = loaded
	}
	if current == nil || !current.Expired(s.now()) {
		return current, nil
	}

	refreshed, err := s.provider.Refresh(ctx, *current)
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindUnavailable, domain.KindNotConfigured:
			// keep the stale session; a later call may succeed
			s.logger.Warn("session refresh unavailable", "error", err)
			return current, nil
		}
		s.logger.Info("session expired", "user_id", current.User.ID, "error", err)
		s.drop(ctx)
		return nil, nil
	}
	s.establish(ctx, domain.TokenRefreshed, refreshed)
	return &refreshed, nil
}

// CurrentUser returns the signed-in user, or nil.
func (s *Service) CurrentUser(ctx context.Context) (*domain.User, error) {
	session, err := s.Session(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	user := session.User
	return &user, nil
}

// IsAuthenticated reports whether a user is signed in.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	session, err := s.Session(ctx)
	return err == nil && session != nil
}

// ResetPassword starts a password reset for email.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	addr, err := domain.NewEmail(email)
	if err != nil {
		return err
	}
	if err := s.provider.ResetPassword(ctx, addr); err != nil {
		s.logger.Warn("password reset failed", "kind", domain.KindOf(err), "error", err)
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// OnSessionChange registers fn for session transitions and returns a
// function that removes it. fn runs on the goroutine that caused the
// change.
func (s *Service) OnSessionChange(fn func(domain.SessionChange)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) restore(ctx context.Context) (*domain.Session, error) {
	var loaded *domain.Session
	if s.store != nil {
		stored, err := s.store.Load(ctx)
		if err != nil {
			s.logger.Warn("loading stored session failed", "error", err)
		} else if stored != nil && stored.Valid() {
			loaded = stored
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restored {
		// a concurrent sign-in won
		return s.current, nil
	}
	s.current = loaded
	s.restored = true
	return loaded, nil
}

func (s *Service) establish(ctx context.Context, kind domain.ChangeKind, session domain.Session) {
	s.mu.Lock()
	s.current = &session
	s.restored = true
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(ctx, session); err != nil {
			s.logger.Warn("persisting session failed", "error", err)
		}
	}
	snapshot := session
	s.notify(domain.SessionChange{Kind: kind, Session: &snapshot})
}

func (s *Service) drop(ctx context.Context) {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.Clear(ctx); err != nil {
			s.logger.Warn("clearing stored session failed", "error", err)
		}
	}
	s.notify(domain.SessionChange{Kind: domain.SignedOut})
}

func (s *Service) notify(change domain.SessionChange) {
	s.mu.Lock()
	targets := make([]func(domain.SessionChange), 0, len(s.listeners))
	for _, fn := range s.listeners {
		targets = append(targets, fn)
	}
	s.mu.Unlock()

	for _, fn := range targets {
		fn(change)
	}
}
