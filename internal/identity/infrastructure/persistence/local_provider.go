// Package persistence stores accounts, sessions and the device session.
package persistence

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/daytask/internal/identity/domain"
	"github.com/felixgeelhaar/daytask/internal/shared/application"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/database"
)

const (
	defaultSessionTTL = time.Hour
	defaultResetTTL   = time.Hour
	tokenBytes        = 32
)

// ResetNotifier delivers password reset tokens to the account holder.
type ResetNotifier interface {
	SendReset(ctx context.Context, email domain.Email, token string) error
}

// WriterNotifier writes reset tokens to W. It serves single-user
// installations where the account holder is at the terminal.
type WriterNotifier struct {
	W io.Writer
}

func (n WriterNotifier) SendReset(_ context.Context, email domain.Email, token string) error {
	_, err := fmt.Fprintf(n.W, "Password reset token for %s: %s\n", email, token)
	return err
}

// LocalOption configures a LocalProvider.
type LocalOption func(*LocalProvider)

// WithSessionTTL sets the access token lifetime.
func WithSessionTTL(d time.Duration) LocalOption {
	return func(p *LocalProvider) { p.sessionTTL = d }
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) LocalOption {
	return func(p *LocalProvider) { p.cost = cost }
}

// WithProviderClock overrides the clock.
func WithProviderClock(now func() time.Time) LocalOption {
	return func(p *LocalProvider) { p.now = now }
}

// LocalProvider is an identity provider over the users, sessions and
// password_resets tables. Only hashes of issued tokens are stored.
type LocalProvider struct {
	conn       database.Connection
	uow        application.UnitOfWork
	notifier   ResetNotifier
	logger     *slog.Logger
	now        func() time.Time
	sessionTTL time.Duration
	cost       int
}

// NewLocalProvider creates a provider on conn. Reset tokens go to
// notifier; with a nil notifier reset requests are only logged.
func NewLocalProvider(conn database.Connection, notifier ResetNotifier, logger *slog.Logger, opts ...LocalOption) *LocalProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &LocalProvider{
		conn:       conn,
		uow:        database.NewUnitOfWork(conn),
		notifier:   notifier,
		logger:     logger.With("component", "local_identity"),
		now:        time.Now,
		sessionTTL: defaultSessionTTL,
		cost:       bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *LocalProvider) q(query string) string {
	return database.Rebind(p.conn.Driver(), query)
}

func (p *LocalProvider) ts(t time.Time) any {
	return database.TimeArg(p.conn.Driver(), t)
}

func (p *LocalProvider) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, p.conn)
}

// SignUp creates an account and its first session.
func (p *LocalProvider) SignUp(ctx context.Context, email domain.Email, password string) (domain.Session, error) {
	if err := domain.ValidatePassword(password); err != nil {
		return domain.Session{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return domain.Session{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:        uuid.NewString(),
		Email:     email.String(),
		CreatedAt: p.now().UTC(),
	}

	var session domain.Session
	err = application.WithUnitOfWork(ctx, p.uow, func(ctx context.Context) error {
		_, err := p.exec(ctx).Exec(ctx,
			p.q(`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`),
			user.ID, user.Email, string(hash), p.ts(user.CreatedAt),
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return domain.ErrEmailTaken
			}
			return wrapErr("create user", err)
		}
		session, err = p.issue(ctx, user)
		return err
	})
	if err != nil {
		return domain.Session{}, err
	}

	p.logger.Info("account created", "user_id", user.ID)
	return session, nil
}

// SignIn verifies the password and issues a session.
func (p *LocalProvider) SignIn(ctx context.Context, email domain.Email, password string) (domain.Session, error) {
	var (
		user      domain.User
		hash      string
		createdAt database.Time
	)
	err := p.exec(ctx).QueryRow(ctx,
		p.q(`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`),
		email.String(),
	).Scan(&user.ID, &user.Email, &hash, &createdAt)
	if err != nil {
		if database.IsNoRows(err) {
			return domain.Session{}, domain.ErrInvalidCredentials
		}
		return domain.Session{}, wrapErr("find user", err)
	}
	user.CreatedAt = createdAt.Time

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return domain.Session{}, domain.ErrInvalidCredentials
	}
	return p.issue(ctx, user)
}

// SignOut deletes the session.
func (p *LocalProvider) SignOut(ctx context.Context, s domain.Session) error {
	_, err := p.exec(ctx).Exec(ctx, p.q(`DELETE FROM sessions WHERE token_hash = ?`), hashToken(s.AccessToken))
	if err != nil {
		return wrapErr("delete session", err)
	}
	return nil
}

// Refresh rotates the session identified by the refresh token of s.
func (p *LocalProvider) Refresh(ctx context.Context, s domain.Session) (domain.Session, error) {
	if s.RefreshToken == "" {
		return domain.Session{}, domain.ErrSessionExpired
	}

	var session domain.Session
	err := application.WithUnitOfWork(ctx, p.uow, func(ctx context.Context) error {
		var (
			user      domain.User
			createdAt database.Time
		)
		refreshHash := hashToken(s.RefreshToken)
		err := p.exec(ctx).QueryRow(ctx, p.q(
			`SELECT u.id, u.email, u.created_at FROM sessions s
			   JOIN users u ON u.id = s.user_id
			  WHERE s.refresh_token_hash = ?`),
			refreshHash,
		).Scan(&user.ID, &user.Email, &createdAt)
		if err != nil {
			if database.IsNoRows(err) {
				return domain.ErrSessionExpired
			}
			return wrapErr("find session", err)
		}
		user.CreatedAt = createdAt.Time

		if _, err := p.exec(ctx).Exec(ctx, p.q(`DELETE FROM sessions WHERE refresh_token_hash = ?`), refreshHash); err != nil {
			return wrapErr("rotate session", err)
		}
		session, err = p.issue(ctx, user)
		return err
	})
	return session, err
}

// ResetPassword issues a single-use reset token and hands it to the
// notifier. Unknown emails succeed silently.
func (p *LocalProvider) ResetPassword(ctx context.Context, email domain.Email) error {
	var userID string
	err := p.exec(ctx).QueryRow(ctx, p.q(`SELECT id FROM users WHERE email = ?`), email.String()).Scan(&userID)
	if err != nil {
		if database.IsNoRows(err) {
			p.logger.Debug("password reset for unknown email")
			return nil
		}
		return wrapErr("find user", err)
	}

	token, err := newToken()
	if err != nil {
		return err
	}
	expires := p.now().Add(defaultResetTTL)

	err = application.WithUnitOfWork(ctx, p.uow, func(ctx context.Context) error {
		if _, err := p.exec(ctx).Exec(ctx, p.q(`DELETE FROM password_resets WHERE user_id = ?`), userID); err != nil {
			return wrapErr("clear resets", err)
		}
		_, err := p.exec(ctx).Exec(ctx,
			p.q(`INSERT INTO password_resets (token_hash, user_id, expires_at) VALUES (?, ?, ?)`),
			hashToken(token), userID, p.ts(expires),
		)
		return wrapErr("create reset", err)
	})
	if err != nil {
		return err
	}

	p.logger.Info("password reset requested", "user_id", userID)
	if p.notifier == nil {
		return nil
	}
	if err := p.notifier.SendReset(ctx, email, token); err != nil {
		return fmt.Errorf("send reset: %w", err)
	}
	return nil
}

// ConfirmReset sets a new password using a reset token. Every session of
// the account is revoked.
func (p *LocalProvider) ConfirmReset(ctx context.Context, token, password string) error {
	if err := domain.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return application.WithUnitOfWork(ctx, p.uow, func(ctx context.Context) error {
		var (
			userID  string
			expires database.Time
		)
		err := p.exec(ctx).QueryRow(ctx,
			p.q(`SELECT user_id, expires_at FROM password_resets WHERE token_hash = ?`),
			hashToken(token),
		).Scan(&userID, &expires)
		if err != nil {
			if database.IsNoRows(err) {
				return domain.ErrInvalidResetToken
			}
			return wrapErr("find reset", err)
		}
		if !p.now().Before(expires.Time) {
			return domain.ErrInvalidResetToken
		}

		statements := []struct {
			op    string
			query string
			args  []any
		}{
			{"update password", `UPDATE users SET password_hash = ? WHERE id = ?`, []any{string(hash), userID}},
			{"clear resets", `DELETE FROM password_resets WHERE user_id = ?`, []any{userID}},
			{"revoke sessions", `DELETE FROM sessions WHERE user_id = ?`, []any{userID}},
		}
		for _, st := range statements {
			if _, err := p.exec(ctx).Exec(ctx, p.q(st.query), st.args...); err != nil {
				return wrapErr(st.op, err)
			}
		}
		p.logger.Info("password reset completed", "user_id", userID)
		return nil
	})
}

func (p *LocalProvider) issue(ctx context.Context, user domain.User) (domain.Session, error) {
	access, err := newToken()
	if err != nil {
		return domain.Session{}, err
	}
	refresh, err := newToken()
	if err != nil {
		return domain.Session{}, err
	}
	now := p.now()
	session := domain.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(p.sessionTTL).UTC(),
		User:         user,
	}

	_, err = p.exec(ctx).Exec(ctx,
		p.q(`INSERT INTO sessions (token_hash, refresh_token_hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`),
		hashToken(access), hashToken(refresh), user.ID, p.ts(session.ExpiresAt), p.ts(now),
	)
	if err != nil {
		return domain.Session{}, wrapErr("create session", err)
	}
	return session, nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ domain.Provider = (*LocalProvider)(nil)
