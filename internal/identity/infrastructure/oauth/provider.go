// Package oauth talks to a remote identity service that issues tokens
// through the OAuth2 resource owner password grant.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/daytask/internal/identity/domain"
)

// Config describes the identity service.
type Config struct {
	// BaseURL hosts the signup, logout and recover endpoints.
	BaseURL string
	// TokenURL defaults to BaseURL + "/token".
	TokenURL     string
	ClientID     string
	ClientSecret string
	// HTTPClient defaults to a client with a 15 second timeout.
	HTTPClient *http.Client
}

// Provider is a domain.Provider backed by a remote identity service.
type Provider struct {
	base   string
	config *oauth2.Config
	client *http.Client
	logger *slog.Logger
}

// NewProvider creates a provider.
func NewProvider(cfg Config, logger *slog.Logger) (*Provider, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("identity service url is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("identity client id is required")
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = base + "/token"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		base: base,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: client,
		logger: logger.With("component", "oauth_identity"),
	}, nil
}

func (p *Provider) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

// SignUp registers the account, then signs in.
func (p *Provider) SignUp(ctx context.Context, email domain.Email, password string) (domain.Session, error) {
	status, err := p.post(ctx, "/signup", "", map[string]string{"email": email.String(), "password": password})
	if err != nil {
		return domain.Session{}, err
	}
	switch {
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return domain.Session{}, domain.ErrEmailTaken
	case status >= 500:
		return domain.Session{}, fmt.Errorf("signup: %w: status %d", domain.ErrUnavailable, status)
	case status >= 300:
		return domain.Session{}, fmt.Errorf("signup: unexpected status %d", status)
	}
	return p.SignIn(ctx, email, password)
}

// SignIn exchanges the credentials for tokens.
func (p *Provider) SignIn(ctx context.Context, email domain.Email, password string) (domain.Session, error) {
	tok, err := p.config.PasswordCredentialsToken(p.ctx(ctx), email.String(), password)
	if err != nil {
		return domain.Session{}, classify("sign in", err, domain.ErrInvalidCredentials)
	}
	return sessionFromToken(tok, domain.User{Email: email.String()})
}

// SignOut revokes the access token. Sessions the service no longer knows
// count as revoked.
func (p *Provider) SignOut(ctx context.Context, s domain.Session) error {
	status, err := p.post(ctx, "/logout", s.AccessToken, nil)
	if err != nil {
		return err
	}
	switch {
	case status < 300, status == http.StatusUnauthorized, status == http.StatusNotFound:
		return nil
	case status >= 500:
		return fmt.Errorf("logout: %w: status %d", domain.ErrUnavailable, status)
	default:
		return fmt.Errorf("logout: unexpected status %d", status)
	}
}

// Refresh redeems the refresh token of s.
func (p *Provider) Refresh(ctx context.Context, s domain.Session) (domain.Session, error) {
	if s.RefreshToken == "" {
		return domain.Session{}, domain.ErrSessionExpired
	}
	expired := &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		Expiry:       time.Unix(1, 0),
	}
	tok, err := p.config.TokenSource(p.ctx(ctx), expired).Token()
	if err != nil {
		return domain.Session{}, classify("refresh", err, domain.ErrSessionExpired)
	}
	return sessionFromToken(tok, s.User)
}

// ResetPassword asks the service to email a recovery link.
func (p *Provider) ResetPassword(ctx context.Context, email domain.Email) error {
	status, err := p.post(ctx, "/recover", "", map[string]string{"email": email.String()})
	if err != nil {
		return err
	}
	switch {
	case status < 300, status == http.StatusNotFound:
		return nil
	case status >= 500:
		return fmt.Errorf("recover: %w: status %d", domain.ErrUnavailable, status)
	default:
		return fmt.Errorf("recover: unexpected status %d", status)
	}
}

func (p *Provider) post(ctx context.Context, path, accessToken string, body any) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, fmt.Errorf("encode %s: %w", path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.client
	if accessToken != "" {
		client = p.config.Client(p.ctx(ctx), &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", path, domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	p.logger.Debug("identity request", "path", path, "status", resp.StatusCode)
	return resp.StatusCode, nil
}

// classify maps token endpoint failures: a 4xx response becomes rejected,
// anything else means the service could not be reached.
func classify(op string, err error, rejected error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		code := re.Response.StatusCode
		if code >= 400 && code < 500 {
			return fmt.Errorf("%s: %w", op, rejected)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrUnavailable, err)
}

// sessionFromToken reads the user the service returns next to the
// tokens, falling back to known for missing fields.
func sessionFromToken(tok *oauth2.Token, known domain.User) (domain.Session, error) {
	user := known
	if raw, ok := tok.Extra("user").(map[string]any); ok {
		if id, ok := raw["id"].(string); ok && id != "" {
			user.ID = id
		}
		if email, ok := raw["email"].(string); ok && email != "" {
			user.Email = email
		}
		if created, ok := raw["created_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
				user.CreatedAt = t.UTC()
			}
		}
	}
	if id, ok := tok.Extra("user_id").(string); ok && user.ID == "" {
		user.ID = id
	}
	if user.ID == "" {
		return domain.Session{}, errors.New("token response did not identify the user")
	}

	return domain.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
		User:         user,
	}, nil
}

var _ domain.Provider = (*Provider)(nil)
