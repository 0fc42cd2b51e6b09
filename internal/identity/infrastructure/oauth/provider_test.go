package oauth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/daytask/internal/identity/domain"
	"github.com/felixgeelhaar/daytask/internal/identity/infrastructure/oauth"
)

// identityServer is a minimal password-grant identity service.
type identityServer struct {
	mu        sync.Mutex
	passwords map[string]string
	refresh   map[string]string
	loggedOut []string
	recovered []string
	issued    int
	down      bool
}

func newIdentityServer(t *testing.T) (*identityServer, *httptest.Server) {
	s := &identityServer{passwords: map[string]string{}, refresh: map[string]string{}}
	srv := httptest.NewServer(s.routes())
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *identityServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", s.token)
	mux.HandleFunc("POST /signup", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.passwords[body["email"]]; ok {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		s.passwords[body["email"]] = body["password"]
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.loggedOut = append(s.loggedOut, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /recover", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.recovered = append(s.recovered, body["email"])
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *identityServer) token(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("client_id") != "daytask-cli" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var email string
	switch r.PostForm.Get("grant_type") {
	case "password":
		email = r.PostForm.Get("username")
		if want, ok := s.passwords[email]; !ok || want != r.PostForm.Get("password") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
	case "refresh_token":
		var ok bool
		email, ok = s.refresh[r.PostForm.Get("refresh_token")]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		delete(s.refresh, r.PostForm.Get("refresh_token"))
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.issued++
	refresh := fmt.Sprintf("%s-refresh-%d", email, s.issued)
	s.refresh[refresh] = email
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  email + "-access",
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    3600,
		"user":          map[string]any{"id": "id-" + email, "email": email, "created_at": "2026-03-01T09:00:00Z"},
	})
}

func newProvider(t *testing.T, url string) *oauth.Provider {
	t.Helper()
	p, err := oauth.NewProvider(oauth.Config{BaseURL: url + "/", ClientID: "daytask-cli"}, nil)
	require.NoError(t, err)
	return p
}

func mustEmail(t *testing.T, s string) domain.Email {
	t.Helper()
	e, err := domain.NewEmail(s)
	require.NoError(t, err)
	return e
}

func TestNewProvider_Validates(t *testing.T) {
	_, err := oauth.NewProvider(oauth.Config{ClientID: "x"}, nil)
	assert.Error(t, err)
	_, err = oauth.NewProvider(oauth.Config{BaseURL: "http://auth.example"}, nil)
	assert.Error(t, err)
}

func TestProvider_SignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	_, srv := newIdentityServer(t)
	p := newProvider(t, srv.URL)
	ada := mustEmail(t, "ada@example.com")

	s, err := p.SignUp(ctx, ada, "secret")
	require.NoError(t, err)
	assert.Equal(t, "id-ada@example.com", s.User.ID)
	assert.Equal(t, "ada@example.com-access", s.AccessToken)
	assert.NotEmpty(t, s.RefreshToken)
	assert.False(t, s.ExpiresAt.IsZero())
	assert.Equal(t, 2026, s.User.CreatedAt.Year())

	_, err = p.SignUp(ctx, ada, "secret")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	_, err = p.SignIn(ctx, ada, "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	s, err = p.SignIn(ctx, ada, "secret")
	require.NoError(t, err)
	assert.Equal(t, "id-ada@example.com", s.User.ID)
}

func TestProvider_Refresh(t *testing.T) {
	ctx := context.Background()
	_, srv := newIdentityServer(t)
	p := newProvider(t, srv.URL)

	first, err := p.SignUp(ctx, mustEmail(t, "ada@example.com"), "secret")
	require.NoError(t, err)

	second, err := p.Refresh(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = p.Refresh(ctx, first)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	_, err = p.Refresh(ctx, domain.Session{})
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestProvider_SignOutSendsBearerToken(t *testing.T) {
	ctx := context.Background()
	server, srv := newIdentityServer(t)
	p := newProvider(t, srv.URL)

	require.NoError(t, p.SignOut(ctx, domain.Session{AccessToken: "tok"}))
	require.Len(t, server.loggedOut, 1)
	assert.Equal(t, "Bearer tok", server.loggedOut[0])
}

func TestProvider_ResetPassword(t *testing.T) {
	server, srv := newIdentityServer(t)
	p := newProvider(t, srv.URL)

	require.NoError(t, p.ResetPassword(context.Background(), mustEmail(t, "ada@example.com")))
	assert.Equal(t, []string{"ada@example.com"}, server.recovered)
}

func TestProvider_Unavailable(t *testing.T) {
	ctx := context.Background()
	server, srv := newIdentityServer(t)
	p := newProvider(t, srv.URL)
	server.down = true

	_, err := p.SignIn(ctx, mustEmail(t, "ada@example.com"), "secret")
	assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))

	srv.Close()
	err = p.ResetPassword(ctx, mustEmail(t, "ada@example.com"))
	assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))
}
