package auth_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/daytask/internal/identity/application/auth"
	"github.com/felixgeelhaar/daytask/internal/identity/domain"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) SignUp(ctx context.Context, email domain.Email, password string) (domain.Session, error) {
	args := m.Called(ctx, email.String(), password)
	return args.Get(0).(domain.Session), args.Error(1)
}

func (m *mockProvider) SignIn(ctx context.Context, email domain.Email, password string) (domain.Session, error) {
	args := m.Called(ctx, email.String(), password)
	return args.Get(0).(domain.Session), args.Error(1)
}

func (m *mockProvider) SignOut(ctx context.Context, s domain.Session) error {
	return m.Called(ctx, s.AccessToken).Error(0)
}

func (m *mockProvider) Refresh(ctx context.Context, s domain.Session) (domain.Session, error) {
	args := m.Called(ctx, s.RefreshToken)
	return args.Get(0).(domain.Session), args.Error(1)
}

func (m *mockProvider) ResetPassword(ctx context.Context, email domain.Email) error {
	return m.Called(ctx, email.String()).Error(0)
}

type memoryStore struct {
	mu      sync.Mutex
	session *domain.Session
	saves   int
	loadErr error
}

func (m *memoryStore) Load(context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *memoryStore) Save(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &s
	m.saves++
	return nil
}

func (m *memoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func session(token, userID string, expires time.Time) domain.Session {
	return domain.Session{
		AccessToken:  token,
		RefreshToken: "refresh-" + token,
		ExpiresAt:    expires,
		User:         domain.User{ID: userID, Email: userID + "@example.com"},
	}
}

func newService(p domain.Provider, store auth.SessionStore) *auth.Service {
	return auth.NewService(p, store, nil, auth.WithClock(func() time.Time { return now }))
}

func TestService_SignInPersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	p := new(mockProvider)
	store := &memoryStore{}
	svc := newService(p, store)

	var changes []domain.SessionChange
	svc.OnSessionChange(func(c domain.SessionChange) { changes = append(changes, c) })

	issued := session("a1", "u1", now.Add(time.Hour))
	p.On("SignIn", ctx, "ada@example.com", "secret").Return(issued, nil)

	res, err := svc.SignIn(ctx, " Ada@Example.com ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)
	assert.Equal(t, "a1", res.Session.AccessToken)

	require.Len(t, changes, 1)
	assert.Equal(t, domain.SignedIn, changes[0].Kind)
	assert.Equal(t, "u1", changes[0].OwnerID())

	require.NotNil(t, store.session)
	assert.Equal(t, "a1", store.session.AccessToken)
	assert.True(t, svc.IsAuthenticated(ctx))

	user, err := svc.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)
	p.AssertExpectations(t)
}

func TestService_SignInErrors(t *testing.T) {
	ctx := context.Background()
	p := new(mockProvider)
	svc := newService(p, nil)

	_, err := svc.SignIn(ctx, "not-an-email", "secret")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	p.On("SignIn", ctx, "ada@example.com", "wrong").Return(domain.Session{}, domain.ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, "ada@example.com", "wrong")
	assert.Equal(t, domain.KindCredentials, domain.KindOf(err))
	assert.False(t, svc.IsAuthenticated(ctx))

	p.AssertNumberOfCalls(t, "SignIn", 1)
}

func TestService_SignUp(t *testing.T) {
	ctx := context.Background()
	p := new(mockProvider)
	svc := newService(p, nil)

	_, err := svc.SignUp(ctx, "ada@example.com", "123")
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	p.On("SignUp", ctx, "taken@example.com", "secret").Return(domain.Session{}, domain.ErrEmailTaken)
	_, err = svc.SignUp(ctx, "taken@example.com", "secret")
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	p.On("SignUp", ctx, "ada@example.com", "secret").Return(session("a1", "u1", now.Add(time.Hour)), nil)
	res, err := svc.SignUp(ctx, "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)
	assert.True(t, svc.IsAuthenticated(ctx))
}

func TestService_SignOut(t *testing.T) {
	ctx := context.Background()
	p := new(mockProvider)
	store := &memoryStore{}
	svc := newService(p, store)

	// signed out already
	require.NoError(t, svc.SignOut(ctx))

	p.On("SignIn", ctx, "ada@example.com", "secret").Return(session("a1", "u1", now.Add(time.Hour)), nil)
	p.On("SignOut", ctx, "a1").Return(nil)
	_, err := svc.SignIn(ctx, "ada@example.com", "secret")
	require.NoError(t, err)

	var last domain.SessionChange
	svc.OnSessionChange(func(c domain.SessionChange) { last = c })

	require.NoError(t, svc.SignOut(ctx))
	assert.Equal(t, domain.SignedOut, last.Kind)
	assert.Empty(t, last.OwnerID())
	assert.Nil(t, store.session)
	assert.False(t, svc.IsAuthenticated(ctx))
	p.AssertExpectations(t)
}

func TestService_SignOutClearsLocallyWhenRevokeFails(t *testing.T) {
	ctx := context.Background()
	p := new(mockProvider)
	store := &memoryStore{}
	svc := newService(p, store)

	p.On("SignIn", ctx, "ada@example.com", "secret").Return(session("a1", "u1", now.Add(time.Hour)), nil)
	p.On("SignOut", ctx, "a1").Return(fmt.Errorf("logout: %w", domain.ErrUnavailable))
	_, err := svc.SignIn(ctx, "ada@example.com", "secret")
	require.NoError(t, err)

	err = svc.SignOut(ctx)
	assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))
	assert.Nil(t, store.session)
	assert.False(t, svc.IsAuthenticated(ctx))
}

func TestService_RestoresStoredSession(t *testing.T) {
	ctx := context.Background()
	stored := session("a1", "u1", now.Add(time.Hour))
	store := &memoryStore{session: &stored}
	svc := newService(new(mockProvider), store)

	s, err := svc.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "u1", s.User.ID)
}

func TestService_IgnoresUnreadableStore(t *testing.T) {
	store := &memoryStore{loadErr: errors.New("corrupt")}
	svc := newService(new(mockProvider), store)

	s, err := svc.Session(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestService_RefreshesExpiredSession(t *testing.T) {
	ctx := context.Background()
	stored := session("old", "u1", now.Add(-time.Minute))
	store := &memoryStore{session: &stored}
	p := new(mockProvider)
	svc := newService(p, store)

	var kinds []domain.ChangeKind
	svc.OnSessionChange(func(c domain.SessionChange) { kinds = append(kinds, c.Kind) })

	p.On("Refresh", ctx, "refresh-old").Return(session("new", "u1", now.Add(time.Hour)), nil).Once()

	s, err := svc.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "new", s.AccessToken)
	assert.Equal(t, "new", store.session.AccessToken)
	assert.Equal(t, []domain.ChangeKind{domain.TokenRefreshed}, kinds)

	// the refreshed session is served without another round trip
	_, err = svc.Session(ctx)
	require.NoError(t, err)
	p.AssertExpectations(t)
}

func TestService_ExpiredSessionThatCannotRefreshSignsOut(t *testing.T) {
	ctx := context.Background()
	stored := session("old", "u1", now.Add(-time.Minute))
	store := &memoryStore{session: &stored}
	p := new(mockProvider)
	svc := newService(p, store)

	var kinds []domain.ChangeKind
	svc.OnSessionChange(func(c domain.SessionChange) { kinds = append(kinds, c.Kind) })
	p.On("Refresh", ctx, "refresh-old").Return(domain.Session{}, domain.ErrSessionExpired)

	s, err := svc.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, store.session)
	assert.Equal(t, []domain.ChangeKind{domain.SignedOut}, kinds)
}

func TestService_ExpiredSessionKeptWhileOffline(t *testing.T) {
	ctx := context.Background()
	stored := session("old", "u1", now.Add(-time.Minute))
	p := new(mockProvider)
	svc := newService(p, &memoryStore{session: &stored})

	p.On("Refresh", ctx, "refresh-old").Return(domain.Session{}, domain.ErrUnavailable)

	s, err := svc.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "old", s.AccessToken)
}

func TestService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	p := new(mockProvider)
	svc := newService(p, nil)

	assert.ErrorIs(t, svc.ResetPassword(ctx, "nope"), domain.ErrInvalidEmail)

	p.On("ResetPassword", ctx, "ada@example.com").Return(nil)
	require.NoError(t, svc.ResetPassword(ctx, "ADA@example.com"))
	p.AssertExpectations(t)
}

func TestService_OfflineProvider(t *testing.T) {
	svc := auth.NewService(nil, nil, nil)

	_, err := svc.SignIn(context.Background(), "ada@example.com", "secret")
	assert.Equal(t, domain.KindNotConfigured, domain.KindOf(err))
}

func TestService_OnSessionChangeCancel(t *testing.T) {
	ctx := context.Background()
	p := new(mockProvider)
	svc := newService(p, nil)
	p.On("SignIn", ctx, "ada@example.com", "secret").Return(session("a1", "u1", now.Add(time.Hour)), nil)

	calls := 0
	cancel := svc.OnSessionChange(func(domain.SessionChange) { calls++ })
	cancel()
	cancel()

	_, err := svc.SignIn(ctx, "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Zero(t, calls)
}
