package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/daytask/internal/identity/application/auth"
	"github.com/felixgeelhaar/daytask/internal/tasks/application/tasksync"
	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
	"github.com/felixgeelhaar/daytask/pkg/observability"
)

// ResetConfirmer completes a password reset with an issued token. Only
// locally managed accounts support it.
type ResetConfirmer interface {
	ConfirmReset(ctx context.Context, token, password string) error
}

// App holds the CLI application dependencies.
type App struct {
	Store  *tasksync.Store
	Auth   *auth.Service
	Health *observability.HealthRegistry

	// Resets is nil unless accounts are managed locally.
	Resets ResetConfirmer
}

// NewApp creates a new CLI application.
func NewApp(store *tasksync.Store, authService *auth.Service, health *observability.HealthRegistry) *App {
	return &App{
		Store:  store,
		Auth:   authService,
		Health: health,
	}
}

// SetResetConfirmer enables password reset confirmation.
func (a *App) SetResetConfirmer(r ResetConfirmer) {
	a.Resets = r
}

// SaveError returns the store's save error banner as an error, or nil.
func (a *App) SaveError() error {
	if msg := a.Store.Snapshot().SaveError.Message(); msg != "" {
		return errors.New(msg)
	}
	return nil
}

// ErrSignInRequired is returned when the anonymous task limit is reached.
var ErrSignInRequired = errors.New("anonymous task limit reached: sign up or sign in to add more tasks")

// ErrAmbiguousID is returned when an id prefix matches more than one task.
var ErrAmbiguousID = errors.New("task id prefix is ambiguous")

// ResolveTaskID finds the task whose id equals or starts with ref.
func (a *App) ResolveTaskID(ref string) (domain.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Task{}, fmt.Errorf("task id is required")
	}

	var match domain.Task
	found := 0
	for _, t := range a.Store.Snapshot().Tasks {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			match = t
			found++
		}
	}
	switch found {
	case 0:
		return domain.Task{}, fmt.Errorf("%s: %w", ref, domain.ErrTaskNotFound)
	case 1:
		return match, nil
	default:
		return domain.Task{}, fmt.Errorf("%s: %w", ref, ErrAmbiguousID)
	}
}

// ShortID returns the display form of a task id.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

// RequireApp returns the application or an error when it is not wired.
func RequireApp() (*App, error) {
	if app == nil || app.Store == nil {
		return nil, errors.New("application not initialized")
	}
	return app, nil
}
