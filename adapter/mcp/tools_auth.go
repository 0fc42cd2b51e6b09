package mcp

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/daytask/adapter/cli"
)

type authStatus struct {
	Authenticated      bool   `json:"authenticated"`
	UserID             string `json:"user_id,omitempty"`
	Email              string `json:"email,omitempty"`
	AnonymousTaskCount int    `json:"anonymous_task_count"`
	CanAddTask         bool   `json:"can_add_task"`
}

func registerAuthTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("auth.status").
		Description("Show the signed-in account and the anonymous task quota").
		Handler(func(ctx context.Context, input struct{}) (authStatus, error) {
			return sessionStatus(ctx, app)
		})

	return nil
}

// Signing in requires a password, so it is left to the CLI.
func sessionStatus(ctx context.Context, app *cli.App) (authStatus, error) {
	store, err := requireStore(app)
	if err != nil {
		return authStatus{}, err
	}
	status := authStatus{
		AnonymousTaskCount: store.AnonymousTaskCount(),
		CanAddTask:         store.CanAddTask(),
	}
	if app.Auth == nil {
		return status, nil
	}

	user, err := app.Auth.CurrentUser(ctx)
	if err != nil {
		return authStatus{}, err
	}
	if user != nil {
		status.Authenticated = true
		status.UserID = user.ID
		status.Email = user.Email
	}
	return status, nil
}
