package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/daytask/adapter/cli"
)

// ToolDependencies provides the application behind MCP tools.
type ToolDependencies struct {
	App *cli.App
}

// RegisterCLITools registers MCP tools that mirror CLI functionality.
func RegisterCLITools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.App == nil {
		return errors.New("app is required")
	}

	if err := registerCoreTools(srv, deps); err != nil {
		return err
	}
	if err := registerTaskTools(srv, deps); err != nil {
		return err
	}
	if err := registerAuthTools(srv, deps); err != nil {
		return err
	}

	return nil
}

type healthOutput struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func registerCoreTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("cli.health").
		Description("Check datastore, cache and broker health").
		Handler(func(ctx context.Context, input struct{}) (healthOutput, error) {
			return health(ctx, app), nil
		})

	srv.Tool("cli.version").
		Description("Get CLI version information").
		Handler(func(ctx context.Context, input struct{}) (map[string]string, error) {
			return map[string]string{
				"version":   cli.Version,
				"commit":    cli.Commit,
				"buildDate": cli.BuildDate,
			}, nil
		})

	return nil
}

func health(ctx context.Context, app *cli.App) healthOutput {
	if app.Health == nil {
		return healthOutput{Status: "ok"}
	}
	overall := app.Health.GetOverallHealth(ctx)
	out := healthOutput{
		Status: string(overall.Status),
		Checks: make(map[string]string, len(overall.Checks)),
	}
	for name, check := range overall.Checks {
		out.Checks[name] = string(check.Status)
	}
	return out
}
