package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/daytask/adapter/cli"
	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

// RegisterResources registers MCP resources that expose task data.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("daytask://tasks").
		Name("Tasks").
		Description("All tasks of the current owner, newest first").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			return jsonResource(uri, func() (any, error) {
				return filteredTasks(app, domain.Filter{})
			})
		})

	srv.Resource("daytask://tasks/active").
		Name("Active Tasks").
		Description("Tasks not yet completed, highest priority first").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			return jsonResource(uri, func() (any, error) {
				return filteredTasks(app, domain.Filter{Status: domain.StatusActive, SortByPriority: true})
			})
		})

	srv.Resource("daytask://tasks/completed").
		Name("Completed Tasks").
		Description("Tasks marked done").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			return jsonResource(uri, func() (any, error) {
				return filteredTasks(app, domain.Filter{Status: domain.StatusCompleted})
			})
		})

	srv.Resource("daytask://stats").
		Name("Task Statistics").
		Description("Task counts by status, priority and category").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			return jsonResource(uri, func() (any, error) {
				store, err := requireStore(app)
				if err != nil {
					return nil, err
				}
				return domain.ComputeStats(store.Snapshot().Tasks), nil
			})
		})

	srv.Resource("daytask://session").
		Name("Session").
		Description("The signed-in account and the anonymous task quota").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			return jsonResource(uri, func() (any, error) {
				return sessionStatus(ctx, app)
			})
		})

	return nil
}

func filteredTasks(app *cli.App, f domain.Filter) ([]domain.Task, error) {
	store, err := requireStore(app)
	if err != nil {
		return nil, err
	}
	return f.Apply(store.Snapshot().Tasks), nil
}

func jsonResource(uri string, load func() (any, error)) (*mcp.ResourceContent, error) {
	v, err := load()
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
