package mcp

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/daytask/adapter/cli"
	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

type taskAddInput struct {
	Text     string `json:"text" jsonschema:"required"`
	Priority string `json:"priority,omitempty"`
	Category string `json:"category,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type taskListInput struct {
	Status         string `json:"status,omitempty"`
	Priority       string `json:"priority,omitempty"`
	Category       string `json:"category,omitempty"`
	SortByPriority bool   `json:"sort_by_priority,omitempty"`
}

type taskIDInput struct {
	TaskID string `json:"task_id" jsonschema:"required"`
}

type taskEditInput struct {
	TaskID   string  `json:"task_id" jsonschema:"required"`
	Text     string  `json:"text" jsonschema:"required"`
	Priority *string `json:"priority,omitempty"`
	Category *string `json:"category,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

type taskListOutput struct {
	Tasks     []domain.Task `json:"tasks"`
	Count     int           `json:"count"`
	SaveError string        `json:"save_error,omitempty"`
}

func registerTaskTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("task.add").
		Description("Add a task to today's list").
		Handler(func(ctx context.Context, input taskAddInput) (domain.Task, error) {
			return addTask(ctx, app, input)
		})

	srv.Tool("task.list").
		Description("List tasks, optionally filtered by status, priority or category").
		Handler(func(ctx context.Context, input taskListInput) (taskListOutput, error) {
			return listTasks(app, input)
		})

	srv.Tool("task.toggle").
		Description("Toggle a task between active and completed").
		Handler(func(ctx context.Context, input taskIDInput) (domain.Task, error) {
			return toggleTask(ctx, app, input.TaskID)
		})

	srv.Tool("task.edit").
		Description("Edit a task's text, priority, category or notes").
		Handler(func(ctx context.Context, input taskEditInput) (domain.Task, error) {
			return editTask(ctx, app, input)
		})

	srv.Tool("task.delete").
		Description("Delete a task").
		Handler(func(ctx context.Context, input taskIDInput) (map[string]any, error) {
			id, err := deleteTask(ctx, app, input.TaskID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"task_id": id, "deleted": true}, nil
		})

	srv.Tool("task.stats").
		Description("Count tasks by status, priority and category").
		Handler(func(ctx context.Context, input struct{}) (domain.Stats, error) {
			store, err := requireStore(app)
			if err != nil {
				return domain.Stats{}, err
			}
			return domain.ComputeStats(store.Snapshot().Tasks), nil
		})

	return nil
}

func addTask(ctx context.Context, app *cli.App, input taskAddInput) (domain.Task, error) {
	store, err := requireStore(app)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := parseFilter("", input.Priority, input.Category, false); err != nil {
		return domain.Task{}, err
	}

	res, err := store.AddTask(ctx, domain.Input{
		Text:     input.Text,
		Priority: input.Priority,
		Category: input.Category,
		Notes:    input.Notes,
	})
	if err != nil {
		return domain.Task{}, err
	}
	if res.RequiresAuth {
		return domain.Task{}, cli.ErrSignInRequired
	}
	if !res.Success {
		return domain.Task{}, app.SaveError()
	}
	return res.Task, nil
}

func listTasks(app *cli.App, input taskListInput) (taskListOutput, error) {
	store, err := requireStore(app)
	if err != nil {
		return taskListOutput{}, err
	}
	filter, err := parseFilter(input.Status, input.Priority, input.Category, input.SortByPriority)
	if err != nil {
		return taskListOutput{}, err
	}

	snap := store.Snapshot()
	tasks := filter.Apply(snap.Tasks)
	return taskListOutput{
		Tasks:     tasks,
		Count:     len(tasks),
		SaveError: snap.SaveError.Message(),
	}, nil
}

func toggleTask(ctx context.Context, app *cli.App, ref string) (domain.Task, error) {
	if _, err := requireStore(app); err != nil {
		return domain.Task{}, err
	}
	t, err := app.ResolveTaskID(ref)
	if err != nil {
		return domain.Task{}, err
	}
	if err := app.Store.ToggleTask(ctx, t.ID); err != nil {
		return domain.Task{}, err
	}
	if err := app.SaveError(); err != nil {
		return domain.Task{}, err
	}
	return app.ResolveTaskID(t.ID)
}

func editTask(ctx context.Context, app *cli.App, input taskEditInput) (domain.Task, error) {
	if _, err := requireStore(app); err != nil {
		return domain.Task{}, err
	}
	t, err := app.ResolveTaskID(input.TaskID)
	if err != nil {
		return domain.Task{}, err
	}
	err = app.Store.EditTask(ctx, t.ID, domain.EditInput{
		Text:     input.Text,
		Priority: input.Priority,
		Category: input.Category,
		Notes:    input.Notes,
	})
	if err != nil {
		return domain.Task{}, err
	}
	if err := app.SaveError(); err != nil {
		return domain.Task{}, err
	}
	return app.ResolveTaskID(t.ID)
}

func deleteTask(ctx context.Context, app *cli.App, ref string) (string, error) {
	if _, err := requireStore(app); err != nil {
		return "", err
	}
	t, err := app.ResolveTaskID(ref)
	if err != nil {
		return "", err
	}
	if err := app.Store.DeleteTask(ctx, t.ID); err != nil {
		return "", err
	}
	if err := app.SaveError(); err != nil {
		return "", err
	}
	return t.ID, nil
}
