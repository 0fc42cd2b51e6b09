package mcp

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/daytask/adapter/cli"
	"github.com/felixgeelhaar/daytask/internal/tasks/application/tasksync"
	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

func requireStore(app *cli.App) (*tasksync.Store, error) {
	if app == nil || app.Store == nil {
		return nil, errors.New("task store not initialized")
	}
	return app.Store, nil
}

func parseFilter(status, priority, category string, sorted bool) (domain.Filter, error) {
	f := domain.Filter{SortByPriority: sorted}

	s, err := domain.ParseStatusFilter(status)
	if err != nil {
		return f, err
	}
	f.Status = s

	if priority != "" {
		p, err := domain.ParsePriority(priority)
		if err != nil {
			return f, fmt.Errorf("%w: %s", err, priority)
		}
		f.Priority = p
	}
	if category != "" {
		c, err := domain.ParseCategory(category)
		if err != nil {
			return f, fmt.Errorf("%w: %s", err, category)
		}
		f.Category = c
	}
	return f, nil
}
