package mcp

import (
	"github.com/felixgeelhaar/daytask/adapter/cli"
	"github.com/felixgeelhaar/daytask/internal/app"
	"github.com/felixgeelhaar/daytask/internal/tasks/application/tasksync"
)

// NewCLIApp creates a CLI application instance backed by the provided
// container and a started task store.
func NewCLIApp(container *app.Container, store *tasksync.Store) *cli.App {
	cliApp := cli.NewApp(store, container.Auth, container.Health)
	if container.LocalAccounts != nil {
		cliApp.SetResetConfirmer(container.LocalAccounts)
	}
	return cliApp
}
