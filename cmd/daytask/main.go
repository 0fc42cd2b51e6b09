package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/daytask/adapter/cli"
	cliAuth "github.com/felixgeelhaar/daytask/adapter/cli/auth"
	"github.com/felixgeelhaar/daytask/adapter/cli/mcp"
	"github.com/felixgeelhaar/daytask/adapter/cli/task"
	"github.com/felixgeelhaar/daytask/internal/app"
	mcpinternal "github.com/felixgeelhaar/daytask/internal/mcp"
	"github.com/felixgeelhaar/daytask/pkg/config"
	"github.com/felixgeelhaar/daytask/pkg/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(observability.ConfigFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, cli.Version))
	cli.SetLogger(logger)

	// Reset tokens for local accounts are shown on the terminal.
	container, err := app.NewContainer(ctx, cfg, logger, app.WithNotices(os.Stderr))
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		return 1
	}
	defer container.Close()

	store, stopStore, err := container.StartStore(ctx)
	if err != nil {
		logger.Error("failed to start task store", "error", err)
		return 1
	}
	defer stopStore()

	cli.SetApp(mcpinternal.NewCLIApp(container, store))

	cli.AddCommand(task.Commands()...)
	cli.AddCommand(cliAuth.Cmd)
	cli.AddCommand(mcp.Cmd)

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}
