package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"

	appLog "agendaaberta/internal/log"
)

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		appLog.Debug("maxprocs", "detail", format, "args", args)
	})); err != nil {
		appLog.Error("failed to set GOMAXPROCS", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		printErr(root.ErrOrStderr(), err)
		stop()
		os.Exit(1)
	}
}
