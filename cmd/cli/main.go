package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sequential-trader/internal/cli"
)

func main() {
	// Ctrl-C stops the simulation between steps; the run still reports.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
