package main

import (
	"context"
	"fmt"
	"os"

	"todoTracker/internal/app"
	"todoTracker/internal/config"
	"todoTracker/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	if err := logger.Init(cfg.Logging.Development); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx := context.Background()
	a := app.New(cfg)
	if err := a.Init(ctx); err != nil {
		logger.Error("App: init failed", err)
		return 1
	}

	return a.Run(ctx)
}
