package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/postcadence/planner/internal/app"
	"github.com/postcadence/planner/internal/warmer"
	"github.com/postcadence/planner/pkg/config"
	"github.com/postcadence/planner/pkg/logging"
	"github.com/postcadence/planner/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Planner Cache Warmer")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	planner, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize planner", zap.Error(err))
	}
	defer planner.Close()

	w := warmer.New(&cfg.Warmer, planner.Posts, planner.Recommendations)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Warmer stopped", zap.Error(err))
	}

	logger.Info("Warmer exited")
}
