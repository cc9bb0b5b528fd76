// ====================================
// File: cmd/nexus/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-market-nexus/internal/config"
	"github.com/rovshanmuradov/solana-market-nexus/internal/utils/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("NEXUS_CONFIG"), "path to config file (yaml/json)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.FromConfig(cfg.Log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting Solana Market Nexus",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("storage", cfg.Storage.Driver))

	app := fx.New(
		fx.Supply(cfg),
		fx.Supply(log),
		fx.Provide(func() *zap.Logger { return log.WithComponent("nexus") }),

		infrastructure,
		services,

		fx.Invoke(run),
		fx.Invoke(startNATSBridge),

		fx.StopTimeout(cfg.Server.ShutdownTimeout),
		fx.WithLogger(func() fxevent.Logger {
			return fxevent.NopLogger
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout+cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		log.Error("Failed to start application", zap.Error(err))
		os.Exit(1)
	}

	// SIGINT/SIGTERM или fx.Shutdowner
	sig := <-app.Done()
	log.Info("Shutdown signal received", zap.String("signal", sig.String()))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Error("Failed to stop application gracefully", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Application stopped successfully")
}
