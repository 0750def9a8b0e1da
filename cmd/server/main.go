package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirasaad/crossledger/infra/initializer"
	"github.com/amirasaad/crossledger/pkg/app"
	"github.com/amirasaad/crossledger/pkg/config"
	"github.com/amirasaad/crossledger/webapi"
	log "github.com/charmbracelet/log"
)

const shutdownTimeout = 10 * time.Second

// @title Crossledger API
// @version 1.0.0
// @description Wallet ledger and hedge cross settlement API
// @license.name Apache 2.0
// @host localhost:3000
// @BasePath /
//
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description "Enter your Bearer token in the format: `Bearer {token}`"
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	deps, cleanup, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer cleanup()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fiberApp := webapi.SetupApp(app.New(deps, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Starting server",
		"env", cfg.Env,
		"address", addr,
		"scheme", cfg.Server.Scheme,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- fiberApp.Listen(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down server")
		return fiberApp.ShutdownWithTimeout(shutdownTimeout)
	}
}
