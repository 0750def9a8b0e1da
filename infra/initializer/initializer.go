package initializer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/amirasaad/crossledger/infra"
	infra_eventbus "github.com/amirasaad/crossledger/infra/eventbus"
	infra_repository "github.com/amirasaad/crossledger/infra/repository"
	"github.com/amirasaad/crossledger/infra/repository/memory"
	"github.com/amirasaad/crossledger/pkg/config"
	"github.com/amirasaad/crossledger/pkg/eventbus"
	"github.com/amirasaad/crossledger/pkg/repository"
)

// InitializeDependencies builds the logger, the store and the event bus.
// The returned cleanup closes what was opened and is safe to call once.
func InitializeDependencies(cfg *config.App) (
	deps config.Deps,
	cleanup func(),
	err error,
) {
	return initialize(cfg, os.Stdout)
}

func initialize(cfg *config.App, out io.Writer) (deps config.Deps, cleanup func(), err error) {
	logger := setupLogger(cfg.Log, out)
	deps.Logger = logger
	deps.Config = cfg

	var closers []func() error
	cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("Failed to release resource", "error", err)
			}
		}
	}

	uow, closeStore, err := initStore(cfg, logger)
	if err != nil {
		return config.Deps{}, nil, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}
	deps.Uow = uow

	bus, closeBus, err := initEventBus(cfg, logger)
	if err != nil {
		cleanup()
		return config.Deps{}, nil, err
	}
	if closeBus != nil {
		closers = append(closers, closeBus)
	}
	deps.EventBus = bus
	return deps, cleanup, nil
}

func initStore(cfg *config.App, logger *slog.Logger) (repository.UnitOfWork, func() error, error) {
	if infra.IsMemoryURL(cfg.DB.Url) {
		logger.Warn("Using the in-process memory store; data is lost on exit")
		return memory.NewUoW(memory.NewStore()), nil, nil
	}

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}

	// sqlite runs single-operator installs without a migrate step
	if strings.HasPrefix(cfg.DB.Url, "sqlite://") {
		if err := db.AutoMigrate(infra_repository.Models()...); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("failed to migrate sqlite store: %w", err)
		}
	}
	return infra_repository.NewUoW(db), sqlDB.Close, nil
}

// initEventBus selects redis streams when REDIS_URL is set. An unreachable
// redis falls back to the memory bus: events are a side channel and the
// ledger must keep working without them.
func initEventBus(cfg *config.App, logger *slog.Logger) (eventbus.Bus, func() error, error) {
	if cfg.Redis == nil || cfg.Redis.URL == "" {
		return infra_eventbus.NewWithMemory(logger), nil, nil
	}
	if cfg.Redis.Stream == "" || cfg.Redis.Group == "" {
		return nil, nil, fmt.Errorf("redis event bus requires REDIS_STREAM and REDIS_GROUP")
	}
	bus, err := infra_eventbus.NewWithRedis(
		cfg.Redis.URL,
		cfg.Redis.Stream,
		cfg.Redis.Group,
		&infra_eventbus.RedisOptions{
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		},
		logger,
	)
	if err != nil {
		logger.Warn("Redis event bus unavailable, falling back to memory", "error", err)
		return infra_eventbus.NewWithMemory(logger), nil, nil
	}
	return bus, bus.Close, nil
}
