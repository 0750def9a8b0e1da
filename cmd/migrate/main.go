// Command migrate applies or rolls back the ledger schema.
//
//	migrate up        apply pending migrations
//	migrate down      roll back one step
//	migrate version   print the current version
//
// DATABASE_URL selects the store. sqlite:// stores are created with gorm
// AutoMigrate; memory:// has nothing to migrate.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/amirasaad/crossledger/infra"
	infrarepo "github.com/amirasaad/crossledger/infra/repository"
	"github.com/amirasaad/crossledger/internal/migrations"
	"github.com/amirasaad/crossledger/pkg/config"
	log "github.com/charmbracelet/log"
	"github.com/golang-migrate/migrate/v4"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}
	logger := slog.Default()
	if infra.IsMemoryURL(cfg.DB.Url) {
		logger.Info("memory store selected, nothing to migrate")
		return nil
	}

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if strings.HasPrefix(cfg.DB.Url, "sqlite://") {
		if action != "up" {
			return fmt.Errorf("sqlite stores only support up, got %q", action)
		}
		logger.Info("auto-migrating sqlite store")
		return db.AutoMigrate(infrarepo.Models()...)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	m, err := migrations.New(sqlDB)
	if err != nil {
		return err
	}
	switch action {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			return verr
		}
		logger.Info("schema version", "version", v, "dirty", dirty)
		return nil
	default:
		return fmt.Errorf("unknown action %q (want up, down or version)", action)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("schema already up to date")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("migration applied", "action", action)
	return nil
}
