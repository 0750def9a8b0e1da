package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirasaad/crossledger/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryScheme selects the in-process store instead of a SQL database.
const MemoryScheme = "memory://"

// IsMemoryURL reports whether url selects the in-process store.
func IsMemoryURL(url string) bool {
	return url == "" || strings.HasPrefix(url, MemoryScheme)
}

// NewDBConnection opens a gorm connection for postgres:// or sqlite:// urls.
func NewDBConnection(
	cnf *config.DB,
	appEnv string,
) (*gorm.DB, error) {
	databaseUrl := cnf.Url
	if databaseUrl == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(databaseUrl, "postgres://"), strings.HasPrefix(databaseUrl, "postgresql://"):
		dialector = postgres.Open(databaseUrl)
	case strings.HasPrefix(databaseUrl, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(databaseUrl, "sqlite://"))
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", databaseUrl)
	}

	var logMode logger.LogLevel
	if appEnv == "development" {
		logMode = logger.Info
	} else {
		logMode = logger.Silent
	}

	connection, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logMode),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := connection.DB()
	if err != nil {
		return nil, err
	}
	maxOpen := cnf.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if dialector.Name() == "sqlite" {
		// one writer keeps sqlite from returning SQLITE_BUSY
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	return connection, nil
}
