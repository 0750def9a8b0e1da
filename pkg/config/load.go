package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Load builds App from the process environment after exporting the first env
// file found among names. A missing file is not an error.
func Load(names ...string) (*App, error) {
	logger := slog.Default().With("component", "config")

	source := exportEnvFile(logger, names...)
	if source == "" {
		source = "environment"
	}

	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.fillBlanks()

	logger.Info("Config ready", cfg.summary(source)...)
	return &cfg, nil
}

// fillBlanks restores defaults for variables that are set but empty, which
// envconfig keeps as zero values.
func (c *App) fillBlanks() {
	if c.Env == "" {
		c.Env = "development"
	}
	if strings.TrimSpace(c.Ledger.TeamWallet) == "" {
		c.Ledger.TeamWallet = "Team"
	}
	if c.Ledger.DefaultCurrency == "" {
		c.Ledger.DefaultCurrency = "USDT"
	}
	if c.Ledger.StorageTimeout <= 0 {
		c.Ledger.StorageTimeout = 5 * time.Second
	}
}

func (c *App) summary(source string) []any {
	return []any{
		"source", source,
		"env", c.Env,
		"listen", fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port),
		"db", redact(c.DB.Url),
		"redis", redact(c.Redis.URL),
		"jwt", c.Auth.Jwt.Secret != "",
		"rate_limit", fmt.Sprintf("%d/%s", c.RateLimit.MaxRequests, c.RateLimit.Window),
		"team_wallet", c.Ledger.TeamWallet,
		"currency", c.Ledger.DefaultCurrency,
		"storage_timeout", c.Ledger.StorageTimeout,
	}
}

// redact keeps only the scheme of a connection string.
func redact(dsn string) string {
	if dsn == "" {
		return ""
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return u.Scheme + "://****"
	}
	return "****"
}
