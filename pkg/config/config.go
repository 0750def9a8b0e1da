package config

import (
	"time"
)

type DB struct {
	Url            string `envconfig:"URL" default:"memory://"`
	MaxOpenConns   int    `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"internal/migrations"`
}

type Jwt struct {
	// Secret signs operator tokens. Empty disables JWT and trusts the X-Operator header.
	Secret string        `envconfig:"SECRET"`
	Expiry time.Duration `envconfig:"EXPIRY" default:"24h"`
}

type Auth struct {
	Jwt *Jwt `envconfig:"JWT"`
}

type Redis struct {
	URL          string        `envconfig:"URL"`
	Stream       string        `envconfig:"STREAM" default:"crossledger:events"`
	Group        string        `envconfig:"GROUP" default:"crossledger"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

type Ledger struct {
	// TeamWallet is the escrow wallet used when an open request names none.
	TeamWallet      string        `envconfig:"TEAM_WALLET" default:"Team"`
	DefaultCurrency string        `envconfig:"DEFAULT_CURRENCY" default:"USDT"`
	StorageTimeout  time.Duration `envconfig:"STORAGE_TIMEOUT" default:"5s"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[crossledger]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env       string     `envconfig:"APP_ENV" default:"development"`
	Server    *Server    `envconfig:"SERVER"`
	Log       *Log       `envconfig:"LOG"`
	DB        *DB        `envconfig:"DATABASE"`
	Auth      *Auth      `envconfig:"AUTH"`
	Redis     *Redis     `envconfig:"REDIS"`
	RateLimit *RateLimit `envconfig:"RATE_LIMIT"`
	Ledger    *Ledger    `envconfig:"LEDGER"`
}
