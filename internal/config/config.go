// Package config loads wallet configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Credential store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	// LedgerBaseURL is the remote ledger service.
	LedgerBaseURL string `mapstructure:"LEDGER_BASE_URL"`
	// LedgerTimeout bounds every ledger call; a timeout is a network error.
	LedgerTimeout time.Duration `mapstructure:"LEDGER_TIMEOUT"`
	Port          string        `mapstructure:"SERVER_PORT"`
	Env           string        `mapstructure:"ENVIRONMENT"`
	LogLevel      string        `mapstructure:"LOG_LEVEL"`

	// CredentialStore selects where the verification code is cached.
	CredentialStore string        `mapstructure:"CREDENTIAL_STORE"`
	CredentialTTL   time.Duration `mapstructure:"CREDENTIAL_TTL"`
	DBSource        string        `mapstructure:"DB_SOURCE"`
	SQLitePath      string        `mapstructure:"SQLITE_PATH"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`

	// TransferRetries is how often a transport failure is retried with the same operation token.
	TransferRetries int `mapstructure:"TRANSFER_RETRIES"`

	// Session bootstrap for the terminal client.
	DisplayName string `mapstructure:"WALLET_DISPLAY_NAME"`
	Handle      string `mapstructure:"WALLET_HANDLE"`
	AuthToken   string `mapstructure:"WALLET_AUTH_TOKEN"`
}

// Load reads .env (if present), then the environment. Env vars win.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("LEDGER_BASE_URL", "https://raulocoin.onrender.com")
	v.SetDefault("LEDGER_TIMEOUT", "10s")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CREDENTIAL_STORE", StoreMemory)
	v.SetDefault("CREDENTIAL_TTL", "12h")
	v.SetDefault("DB_SOURCE", "")
	v.SetDefault("SQLITE_PATH", "coinwallet.db")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("TRANSFER_RETRIES", 0)
	v.SetDefault("WALLET_DISPLAY_NAME", "")
	v.SetDefault("WALLET_HANDLE", "")
	v.SetDefault("WALLET_AUTH_TOKEN", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field combinations.
func (c *Config) Validate() error {
	if c.LedgerBaseURL == "" {
		return errors.New("config: LEDGER_BASE_URL must be set")
	}
	if c.LedgerTimeout <= 0 {
		return errors.New("config: LEDGER_TIMEOUT must be positive")
	}
	if c.TransferRetries < 0 {
		return errors.New("config: TRANSFER_RETRIES must not be negative")
	}

	switch c.CredentialStore {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: SQLITE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if c.DBSource == "" {
			return errors.New("config: DB_SOURCE is required for the postgres store")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR is required for the redis store")
		}
	default:
		return fmt.Errorf("config: unknown CREDENTIAL_STORE %q", c.CredentialStore)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
