// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env on top.
// - Keys use snake_case koanf tags; env vars are the same keys, upper-cased, prefixed UNRAVEL_.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text, json, pretty.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the persistence backend: memory or postgres.
	StoreDriver string `koanf:"store_driver"`

	// DatabaseURL is the Postgres DSN used when StoreDriver is postgres.
	DatabaseURL string `koanf:"database_url"`

	// DBMaxConns caps the pgx pool size.
	DBMaxConns int `koanf:"db_max_conns"`

	// SandboxDatabaseURL points at the exercise database. Empty disables query exercises.
	SandboxDatabaseURL string `koanf:"sandbox_database_url"`
	SandboxTimeoutMS   int    `koanf:"sandbox_timeout_ms"`
	SandboxMaxRows     int    `koanf:"sandbox_max_rows"`

	AccessTokenTTLMinutes int `koanf:"access_token_ttl_minutes"`
	RefreshTokenTTLHours  int `koanf:"refresh_token_ttl_hours"`
	BcryptCost            int `koanf:"bcrypt_cost"`

	// DedupeSize bounds the number of submission ids remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// CORSAllowedOrigins is a comma separated origin list.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`
	// CookieSecure marks token cookies Secure (HTTPS only).
	CookieSecure bool `koanf:"cookie_secure"`

	LevelTopN           int `koanf:"level_top_n"`
	GlobalTopN          int `koanf:"global_top_n"`
	LevelsPerDifficulty int `koanf:"levels_per_difficulty"`

	// RequestTimeoutMS bounds each HTTP request's context.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		StoreDriver:           DriverMemory,
		DBMaxConns:            10,
		SandboxTimeoutMS:      3000,
		SandboxMaxRows:        1000,
		AccessTokenTTLMinutes: 60,
		RefreshTokenTTLHours:  30 * 24,
		BcryptCost:            10,
		DedupeSize:            100_000,
		CORSAllowedOrigins:    "http://localhost:5173,http://localhost:3000",
		LevelTopN:             5,
		GlobalTopN:            3,
		LevelsPerDifficulty:   4,
		RequestTimeoutMS:      5000,
	}
}

// AllowedOrigins splits CORSAllowedOrigins, dropping blanks.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLHours) * time.Hour
}

func (c *Config) SandboxTimeout() time.Duration {
	return time.Duration(c.SandboxTimeoutMS) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}
