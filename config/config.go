// Package config loads server settings from the environment.
//
// All variables are prefixed BREW_, e.g. BREW_PORT, BREW_DB_PATH.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "brew"

type Config struct {
	// Port the HTTP server listens on.
	Port int `envconfig:"PORT" default:"8080"`

	// DBPath is the SQLite database path. ":memory:" for ephemeral runs.
	DBPath string `envconfig:"DB_PATH" default:"brew.db"`

	// LogLevel is a zerolog level name (trace..panic).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// LogFormat is "json" or "console".
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// CORSOrigins is a comma-separated list of allowed origins.
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`

	// AutoLockInterval enables the background sweep that locks fully
	// paid purchases. Zero disables it.
	AutoLockInterval time.Duration `envconfig:"AUTO_LOCK_INTERVAL" default:"0"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
