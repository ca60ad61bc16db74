// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port             int    `env:"PORT" envDefault:"3319"`
	DatabaseURL      string `env:"DATABASE_URL"`
	AuthTokenSecret  string `env:"AUTH_TOKEN_SECRET"`
	AllowSpectators  bool   `env:"ALLOW_SPECTATORS" envDefault:"false"`
	HeartbeatSeconds int    `env:"HEARTBEAT_SECONDS" envDefault:"60"`
}

// HeartbeatTimeout is the interval after which a silent connection is
// treated as disconnected.
func (c Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// Ephemeral reports whether the engine runs without a persistence adapter;
// sessions then live only as long as the process.
func (c Config) Ephemeral() bool {
	return c.DatabaseURL == ""
}

// ParseFlags builds the configuration: environment variables first, CLI
// flags override (flags are the dev convenience, env is the deployment
// surface).
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("huddle-plan", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "p", cfg.Port, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "Postgres URL for session snapshots (empty = ephemeral)")
	fs.StringVar(&cfg.AuthTokenSecret, "auth-secret", cfg.AuthTokenSecret, "Bearer token secret (prefer env)")
	fs.BoolVar(&cfg.AllowSpectators, "spectators", cfg.AllowSpectators, "Allow read-only joins to ended sessions")
	fs.IntVar(&cfg.HeartbeatSeconds, "heartbeat", cfg.HeartbeatSeconds, "Heartbeat timeout in seconds")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Port <= 0 {
		return Config{}, errors.New("invalid port")
	}
	if cfg.HeartbeatSeconds <= 0 {
		return Config{}, errors.New("invalid heartbeat timeout")
	}

	// Secret - MUST be provided
	if cfg.AuthTokenSecret == "" {
		return Config{}, errors.New("AUTH_TOKEN_SECRET required")
	}

	return cfg, nil
}
