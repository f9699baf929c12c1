package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds relay server configuration.
type Config struct {
	Port        int    // listening port
	JWTSecret   string // shared signing secret, required
	Environment string // "development", "staging" or "production"
	RoomPrefix  string // required namespace prefix for room IDs

	RoomTimeout   time.Duration // idle duration before an empty room is evicted
	SweepInterval time.Duration // reaper period
	ShutdownGrace time.Duration // max wait for connections on shutdown

	ReadBufferSize  int
	WriteBufferSize int
	WriteTimeout    time.Duration
}

// ErrMissingSecret is returned by Validate when no signing secret is set.
// The server must refuse to start rather than run unauthenticated.
var ErrMissingSecret = errors.New("RELAY_JWT_SECRET is not set")

// Default returns a Config with sensible defaults. The JWT secret has no
// default and must come from the environment.
func Default() *Config {
	return &Config{
		Port:            4001,
		Environment:     "development",
		RoomPrefix:      "board",
		RoomTimeout:     5 * time.Minute,
		SweepInterval:   time.Minute,
		ShutdownGrace:   10 * time.Second,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteTimeout:    10 * time.Second,
	}
}

// FromEnv loads configuration from environment variables.
// Falls back to defaults for any missing values.
func FromEnv() *Config {
	cfg := Default()

	if port := os.Getenv("RELAY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	cfg.JWTSecret = os.Getenv("RELAY_JWT_SECRET")
	if env := os.Getenv("RELAY_ENV"); env != "" {
		cfg.Environment = env
	}
	if prefix := os.Getenv("RELAY_ROOM_PREFIX"); prefix != "" {
		cfg.RoomPrefix = prefix
	}
	if secs := os.Getenv("RELAY_ROOM_TIMEOUT"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			cfg.RoomTimeout = time.Duration(n) * time.Second
		}
	}
	if secs := os.Getenv("RELAY_SWEEP_INTERVAL"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			cfg.SweepInterval = time.Duration(n) * time.Second
		}
	}
	return cfg
}

// Validate reports fatal configuration errors.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingSecret
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Production reports whether the deployment environment gates debug endpoints.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// Addr returns the listen address for the configured port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// RoomPattern returns the anchored regexp source all room IDs must match.
func (c *Config) RoomPattern() string {
	return "^" + c.RoomPrefix + "-[A-Za-z0-9_-]+$"
}
