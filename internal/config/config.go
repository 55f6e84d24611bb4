// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

// Package config loads and validates the Courier application configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables. Environment variables always win.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Courier server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Chat     ChatConfig     `koanf:"chat"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// Environment is "development" or "production". Production enforces
	// stricter validation (e.g. JWT secret length).
	Environment string `koanf:"environment"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the database file path. Empty means in-memory (tests only).
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads is the DuckDB thread count. 0 means runtime.NumCPU().
	Threads                int  `koanf:"threads"`
	PreserveInsertionOrder bool `koanf:"preserve_insertion_order"`
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	// BcryptCost is the bcrypt work factor for password hashing.
	BcryptCost       int    `koanf:"bcrypt_cost"`
	SessionStorePath string `koanf:"session_store_path"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	// AuthRateLimitReqs applies to login/signup only (brute-force protection).
	AuthRateLimitReqs int `koanf:"auth_rate_limit_reqs"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// ChatConfig holds realtime messaging settings.
type ChatConfig struct {
	// SendBuffer is the per-client outbound event buffer. A client whose
	// buffer is full is disconnected rather than allowed to stall the hub.
	SendBuffer int `koanf:"send_buffer"`
	// BroadcastBuffer is the hub's pending broadcast queue size.
	BroadcastBuffer int `koanf:"broadcast_buffer"`

	// EventRate and EventBurst bound the inbound event rate per connection.
	EventRate  float64 `koanf:"event_rate"`
	EventBurst int     `koanf:"event_burst"`

	MaxMessageLength int `koanf:"max_message_length"`
	HistoryLimit     int `koanf:"history_limit"`

	WriteWait time.Duration `koanf:"write_wait"`
	PongWait  time.Duration `koanf:"pong_wait"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}

	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	if c.IsProduction() && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters in production")
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("security.session_timeout must be positive, got %s", c.Security.SessionTimeout)
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("security.bcrypt_cost must be 4-31, got %d", c.Security.BcryptCost)
	}

	if c.Chat.SendBuffer < 1 {
		return fmt.Errorf("chat.send_buffer must be positive, got %d", c.Chat.SendBuffer)
	}
	if c.Chat.BroadcastBuffer < 1 {
		return fmt.Errorf("chat.broadcast_buffer must be positive, got %d", c.Chat.BroadcastBuffer)
	}
	if c.Chat.EventRate <= 0 {
		return fmt.Errorf("chat.event_rate must be positive, got %f", c.Chat.EventRate)
	}
	if c.Chat.MaxMessageLength < 1 {
		return fmt.Errorf("chat.max_message_length must be positive, got %d", c.Chat.MaxMessageLength)
	}
	if c.Chat.HistoryLimit < 1 {
		return fmt.Errorf("chat.history_limit must be positive, got %d", c.Chat.HistoryLimit)
	}
	if c.Chat.PongWait <= c.Chat.WriteWait {
		return fmt.Errorf("chat.pong_wait (%s) must exceed chat.write_wait (%s)",
			c.Chat.PongWait, c.Chat.WriteWait)
	}

	return nil
}
