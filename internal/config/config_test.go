// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = "test-secret"
	return cfg
}

func TestDefaultConfigIsValidWithSecret(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with secret should validate, got: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "" },
			wantErr: "jwt_secret",
		},
		{
			name: "short secret in production",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Security.JWTSecret = "short"
			},
			wantErr: "32 characters",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "negative session timeout",
			mutate:  func(c *Config) { c.Security.SessionTimeout = -time.Hour },
			wantErr: "session_timeout",
		},
		{
			name:    "bcrypt cost too low",
			mutate:  func(c *Config) { c.Security.BcryptCost = 2 },
			wantErr: "bcrypt_cost",
		},
		{
			name:    "zero send buffer",
			mutate:  func(c *Config) { c.Chat.SendBuffer = 0 },
			wantErr: "send_buffer",
		},
		{
			name:    "zero event rate",
			mutate:  func(c *Config) { c.Chat.EventRate = 0 },
			wantErr: "event_rate",
		},
		{
			name: "pong wait below write wait",
			mutate: func(c *Config) {
				c.Chat.PongWait = 5 * time.Second
				c.Chat.WriteWait = 10 * time.Second
			},
			wantErr: "pong_wait",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadWithKoanfEnvOverride(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-provided-secret")
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DUCKDB_PATH", "/tmp/courier-test.duckdb")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf failed: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Security.JWTSecret != "env-provided-secret" {
		t.Errorf("jwt secret not taken from environment")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Database.Path != "/tmp/courier-test.duckdb" {
		t.Errorf("expected database path override, got %s", cfg.Database.Path)
	}

	// Defaults survive where no override is present.
	if cfg.Chat.SendBuffer != 256 {
		t.Errorf("expected default send buffer 256, got %d", cfg.Chat.SendBuffer)
	}
}

func TestEnvTransformFuncSkipsUnknownKeys(t *testing.T) {
	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("unknown env var should map to empty path, got %q", got)
	}
	if got := envTransformFunc("HTTP_PORT"); got != "server.port" {
		t.Errorf("HTTP_PORT should map to server.port, got %q", got)
	}
}

func TestCORSOriginsFromCommaSeparatedEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-provided-secret")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf failed: %v", err)
	}

	if len(cfg.Security.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.Security.CORSOrigins)
	}
	if cfg.Security.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("origins not trimmed correctly: %v", cfg.Security.CORSOrigins)
	}
}
