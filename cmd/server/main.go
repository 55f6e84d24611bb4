// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

// Package main is the entry point for the Courier server.
//
// Courier is a self-hosted real-time messaging backend. It delivers direct
// and group messages over websockets, tracks message status through the
// sent/delivered/read ladder, and exposes a REST API for accounts,
// contacts, history and group management.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load from defaults, config file and
//     environment variables (Koanf v2)
//  2. Database: DuckDB for users, conversations and messages
//  3. Session store: BadgerDB for revocable login sessions
//  4. Chat layer: hub, presence registry and event handler
//  5. HTTP server: REST API plus the websocket endpoint
//
// Everything long-running sits under a suture supervision tree. The hub
// and session sweeper live in the messaging layer, the HTTP server in the
// API layer, so a crash in one restarts without tearing down the other.
//
// Graceful shutdown runs on SIGINT and SIGTERM: the listener stops
// accepting connections, in-flight requests drain within the shutdown
// timeout, the hub closes every websocket client, then the stores close.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/courier/internal/api"
	"github.com/tomtom215/courier/internal/auth"
	"github.com/tomtom215/courier/internal/chat"
	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/database"
	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/supervisor"
	"github.com/tomtom215/courier/internal/supervisor/services"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Msg("Starting Courier")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	sessionDB, err := openSessionStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer func() {
		if err := sessionDB.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()
	sessions := auth.NewBadgerSessionStore(sessionDB)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED. Use only for local testing.")
	}

	// Chat layer. The registry is the authoritative presence source; the
	// hub owns rooms and fanout.
	hub := chat.NewHub(&cfg.Chat)
	registry := chat.NewRegistry()
	resolver := chat.NewResolver(db)
	lifecycle := chat.NewLifecycle(db, resolver, &cfg.Chat)
	fanout := chat.NewFanout(hub, registry)
	chatHandler := chat.NewHandler(db, hub, registry, lifecycle, fanout, &cfg.Chat)

	server := api.NewServer(cfg, db, hub, registry, lifecycle, fanout, chatHandler, jwtManager, sessions)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddMessagingService(services.NewSessionCleanupService(sessions, 15*time.Minute))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().
		Str("addr", httpServer.Addr).
		Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor closes the channel.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Courier stopped gracefully")
}

// openSessionStore opens the Badger session database. An empty path runs
// in-memory, which loses sessions on restart.
func openSessionStore(cfg *config.Config) (*badger.DB, error) {
	if cfg.Security.SessionStorePath == "" {
		if cfg.IsProduction() {
			logging.Warn().Msg("SESSION_STORE_PATH is empty. Sessions will not survive restarts.")
		}
		return badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	}
	return badger.Open(badger.DefaultOptions(cfg.Security.SessionStorePath).WithLogger(nil))
}
