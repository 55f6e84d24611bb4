// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

// Package database implements the Courier store on DuckDB via database/sql.
//
// All identifiers are generated from sequences with INSERT ... RETURNING;
// the driver does not support LastInsertId. Uniqueness invariants (usernames,
// the direct-conversation pair key, contact and block pairs) are enforced by
// the engine so concurrent writers cannot race past application checks.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/metrics"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New creates a new database connection and initializes the schema.
// An empty cfg.Path opens an in-memory database (used by tests).
func New(cfg *config.DatabaseConfig) (*DB, error) {
	connStr := ""
	if cfg.Path != "" {
		numThreads := cfg.Threads
		if numThreads <= 0 {
			numThreads = runtime.NumCPU()
		}

		// Ensure parent directory exists for the database file.
		// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}

		preserveOrder := "true"
		if !cfg.PreserveInsertionOrder {
			preserveOrder = "false"
		}

		connStr = fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&preserve_insertion_order=%s",
			cfg.Path, numThreads, cfg.MaxMemory, preserveOrder)
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn: conn,
		cfg:  cfg,
	}

	db.configureConnectionPool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("database ready")
	return db, nil
}

// configureConnectionPool sets conservative pool limits. DuckDB is embedded;
// a small pool avoids writer contention without starving readers.
func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(8)
	db.conn.SetMaxIdleConns(4)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Conn returns the underlying SQL database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w: %v", ErrTransient, err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// observe records a query duration metric. Use with defer:
//
//	defer observe("select", "messages", time.Now())
func observe(operation, table string, start time.Time) {
	metrics.RecordDBQuery(operation, table, time.Since(start))
}
