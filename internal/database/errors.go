// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package database

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tomtom215/courier/internal/logging"
)

// Sentinel errors returned by the store. Callers classify failures with
// errors.Is and never inspect error strings.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness constraint rejected the write,
	// e.g. a duplicate username or a concurrently created direct conversation.
	ErrConflict = errors.New("conflict")

	// ErrTransient indicates an infrastructure failure that may succeed
	// on retry. It never implies anything about the request itself.
	ErrTransient = errors.New("transient store failure")
)

// mapConstraintErr classifies a DuckDB error: uniqueness violations become
// ErrConflict, everything else ErrTransient. The driver does not expose
// typed constraint errors, so this matches on the engine's message.
func mapConstraintErr(op string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "constraint") || strings.Contains(msg, "duplicate") {
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use this for cleanup operations in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}

// closeRows closes sql.Rows and logs any error.
func closeRows(closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close result rows")
	}
}
