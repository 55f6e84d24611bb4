// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package chat

import (
	"errors"

	"github.com/tomtom215/courier/internal/database"
)

// Sentinel errors for chat operations. Store-level sentinels from the
// database package pass through unchanged; these cover the checks the chat
// layer adds on top.
var (
	// ErrValidation marks a malformed or out-of-bounds client request.
	ErrValidation = errors.New("validation failed")

	// ErrAuthorization marks an operation on a resource the acting user
	// does not own or belong to.
	ErrAuthorization = errors.New("not authorized")

	// ErrBlocked marks a direct-message attempt between users where either
	// side has blocked the other.
	ErrBlocked = errors.New("user is blocked")
)

// errorCode maps an operation error to the stable code carried in error
// events and metrics labels.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrAuthorization):
		return "AUTHORIZATION_ERROR"
	case errors.Is(err, ErrBlocked):
		return "BLOCKED"
	case errors.Is(err, database.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, database.ErrConflict):
		return "CONFLICT"
	default:
		return "INTERNAL_ERROR"
	}
}
