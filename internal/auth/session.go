// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

// Package auth provides token issuance, password hashing and session
// management for the messaging backend.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound indicates no session exists for the given ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired indicates the session exists but is past its expiry.
	ErrSessionExpired = errors.New("session expired")
)

// Session records one issued login. Sessions exist alongside the stateless
// JWT so a logout can revoke access before the token expires.
type Session struct {
	ID             string    `json:"id"`
	UserID         int64     `json:"user_id"`
	Username       string    `json:"username"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// NewSession creates a session for a fresh login.
func NewSession(userID int64, username string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Username:       username,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(ttl),
	}
}

// IsExpired reports whether the session is past its expiry.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SessionStore persists sessions.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID int64) (int, error)
	Touch(ctx context.Context, id string, newExpiry time.Time) error
	CleanupExpired(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
}
