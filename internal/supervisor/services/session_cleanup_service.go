// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package services

import (
	"context"
	"time"

	"github.com/tomtom215/courier/internal/logging"
)

// SessionCleaner is the session store operation the sweeper needs.
type SessionCleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// SessionCleanupService periodically sweeps expired sessions out of the
// session store. Badger's TTL removes the values eventually; the sweep
// keeps the user-to-session index accurate between compactions.
type SessionCleanupService struct {
	store    SessionCleaner
	interval time.Duration
}

// NewSessionCleanupService wraps the session sweep for supervision.
func NewSessionCleanupService(store SessionCleaner, interval time.Duration) *SessionCleanupService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SessionCleanupService{store: store, interval: interval}
}

// Serve implements suture.Service.
func (s *SessionCleanupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.store.CleanupExpired(ctx)
			if err != nil {
				logging.Warn().Err(err).Msg("session cleanup sweep failed")
				continue
			}
			if removed > 0 {
				logging.Debug().Int("removed", removed).Msg("expired sessions removed")
			}
		}
	}
}

// String names the service in supervisor logs.
func (s *SessionCleanupService) String() string {
	return "session-cleanup"
}
