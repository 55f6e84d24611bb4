// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"net/http"
	"time"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// handleReady is the readiness probe; it fails while the database is
// unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "DATABASE_ERROR", "database unreachable", err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"connected_clients": s.hub.ClientCount(),
		"online_users":      s.registry.Count(),
	})
}
