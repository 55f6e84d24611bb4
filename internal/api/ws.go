// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"net/http"

	"github.com/tomtom215/courier/internal/chat"
	"github.com/tomtom215/courier/internal/logging"
)

// handleWebSocket upgrades an authenticated connection and hands it to the
// chat layer. The token travels as a query parameter because browsers
// cannot attach headers to websocket upgrades.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing token", nil)
		return
	}

	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid or expired token", nil)
		return
	}
	if _, err := s.sessions.Get(r.Context(), claims.ID); err != nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "session revoked or expired", nil)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := chat.NewClient(s.hub, s.chatHandler, conn, claims.UserID, claims.Username, &s.cfg.Chat)
	s.chatHandler.HandleConnect(client)
	client.Start()

	logging.Debug().Int64("user_id", claims.UserID).Msg("websocket session started")
}
