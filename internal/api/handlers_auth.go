// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/courier/internal/auth"
	"github.com/tomtom215/courier/internal/database"
	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/middleware"
	"github.com/tomtom215/courier/internal/models"
)

// handleSignup creates a new account.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{Status: "error", Error: apiErr})
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "internal error", err)
		return
	}

	user, err := s.db.CreateUser(r.Context(), req.Username, req.Email, hash)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			respondError(w, http.StatusConflict, "CONFLICT", "username or email already taken", nil)
			return
		}
		respondMappedError(w, err)
		return
	}

	logging.Info().Int64("user_id", user.UserID).Str("username", sanitizeLogValue(user.Username)).
		Msg("user registered")
	respondData(w, http.StatusCreated, user)
}

// handleLogin verifies credentials and issues a token backed by a revocable
// session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{Status: "error", Error: apiErr})
		return
	}

	user, err := s.db.GetUserByIdentifier(r.Context(), req.Identifier)
	if err != nil {
		// Identical response for unknown user and wrong password.
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid credentials", nil)
		return
	}
	if !s.hasher.Compare(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid credentials", nil)
		return
	}

	session := auth.NewSession(user.UserID, user.Username, s.cfg.Security.SessionTimeout)
	if err := s.sessions.Create(r.Context(), session); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "internal error", err)
		return
	}

	token, expiresAt, err := s.jwtManager.GenerateToken(user.UserID, user.Username, session.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "internal error", err)
		return
	}

	logging.Info().Int64("user_id", user.UserID).Msg("user logged in")
	respondData(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.UserID,
		Username:  user.Username,
	})
}

// handleLogout revokes the current session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	if err := s.sessions.Delete(r.Context(), user.SessionID); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "internal error", err)
		return
	}

	logging.Info().Int64("user_id", user.UserID).Msg("user logged out")
	respondData(w, http.StatusOK, map[string]string{"message": "logged out"})
}
