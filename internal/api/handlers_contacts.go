// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"net/http"
	"strings"

	"github.com/tomtom215/courier/internal/middleware"
)

const searchResultLimit = 20

// handleSearchUsers finds users by username or email fragment.
func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) < 2 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "query must be at least 2 characters", nil)
		return
	}

	results, err := s.db.SearchUsers(r.Context(), query, user.UserID, searchResultLimit)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusOK, results)
}

// handleListContacts returns the user's contacts with presence.
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	contacts, err := s.db.ListContacts(r.Context(), user.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusOK, contacts)
}

type contactRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// handleAddContact adds a user to the contact list.
func (s *Server) handleAddContact(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	var req contactRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if req.UserID == user.UserID {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "cannot add yourself", nil)
		return
	}

	exists, err := s.db.UserExists(r.Context(), req.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		return
	}

	blocked, err := s.db.IsBlockedEither(r.Context(), user.UserID, req.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	if blocked {
		respondError(w, http.StatusForbidden, "BLOCKED", "cannot add this user", nil)
		return
	}

	if err := s.db.AddContact(r.Context(), user.UserID, req.UserID); err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusCreated, map[string]string{"message": "contact added"})
}

// handleRemoveContact drops a contact entry.
func (s *Server) handleRemoveContact(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	contactID, err := urlID(r, "contactID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	if err := s.db.RemoveContact(r.Context(), user.UserID, contactID); err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "contact removed"})
}

// handleBlockUser blocks a user and drops them from the contact list.
func (s *Server) handleBlockUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	var req contactRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if req.UserID == user.UserID {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "cannot block yourself", nil)
		return
	}

	if err := s.db.BlockUser(r.Context(), user.UserID, req.UserID); err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "user blocked"})
}

// handleUnblockUser removes a block.
func (s *Server) handleUnblockUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	blockedID, err := urlID(r, "userID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	if err := s.db.UnblockUser(r.Context(), user.UserID, blockedID); err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "user unblocked"})
}

// handleListBlocked returns the users blocked by the caller.
func (s *Server) handleListBlocked(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	blocked, err := s.db.ListBlocked(r.Context(), user.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusOK, blocked)
}
