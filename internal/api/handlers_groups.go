// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"net/http"

	"github.com/tomtom215/courier/internal/chat"
	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/middleware"
	"github.com/tomtom215/courier/internal/models"
)

type createGroupRequest struct {
	Name    string  `json:"name" validate:"required,min=1,max=64"`
	Members []int64 `json:"members" validate:"required,min=1,dive,gt=0"`
}

// handleCreateGroup creates a group conversation with the caller as admin.
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	var req createGroupRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	for _, memberID := range req.Members {
		exists, err := s.db.UserExists(r.Context(), memberID)
		if err != nil {
			respondMappedError(w, err)
			return
		}
		if !exists {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "member not found", nil)
			return
		}
	}

	group, err := s.db.CreateGroup(r.Context(), req.Name, user.UserID, req.Members)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	logging.Info().Int64("group_id", group.ConvID).Int64("creator", user.UserID).
		Str("name", sanitizeLogValue(req.Name)).Msg("group created")
	respondData(w, http.StatusCreated, group)
}

// handleListGroups returns the caller's groups with member and unread counts.
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	groups, err := s.db.ListUserGroups(r.Context(), user.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusOK, groups)
}

// requireMembership loads the group ID from the URL and verifies the caller
// belongs to it. Responds on failure and returns ok=false.
func (s *Server) requireMembership(w http.ResponseWriter, r *http.Request) (groupID int64, ok bool) {
	user := middleware.GetAuthUser(r.Context())

	groupID, err := urlID(r, "groupID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return 0, false
	}

	member, err := s.db.IsParticipant(r.Context(), groupID, user.UserID)
	if err != nil {
		respondMappedError(w, err)
		return 0, false
	}
	if !member {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "not a member of this group", nil)
		return 0, false
	}
	return groupID, true
}

// handleGroupDetails returns the group and its member roster.
func (s *Server) handleGroupDetails(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.requireMembership(w, r)
	if !ok {
		return
	}

	group, err := s.db.GetConversation(r.Context(), groupID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	members, err := s.db.ListGroupMembers(r.Context(), groupID)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"group":   group,
		"members": members,
	})
}

// handleGroupMessages returns the group history, oldest first.
func (s *Server) handleGroupMessages(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	groupID, ok := s.requireMembership(w, r)
	if !ok {
		return
	}

	limit := getIntParam(r, "limit", s.cfg.Chat.HistoryLimit)
	if limit <= 0 || limit > s.cfg.Chat.HistoryLimit {
		limit = s.cfg.Chat.HistoryLimit
	}

	messages, err := s.db.History(r.Context(), groupID, limit)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	for _, msg := range messages {
		msg.IsMine = msg.SenderID == user.UserID
	}
	respondData(w, http.StatusOK, messages)
}

type sendGroupMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// handleSendGroupMessage persists a group message and fans it out to the
// group room.
func (s *Server) handleSendGroupMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	groupID, err := urlID(r, "groupID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	var req sendGroupMessageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	msg, err := s.lifecycle.SendGroup(r.Context(), user.UserID, groupID, req.Content)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	s.fanout.DeliverGroup(msg, groupID)

	msg.IsMine = true
	respondData(w, http.StatusCreated, msg)
}

type addMemberRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// handleAddMember adds a user to the group. Admin only; the new member's
// live connection joins the group room immediately.
func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	groupID, err := urlID(r, "groupID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	role, err := s.db.ParticipantRole(r.Context(), groupID, user.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	if role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "only admins may add members", nil)
		return
	}

	var req addMemberRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
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

	if err := s.db.AddParticipant(r.Context(), groupID, req.UserID, models.RoleMember); err != nil {
		respondMappedError(w, err)
		return
	}

	if client := s.registry.Get(req.UserID); client != nil {
		s.hub.Join(client, chat.GroupRoom(groupID))
	}
	respondData(w, http.StatusCreated, map[string]string{"message": "member added"})
}

// handleRemoveMember removes a member. Only admins may remove other
// members, and the creator can never be removed.
func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	groupID, err := urlID(r, "groupID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	memberID, err := urlID(r, "memberID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	role, err := s.db.ParticipantRole(r.Context(), groupID, user.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	if role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "only admins may remove members", nil)
		return
	}

	group, err := s.db.GetConversation(r.Context(), groupID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	if group.CreatedBy == memberID {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "the group creator cannot be removed", nil)
		return
	}

	if err := s.db.RemoveParticipant(r.Context(), groupID, memberID); err != nil {
		respondMappedError(w, err)
		return
	}

	if client := s.registry.Get(memberID); client != nil {
		s.hub.Leave(client, chat.GroupRoom(groupID))
	}
	respondData(w, http.StatusOK, map[string]string{"message": "member removed"})
}

// handleLeaveGroup removes the caller from the group. The creator cannot
// leave; they must delete the group instead.
func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	groupID, err := urlID(r, "groupID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	group, err := s.db.GetConversation(r.Context(), groupID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	if group.Type != models.ConversationGroup {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "group not found", nil)
		return
	}
	if group.CreatedBy == user.UserID {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "the creator cannot leave; delete the group instead", nil)
		return
	}

	if err := s.db.RemoveParticipant(r.Context(), groupID, user.UserID); err != nil {
		respondMappedError(w, err)
		return
	}

	if client := s.registry.Get(user.UserID); client != nil {
		s.hub.Leave(client, chat.GroupRoom(groupID))
	}
	respondData(w, http.StatusOK, map[string]string{"message": "left group"})
}

// handleDeleteGroup deletes the group and its messages. Creator only.
func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	groupID, err := urlID(r, "groupID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	group, err := s.db.GetConversation(r.Context(), groupID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	if group.Type != models.ConversationGroup {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "group not found", nil)
		return
	}
	if group.CreatedBy != user.UserID {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "only the creator may delete the group", nil)
		return
	}

	if err := s.db.DeleteGroup(r.Context(), groupID); err != nil {
		respondMappedError(w, err)
		return
	}

	logging.Info().Int64("group_id", groupID).Int64("deleted_by", user.UserID).Msg("group deleted")
	respondData(w, http.StatusOK, map[string]interface{}{"group_id": groupID, "deleted": true})
}
