// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/courier/internal/database"
	"github.com/tomtom215/courier/internal/middleware"
	"github.com/tomtom215/courier/internal/models"
)

// handleHistory returns the direct conversation history with a contact,
// oldest first. Each message is stamped is_mine from the caller's view.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	contactID, err := urlID(r, "contactID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	limit := getIntParam(r, "limit", s.cfg.Chat.HistoryLimit)
	if limit <= 0 || limit > s.cfg.Chat.HistoryLimit {
		limit = s.cfg.Chat.HistoryLimit
	}

	conv, err := s.db.FindDirectConversation(r.Context(), user.UserID, contactID)
	if errors.Is(err, database.ErrNotFound) {
		// No conversation yet means an empty history, not an error.
		respondData(w, http.StatusOK, []*models.Message{})
		return
	}
	if err != nil {
		respondMappedError(w, err)
		return
	}

	messages, err := s.db.History(r.Context(), conv.ConvID, limit)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	for _, msg := range messages {
		msg.IsMine = msg.SenderID == user.UserID
	}
	respondData(w, http.StatusOK, messages)
}

type sendMessageRequest struct {
	ReceiverID int64  `json:"receiver_id" validate:"required,gt=0"`
	Content    string `json:"content" validate:"required"`
}

// handleSendMessage persists a direct message through the same lifecycle as
// the websocket path, so REST-sent messages reach online clients in real
// time as well.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	msg, err := s.lifecycle.SendDirect(r.Context(), user.UserID, req.ReceiverID, req.Content)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	s.fanout.DeliverDirect(msg)

	if s.registry.IsOnline(msg.ReceiverID) {
		if changed, err := s.lifecycle.MarkDelivered(r.Context(), msg.MsgID); err == nil && changed {
			s.fanout.NotifyDelivered(msg.SenderID, msg.MsgID, msg.ReceiverID)
			msg.Status = models.MessageStatusDelivered
		}
	}

	msg.IsMine = true
	respondData(w, http.StatusCreated, msg)
}

// handleMarkRead marks everything from the contact as read.
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	contactID, err := urlID(r, "contactID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	changed, err := s.lifecycle.MarkRead(r.Context(), user.UserID, contactID)
	if errors.Is(err, database.ErrNotFound) {
		respondData(w, http.StatusOK, map[string]int64{"marked_read": 0})
		return
	}
	if err != nil {
		respondMappedError(w, err)
		return
	}
	if changed > 0 {
		s.fanout.NotifyRead(user.UserID, contactID)
	}
	respondData(w, http.StatusOK, map[string]int64{"marked_read": changed})
}

type editMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// handleEditMessage edits the caller's own message and notifies parties
// over the websocket.
func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	msgID, err := urlID(r, "msgID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	var req editMessageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	msg, conv, err := s.lifecycle.Edit(r.Context(), user.UserID, msgID, req.Content)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	// Excluding the caller's live connection keeps the group room copy from
	// duplicating the personal room one.
	s.fanout.NotifyEdited(s.registry.Get(user.UserID), msg, conv)

	msg.IsMine = true
	respondData(w, http.StatusOK, msg)
}

// handleDeleteMessage tombstones the caller's own message.
func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	msgID, err := urlID(r, "msgID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	msg, conv, err := s.lifecycle.Delete(r.Context(), user.UserID, msgID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	s.fanout.NotifyDeleted(s.registry.Get(user.UserID), msg, conv)

	respondData(w, http.StatusOK, map[string]interface{}{"msg_id": msgID, "deleted": true})
}

// handleUnreadCount returns the total unread count for the caller.
func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	count, err := s.db.UnreadCount(r.Context(), user.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]int{"unread_count": count})
}

// handleUnreadPerContact returns unread counts grouped by sender.
func (s *Server) handleUnreadPerContact(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthUser(r.Context())

	counts, err := s.db.UnreadPerContact(r.Context(), user.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusOK, counts)
}
