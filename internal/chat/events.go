// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package chat

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/courier/internal/models"
)

// Inbound event names accepted from clients.
const (
	EventSendMessage      = "send_message"
	EventSendGroupMessage = "send_group_message"
	EventTyping           = "typing"
	EventGroupTyping      = "group_typing"
	EventMarkRead         = "mark_read"
	EventDeleteMessage    = "delete_message"
	EventEditMessage      = "edit_message"
	EventJoinGroup        = "join_group"
	EventLeaveGroupRoom   = "leave_group_room"
	EventGetOnlineUsers   = "get_online_users"
)

// Outbound event names emitted to clients.
const (
	EventUserOnline        = "user_online"
	EventUserOffline       = "user_offline"
	EventMessageSent       = "message_sent"
	EventNewMessage        = "new_message"
	EventNewGroupMessage   = "new_group_message"
	EventMessageDelivered  = "message_delivered"
	EventMessagesRead      = "messages_read"
	EventMessageDeleted    = "message_deleted"
	EventMessageEdited     = "message_edited"
	EventUserTyping        = "user_typing"
	EventGroupUserTyping   = "group_user_typing"
	EventOnlineUsersList   = "online_users_list"
	EventJoinedGroup       = "joined_group"
	EventMessageError      = "message_error"
	EventGroupMessageError = "group_message_error"
)

// Event is the wire envelope for both directions. Inbound payloads stay raw
// until the handler knows which struct to decode into.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is an envelope carrying an already-built payload.
type Outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Inbound payloads. The acting user is always the authenticated connection,
// never a field of the payload.
type (
	SendMessagePayload struct {
		ReceiverID int64  `json:"receiver_id"`
		Content    string `json:"content"`
	}

	SendGroupMessagePayload struct {
		GroupID int64  `json:"group_id"`
		Content string `json:"content"`
	}

	TypingPayload struct {
		ReceiverID int64 `json:"receiver_id"`
		IsTyping   bool  `json:"is_typing"`
	}

	GroupTypingPayload struct {
		GroupID  int64 `json:"group_id"`
		IsTyping bool  `json:"is_typing"`
	}

	MarkReadPayload struct {
		ContactID int64 `json:"contact_id"`
	}

	DeleteMessagePayload struct {
		MsgID int64 `json:"msg_id"`
	}

	EditMessagePayload struct {
		MsgID   int64  `json:"msg_id"`
		Content string `json:"content"`
	}

	GroupRoomPayload struct {
		GroupID int64 `json:"group_id"`
	}
)

// Outbound payloads.
type (
	PresencePayload struct {
		UserID int64 `json:"user_id"`
	}

	DirectMessagePayload struct {
		MsgID          int64  `json:"msg_id"`
		ConvID         int64  `json:"conv_id"`
		SenderID       int64  `json:"sender_id"`
		ReceiverID     int64  `json:"receiver_id"`
		SenderUsername string `json:"sender_username"`
		Content        string `json:"content"`
		Timestamp      string `json:"timestamp"`
		Status         string `json:"status"`
		IsMine         bool   `json:"is_mine"`
	}

	GroupMessagePayload struct {
		MsgID          int64  `json:"msg_id"`
		GroupID        int64  `json:"group_id"`
		SenderID       int64  `json:"sender_id"`
		SenderUsername string `json:"sender_username"`
		Content        string `json:"content"`
		Timestamp      string `json:"timestamp"`
		Status         string `json:"status"`
		IsGroup        bool   `json:"is_group"`
	}

	DeliveredPayload struct {
		MsgID      int64 `json:"msg_id"`
		ReceiverID int64 `json:"receiver_id"`
	}

	ReadPayload struct {
		ReaderID int64 `json:"reader_id"`
		SenderID int64 `json:"sender_id"`
	}

	DeletedPayload struct {
		MsgID   int64 `json:"msg_id"`
		Deleted bool  `json:"deleted"`
	}

	EditedPayload struct {
		MsgID   int64  `json:"msg_id"`
		Content string `json:"content"`
		Edited  bool   `json:"edited"`
	}

	TypingIndicatorPayload struct {
		UserID   int64 `json:"user_id"`
		IsTyping bool  `json:"is_typing"`
	}

	GroupTypingIndicatorPayload struct {
		UserID   int64  `json:"user_id"`
		Username string `json:"username"`
		IsTyping bool   `json:"is_typing"`
		GroupID  int64  `json:"group_id"`
	}

	OnlineUsersPayload struct {
		Users []int64 `json:"users"`
	}

	JoinedGroupPayload struct {
		GroupID int64 `json:"group_id"`
	}

	ErrorPayload struct {
		Error string `json:"error"`
		Code  string `json:"code,omitempty"`
	}
)

// directPayload builds the wire payload for a stored direct message, viewed
// from the perspective given by isMine.
func directPayload(msg *models.Message, isMine bool) DirectMessagePayload {
	return DirectMessagePayload{
		MsgID:          msg.MsgID,
		ConvID:         msg.ConvID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		SenderUsername: msg.SenderUsername,
		Content:        msg.Content,
		Timestamp:      msg.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Status:         msg.Status,
		IsMine:         isMine,
	}
}

func groupPayload(msg *models.Message, groupID int64) GroupMessagePayload {
	return GroupMessagePayload{
		MsgID:          msg.MsgID,
		GroupID:        groupID,
		SenderID:       msg.SenderID,
		SenderUsername: msg.SenderUsername,
		Content:        msg.Content,
		Timestamp:      msg.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Status:         msg.Status,
		IsGroup:        true,
	}
}
