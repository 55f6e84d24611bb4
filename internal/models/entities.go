// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

// Package models defines the core data types shared across Courier:
// users, conversations, messages, and the API response envelope.
package models

import (
	"time"
)

// User presence status values persisted in the store.
const (
	UserStatusOnline  = "online"
	UserStatusOffline = "offline"
)

// Conversation types.
const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

// Participant roles within a group conversation.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Message delivery status values. Transitions are monotonic:
// sent -> delivered -> read. A repeated or backward transition is a no-op.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// DeletedMessagePlaceholder replaces the content of soft-deleted messages.
const DeletedMessagePlaceholder = "This message was deleted"

// User represents a registered account.
type User struct {
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Status       string    `json:"status"`
	LastActive   time.Time `json:"last_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Conversation is a direct pair or a named group.
//
// For direct conversations PairKey holds the canonical unordered pair key
// ("d:<minID>:<maxID>"); a unique index on it guarantees at most one direct
// conversation per user pair. Groups have no pair key.
type Conversation struct {
	ConvID        int64      `json:"conv_id"`
	Type          string     `json:"type"`
	Name          string     `json:"name,omitempty"`
	CreatedBy     int64      `json:"created_by"`
	PairKey       string     `json:"-"`
	Privacy       string     `json:"privacy"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// GroupSummary is a group conversation as listed for one user.
type GroupSummary struct {
	ConvID        int64      `json:"conv_id"`
	Name          string     `json:"name"`
	CreatedBy     int64      `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	MemberCount   int        `json:"member_count"`
	UnreadCount   int        `json:"unread_count"`
}

// GroupMember is a participant row hydrated with user details.
type GroupMember struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Message is a persisted chat message hydrated with the sender's username.
//
// For group messages ReceiverID equals SenderID; the conversation's
// participant set defines the real audience.
type Message struct {
	MsgID          int64      `json:"msg_id"`
	ConvID         int64      `json:"conv_id"`
	SenderID       int64      `json:"sender_id"`
	ReceiverID     int64      `json:"receiver_id"`
	Content        string     `json:"content"`
	Timestamp      time.Time  `json:"timestamp"`
	Status         string     `json:"status"`
	Edited         bool       `json:"edited"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	Deleted        bool       `json:"deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	Pinned         bool       `json:"pinned"`
	AttachmentPath *string    `json:"attachment_path,omitempty"`
	SenderUsername string     `json:"sender_username,omitempty"`
	// IsMine is set per viewer when serving history or realtime fanout.
	IsMine bool `json:"is_mine"`
}

// Contact is another user on the current user's contact list.
type Contact struct {
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Status     string    `json:"status"`
	LastActive time.Time `json:"last_active"`
}

// BlockedUser is an entry on the current user's block list.
type BlockedUser struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	BlockedAt time.Time `json:"blocked_at"`
}

// UserSearchResult is a user matched by a contact search.
type UserSearchResult struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	IsContact bool   `json:"is_contact"`
}

// ContactUnread is the unread message count from one contact.
type ContactUnread struct {
	ContactID int64 `json:"contact_id"`
	Count     int   `json:"count"`
}
