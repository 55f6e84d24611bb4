// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/database"
	"github.com/tomtom215/courier/internal/models"
)

// Lifecycle enforces the rules around message state: who may send, edit and
// delete, and which transitions are legal. The store guards make the status
// machine monotonic; this layer adds validation and ownership checks.
type Lifecycle struct {
	db       *database.DB
	resolver *Resolver
	cfg      *config.ChatConfig
}

// NewLifecycle creates the message lifecycle service.
func NewLifecycle(db *database.DB, resolver *Resolver, cfg *config.ChatConfig) *Lifecycle {
	return &Lifecycle{db: db, resolver: resolver, cfg: cfg}
}

func (l *Lifecycle) validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("empty message: %w", ErrValidation)
	}
	if len(content) > l.cfg.MaxMessageLength {
		return "", fmt.Errorf("message exceeds %d bytes: %w", l.cfg.MaxMessageLength, ErrValidation)
	}
	return content, nil
}

// SendDirect validates and persists a direct message, resolving the
// conversation for the pair on the way.
func (l *Lifecycle) SendDirect(ctx context.Context, senderID, receiverID int64, content string) (*models.Message, error) {
	content, err := l.validateContent(content)
	if err != nil {
		return nil, err
	}
	if receiverID <= 0 || receiverID == senderID {
		return nil, fmt.Errorf("invalid receiver: %w", ErrValidation)
	}

	blocked, err := l.db.IsBlockedEither(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, fmt.Errorf("cannot message this user: %w", ErrBlocked)
	}

	exists, err := l.db.UserExists(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("receiver: %w", database.ErrNotFound)
	}

	conv, err := l.resolver.ResolveDirect(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	return l.db.InsertMessage(ctx, conv.ConvID, senderID, receiverID, content)
}

// SendGroup validates and persists a group message. The sender must be a
// member of the group. Group rows carry the sender as receiver since there
// is no single counterparty.
func (l *Lifecycle) SendGroup(ctx context.Context, senderID, groupID int64, content string) (*models.Message, error) {
	content, err := l.validateContent(content)
	if err != nil {
		return nil, err
	}

	conv, err := l.db.GetConversation(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if conv.Type != models.ConversationGroup {
		return nil, fmt.Errorf("not a group conversation: %w", ErrValidation)
	}

	member, err := l.db.IsParticipant(ctx, groupID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("not a member of this group: %w", ErrAuthorization)
	}

	return l.db.InsertMessage(ctx, groupID, senderID, senderID, content)
}

// Edit replaces the content of the actor's own live message. Deleted
// messages are terminal and reject edits. Returns the updated message and
// its conversation so the caller can route notifications.
func (l *Lifecycle) Edit(ctx context.Context, actorID, msgID int64, content string) (*models.Message, *models.Conversation, error) {
	content, err := l.validateContent(content)
	if err != nil {
		return nil, nil, err
	}

	msg, err := l.db.GetMessage(ctx, msgID)
	if err != nil {
		return nil, nil, err
	}
	if msg.SenderID != actorID {
		return nil, nil, fmt.Errorf("only the sender may edit a message: %w", ErrAuthorization)
	}
	if msg.Deleted {
		return nil, nil, fmt.Errorf("cannot edit a deleted message: %w", ErrValidation)
	}

	editedAt, changed, err := l.db.EditMessage(ctx, msgID, content)
	if err != nil {
		return nil, nil, err
	}
	if !changed {
		// A delete landed between the pre-check and the guarded update.
		return nil, nil, fmt.Errorf("cannot edit a deleted message: %w", ErrValidation)
	}

	conv, err := l.db.GetConversation(ctx, msg.ConvID)
	if err != nil {
		return nil, nil, err
	}

	// Compose the result from the row fetched before the update plus what
	// the guarded update reported. A re-read here could observe a delete
	// that landed after the edit and hand the tombstone to notifications.
	updated := *msg
	updated.Content = content
	updated.Edited = true
	updated.EditedAt = &editedAt
	return &updated, conv, nil
}

// Delete tombstones the actor's own message. Deleting an already-deleted
// message is an idempotent no-op. Returns the message as it was before
// deletion plus its conversation for routing.
func (l *Lifecycle) Delete(ctx context.Context, actorID, msgID int64) (*models.Message, *models.Conversation, error) {
	msg, err := l.db.GetMessage(ctx, msgID)
	if err != nil {
		return nil, nil, err
	}
	if msg.SenderID != actorID {
		return nil, nil, fmt.Errorf("only the sender may delete a message: %w", ErrAuthorization)
	}

	if _, err := l.db.SoftDeleteMessage(ctx, msgID); err != nil {
		return nil, nil, err
	}

	conv, err := l.db.GetConversation(ctx, msg.ConvID)
	if err != nil {
		return nil, nil, err
	}
	return msg, conv, nil
}

// MarkDelivered advances a message to delivered. Reports whether the state
// changed; already delivered or read messages stay put.
func (l *Lifecycle) MarkDelivered(ctx context.Context, msgID int64) (bool, error) {
	return l.db.MarkDelivered(ctx, msgID)
}

// MarkRead marks everything the contact sent the reader in their direct
// conversation as read. Returns the number of messages that changed state.
// A missing conversation reports ErrNotFound.
func (l *Lifecycle) MarkRead(ctx context.Context, readerID, contactID int64) (int64, error) {
	conv, err := l.db.FindDirectConversation(ctx, readerID, contactID)
	if err != nil {
		return 0, err
	}
	return l.db.MarkConversationRead(ctx, conv.ConvID, readerID)
}
