// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/courier/internal/models"
)

// InsertMessage persists a new message with status "sent" and touches the
// conversation's last message timestamp. Returns the hydrated message.
func (db *DB) InsertMessage(ctx context.Context, convID, senderID, receiverID int64, content string) (*models.Message, error) {
	defer observe("insert", "messages", time.Now())

	var msgID int64
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO messages (conv_id, sender_id, receiver_id, content, status)
		 VALUES (?, ?, ?, ?, 'sent')
		 RETURNING msg_id`,
		convID, senderID, receiverID, content,
	).Scan(&msgID)
	if err != nil {
		return nil, mapConstraintErr("insert message", err)
	}

	if err := db.TouchConversation(ctx, convID); err != nil {
		return nil, err
	}

	return db.GetMessage(ctx, msgID)
}

// GetMessage fetches a message hydrated with the sender's username.
func (db *DB) GetMessage(ctx context.Context, msgID int64) (*models.Message, error) {
	defer observe("select", "messages", time.Now())

	return db.scanMessage(db.conn.QueryRowContext(ctx,
		`SELECT m.msg_id, m.conv_id, m.sender_id, m.receiver_id, m.content,
		        m.sent_at, m.status, m.edited, m.edited_at,
		        m.deleted, m.deleted_at, m.pinned, m.attachment_path, u.username
		 FROM messages m
		 JOIN users u ON u.user_id = m.sender_id
		 WHERE m.msg_id = ?`, msgID))
}

func (db *DB) scanMessage(row *sql.Row) (*models.Message, error) {
	msg := &models.Message{}
	var editedAt, deletedAt sql.NullTime
	var attachmentPath sql.NullString

	err := row.Scan(&msg.MsgID, &msg.ConvID, &msg.SenderID, &msg.ReceiverID,
		&msg.Content, &msg.Timestamp, &msg.Status, &msg.Edited, &editedAt,
		&msg.Deleted, &deletedAt, &msg.Pinned, &attachmentPath, &msg.SenderUsername)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w: %v", ErrTransient, err)
	}

	if editedAt.Valid {
		msg.EditedAt = &editedAt.Time
	}
	if deletedAt.Valid {
		msg.DeletedAt = &deletedAt.Time
	}
	if attachmentPath.Valid {
		msg.AttachmentPath = &attachmentPath.String
	}
	return msg, nil
}

// History returns the most recent messages of a conversation in ascending
// timestamp order, capped at limit.
func (db *DB) History(ctx context.Context, convID int64, limit int) ([]*models.Message, error) {
	defer observe("select", "messages", time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT * FROM (
		   SELECT m.msg_id, m.conv_id, m.sender_id, m.receiver_id, m.content,
		          m.sent_at, m.status, m.edited, m.edited_at,
		          m.deleted, m.deleted_at, m.pinned, m.attachment_path, u.username
		   FROM messages m
		   JOIN users u ON u.user_id = m.sender_id
		   WHERE m.conv_id = ?
		   ORDER BY m.sent_at DESC, m.msg_id DESC
		   LIMIT ?
		 ) ORDER BY sent_at ASC, msg_id ASC`,
		convID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w: %v", ErrTransient, err)
	}
	defer closeRows(rows)

	messages := []*models.Message{}
	for rows.Next() {
		msg := &models.Message{}
		var editedAt, deletedAt sql.NullTime
		var attachmentPath sql.NullString
		if err := rows.Scan(&msg.MsgID, &msg.ConvID, &msg.SenderID, &msg.ReceiverID,
			&msg.Content, &msg.Timestamp, &msg.Status, &msg.Edited, &editedAt,
			&msg.Deleted, &deletedAt, &msg.Pinned, &attachmentPath, &msg.SenderUsername); err != nil {
			return nil, fmt.Errorf("scan history row: %w: %v", ErrTransient, err)
		}
		if editedAt.Valid {
			msg.EditedAt = &editedAt.Time
		}
		if deletedAt.Valid {
			msg.DeletedAt = &deletedAt.Time
		}
		if attachmentPath.Valid {
			msg.AttachmentPath = &attachmentPath.String
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: %w: %v", ErrTransient, err)
	}
	return messages, nil
}

// MarkDelivered advances a message from "sent" to "delivered". The guard in
// the WHERE clause makes the transition monotonic: a message already
// delivered or read is left untouched and the call reports no change.
func (db *DB) MarkDelivered(ctx context.Context, msgID int64) (bool, error) {
	defer observe("update", "messages", time.Now())

	res, err := db.conn.ExecContext(ctx,
		`UPDATE messages SET status = 'delivered'
		 WHERE msg_id = ? AND status = 'sent'`, msgID)
	if err != nil {
		return false, fmt.Errorf("mark delivered: %w: %v", ErrTransient, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark delivered: %w: %v", ErrTransient, err)
	}
	return affected > 0, nil
}

// MarkConversationRead marks all messages addressed to the reader in the
// conversation as read. Already-read messages are untouched, so repeated
// calls are no-ops. Returns the number of messages that changed state.
func (db *DB) MarkConversationRead(ctx context.Context, convID, readerID int64) (int64, error) {
	defer observe("update", "messages", time.Now())

	res, err := db.conn.ExecContext(ctx,
		`UPDATE messages SET status = 'read'
		 WHERE conv_id = ? AND receiver_id = ? AND status IN ('sent', 'delivered')`,
		convID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w: %v", ErrTransient, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w: %v", ErrTransient, err)
	}
	return affected, nil
}

// EditMessage replaces the content of a live message and stamps it edited.
// Deleted messages are terminal; editing one reports no change. Returning
// the edit timestamp from the same statement keeps the update atomic, so a
// reported change is never a stale read against a concurrent delete.
// Ownership is checked by the caller against the fetched message.
func (db *DB) EditMessage(ctx context.Context, msgID int64, content string) (time.Time, bool, error) {
	defer observe("update", "messages", time.Now())

	var editedAt time.Time
	err := db.conn.QueryRowContext(ctx,
		`UPDATE messages
		 SET content = ?, edited = TRUE, edited_at = current_timestamp
		 WHERE msg_id = ? AND NOT deleted
		 RETURNING edited_at`, content, msgID).Scan(&editedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("edit message: %w: %v", ErrTransient, err)
	}
	return editedAt, true, nil
}

// SoftDeleteMessage tombstones a message: content is replaced with the
// placeholder and the deleted flag set. Repeats are no-ops.
func (db *DB) SoftDeleteMessage(ctx context.Context, msgID int64) (bool, error) {
	defer observe("update", "messages", time.Now())

	res, err := db.conn.ExecContext(ctx,
		`UPDATE messages
		 SET deleted = TRUE, deleted_at = current_timestamp, content = ?
		 WHERE msg_id = ? AND NOT deleted`,
		models.DeletedMessagePlaceholder, msgID)
	if err != nil {
		return false, fmt.Errorf("soft delete message: %w: %v", ErrTransient, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete message: %w: %v", ErrTransient, err)
	}
	return affected > 0, nil
}

// UnreadCount returns the total number of unread messages addressed to the
// user across direct conversations.
func (db *DB) UnreadCount(ctx context.Context, userID int64) (int, error) {
	defer observe("select", "messages", time.Now())

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages
		 WHERE receiver_id = ? AND sender_id != ? AND status != 'read' AND NOT deleted`,
		userID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w: %v", ErrTransient, err)
	}
	return count, nil
}

// UnreadPerContact returns unread message counts grouped by sender.
func (db *DB) UnreadPerContact(ctx context.Context, userID int64) ([]models.ContactUnread, error) {
	defer observe("select", "messages", time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT sender_id, COUNT(*) FROM messages
		 WHERE receiver_id = ? AND sender_id != ? AND status != 'read' AND NOT deleted
		 GROUP BY sender_id`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("unread per contact: %w: %v", ErrTransient, err)
	}
	defer closeRows(rows)

	counts := []models.ContactUnread{}
	for rows.Next() {
		var c models.ContactUnread
		if err := rows.Scan(&c.ContactID, &c.Count); err != nil {
			return nil, fmt.Errorf("scan unread count: %w: %v", ErrTransient, err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unread per contact: %w: %v", ErrTransient, err)
	}
	return counts, nil
}
