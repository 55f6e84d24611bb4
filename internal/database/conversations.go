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

// DirectPairKey builds the canonical unordered pair key for a direct
// conversation. The lower user ID always comes first so both orderings
// of the same pair map to one key.
func DirectPairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("d:%d:%d", a, b)
}

// FindDirectConversation looks up the direct conversation between two users.
func (db *DB) FindDirectConversation(ctx context.Context, a, b int64) (*models.Conversation, error) {
	defer observe("select", "conversations", time.Now())

	return db.scanConversation(db.conn.QueryRowContext(ctx,
		`SELECT conv_id, conv_type, name, created_by, pair_key, privacy, created_at, last_message_at
		 FROM conversations WHERE pair_key = ?`, DirectPairKey(a, b)))
}

// CreateDirectConversation inserts a direct conversation for the pair and
// both participant rows. Returns ErrConflict when a concurrent creator won
// the pair_key uniqueness race; the caller re-reads in that case.
func (db *DB) CreateDirectConversation(ctx context.Context, creatorID, otherID int64) (*models.Conversation, error) {
	defer observe("insert", "conversations", time.Now())

	conv := &models.Conversation{
		Type:      models.ConversationDirect,
		CreatedBy: creatorID,
		PairKey:   DirectPairKey(creatorID, otherID),
	}

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO conversations (conv_type, created_by, pair_key)
		 VALUES (?, ?, ?)
		 ON CONFLICT (pair_key) DO NOTHING
		 RETURNING conv_id, privacy, created_at`,
		conv.Type, creatorID, conv.PairKey,
	).Scan(&conv.ConvID, &conv.Privacy, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race: the pair's conversation already exists.
		return nil, fmt.Errorf("create direct conversation: %w", ErrConflict)
	}
	if err != nil {
		return nil, mapConstraintErr("create direct conversation", err)
	}

	for _, userID := range []int64{creatorID, otherID} {
		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id, role)
			 VALUES (?, ?, ?)
			 ON CONFLICT (conversation_id, user_id) DO NOTHING`,
			conv.ConvID, userID, models.RoleMember); err != nil {
			return nil, fmt.Errorf("add direct participant: %w: %v", ErrTransient, err)
		}
	}

	return conv, nil
}

// CreateGroup creates a group conversation. The creator becomes admin and
// the given members are added with the member role.
func (db *DB) CreateGroup(ctx context.Context, name string, creatorID int64, memberIDs []int64) (*models.Conversation, error) {
	defer observe("insert", "conversations", time.Now())

	conv := &models.Conversation{
		Type:      models.ConversationGroup,
		Name:      name,
		CreatedBy: creatorID,
	}

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO conversations (conv_type, name, created_by)
		 VALUES (?, ?, ?)
		 RETURNING conv_id, privacy, created_at`,
		conv.Type, name, creatorID,
	).Scan(&conv.ConvID, &conv.Privacy, &conv.CreatedAt)
	if err != nil {
		return nil, mapConstraintErr("create group", err)
	}

	if err := db.addParticipantRow(ctx, conv.ConvID, creatorID, models.RoleAdmin); err != nil {
		return nil, err
	}
	for _, memberID := range memberIDs {
		if memberID == creatorID {
			continue
		}
		if err := db.addParticipantRow(ctx, conv.ConvID, memberID, models.RoleMember); err != nil {
			return nil, err
		}
	}

	return conv, nil
}

func (db *DB) addParticipantRow(ctx context.Context, convID, userID int64, role string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO conversation_participants (conversation_id, user_id, role)
		 VALUES (?, ?, ?)
		 ON CONFLICT (conversation_id, user_id) DO NOTHING`,
		convID, userID, role)
	if err != nil {
		return fmt.Errorf("add participant: %w: %v", ErrTransient, err)
	}
	return nil
}

// GetConversation fetches a conversation by ID.
func (db *DB) GetConversation(ctx context.Context, convID int64) (*models.Conversation, error) {
	defer observe("select", "conversations", time.Now())

	return db.scanConversation(db.conn.QueryRowContext(ctx,
		`SELECT conv_id, conv_type, name, created_by, pair_key, privacy, created_at, last_message_at
		 FROM conversations WHERE conv_id = ?`, convID))
}

func (db *DB) scanConversation(row *sql.Row) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var name, pairKey sql.NullString
	var lastMessageAt sql.NullTime

	err := row.Scan(&conv.ConvID, &conv.Type, &name, &conv.CreatedBy,
		&pairKey, &conv.Privacy, &conv.CreatedAt, &lastMessageAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w: %v", ErrTransient, err)
	}

	conv.Name = name.String
	conv.PairKey = pairKey.String
	if lastMessageAt.Valid {
		conv.LastMessageAt = &lastMessageAt.Time
	}
	return conv, nil
}

// TouchConversation updates the conversation's last message timestamp.
func (db *DB) TouchConversation(ctx context.Context, convID int64) error {
	defer observe("update", "conversations", time.Now())

	_, err := db.conn.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = current_timestamp WHERE conv_id = ?`, convID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w: %v", ErrTransient, err)
	}
	return nil
}

// IsParticipant reports whether the user belongs to the conversation.
func (db *DB) IsParticipant(ctx context.Context, convID, userID int64) (bool, error) {
	defer observe("select", "conversation_participants", time.Now())

	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM conversation_participants
		 WHERE conversation_id = ? AND user_id = ?`, convID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is participant: %w: %v", ErrTransient, err)
	}
	return true, nil
}

// ParticipantRole returns the user's role in the conversation, or ErrNotFound.
func (db *DB) ParticipantRole(ctx context.Context, convID, userID int64) (string, error) {
	defer observe("select", "conversation_participants", time.Now())

	var role string
	err := db.conn.QueryRowContext(ctx,
		`SELECT role FROM conversation_participants
		 WHERE conversation_id = ? AND user_id = ?`, convID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("participant: %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("participant role: %w: %v", ErrTransient, err)
	}
	return role, nil
}

// AddParticipant adds a user to a conversation. Returns ErrConflict when
// the user is already a participant.
func (db *DB) AddParticipant(ctx context.Context, convID, userID int64, role string) error {
	defer observe("insert", "conversation_participants", time.Now())

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO conversation_participants (conversation_id, user_id, role)
		 VALUES (?, ?, ?)
		 ON CONFLICT (conversation_id, user_id) DO NOTHING`,
		convID, userID, role)
	if err != nil {
		return fmt.Errorf("add participant: %w: %v", ErrTransient, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add participant: %w: %v", ErrTransient, err)
	}
	if affected == 0 {
		return fmt.Errorf("participant already present: %w", ErrConflict)
	}
	return nil
}

// RemoveParticipant removes a user from a conversation. Returns ErrNotFound
// when the user was not a participant.
func (db *DB) RemoveParticipant(ctx context.Context, convID, userID int64) error {
	defer observe("delete", "conversation_participants", time.Now())

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM conversation_participants
		 WHERE conversation_id = ? AND user_id = ?`, convID, userID)
	if err != nil {
		return fmt.Errorf("remove participant: %w: %v", ErrTransient, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove participant: %w: %v", ErrTransient, err)
	}
	if affected == 0 {
		return fmt.Errorf("participant: %w", ErrNotFound)
	}
	return nil
}

// ParticipantIDs returns all user IDs in a conversation.
func (db *DB) ParticipantIDs(ctx context.Context, convID int64) ([]int64, error) {
	defer observe("select", "conversation_participants", time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id FROM conversation_participants
		 WHERE conversation_id = ? ORDER BY user_id`, convID)
	if err != nil {
		return nil, fmt.Errorf("participant ids: %w: %v", ErrTransient, err)
	}
	defer closeRows(rows)

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant id: %w: %v", ErrTransient, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("participant ids: %w: %v", ErrTransient, err)
	}
	return ids, nil
}

// ListGroupMembers returns the hydrated participant list of a group.
func (db *DB) ListGroupMembers(ctx context.Context, convID int64) ([]models.GroupMember, error) {
	defer observe("select", "conversation_participants", time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.user_id, u.username, u.email, cp.role, cp.joined_at
		 FROM conversation_participants cp
		 JOIN users u ON u.user_id = cp.user_id
		 WHERE cp.conversation_id = ?
		 ORDER BY u.username ASC`, convID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w: %v", ErrTransient, err)
	}
	defer closeRows(rows)

	members := []models.GroupMember{}
	for rows.Next() {
		var m models.GroupMember
		if err := rows.Scan(&m.UserID, &m.Username, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan group member: %w: %v", ErrTransient, err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list group members: %w: %v", ErrTransient, err)
	}
	return members, nil
}

// ListUserGroups returns the group conversations the user belongs to, with
// member counts and the user's unread message count per group.
func (db *DB) ListUserGroups(ctx context.Context, userID int64) ([]models.GroupSummary, error) {
	defer observe("select", "conversations", time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.conv_id, c.name, c.created_by, c.created_at, c.last_message_at,
		        (SELECT COUNT(*) FROM conversation_participants p
		          WHERE p.conversation_id = c.conv_id) AS member_count,
		        (SELECT COUNT(*) FROM messages m
		          WHERE m.conv_id = c.conv_id
		            AND m.sender_id != ?
		            AND m.status != 'read'
		            AND NOT m.deleted) AS unread_count
		 FROM conversations c
		 JOIN conversation_participants cp
		   ON cp.conversation_id = c.conv_id AND cp.user_id = ?
		 WHERE c.conv_type = 'group'
		 ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list user groups: %w: %v", ErrTransient, err)
	}
	defer closeRows(rows)

	groups := []models.GroupSummary{}
	for rows.Next() {
		var g models.GroupSummary
		var name sql.NullString
		var lastMessageAt sql.NullTime
		if err := rows.Scan(&g.ConvID, &name, &g.CreatedBy, &g.CreatedAt,
			&lastMessageAt, &g.MemberCount, &g.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan group summary: %w: %v", ErrTransient, err)
		}
		g.Name = name.String
		if lastMessageAt.Valid {
			g.LastMessageAt = &lastMessageAt.Time
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list user groups: %w: %v", ErrTransient, err)
	}
	return groups, nil
}

// ListUserGroupIDs returns the IDs of all group conversations the user
// belongs to. Used to join group rooms at connect time.
func (db *DB) ListUserGroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	defer observe("select", "conversation_participants", time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.conv_id
		 FROM conversations c
		 JOIN conversation_participants cp
		   ON cp.conversation_id = c.conv_id AND cp.user_id = ?
		 WHERE c.conv_type = 'group'`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user group ids: %w: %v", ErrTransient, err)
	}
	defer closeRows(rows)

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w: %v", ErrTransient, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list user group ids: %w: %v", ErrTransient, err)
	}
	return ids, nil
}

// DeleteGroup removes a group conversation, its participants, and its
// messages.
func (db *DB) DeleteGroup(ctx context.Context, convID int64) error {
	defer observe("delete", "conversations", time.Now())

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete group: %w: %v", ErrTransient, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM messages WHERE conv_id = ?`,
		`DELETE FROM conversation_participants WHERE conversation_id = ?`,
		`DELETE FROM conversations WHERE conv_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, convID); err != nil {
			return fmt.Errorf("delete group: %w: %v", ErrTransient, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete group: %w: %v", ErrTransient, err)
	}
	return nil
}
