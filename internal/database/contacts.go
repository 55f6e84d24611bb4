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

// ListContacts returns the user's contacts with their current presence status.
func (db *DB) ListContacts(ctx context.Context, userID int64) ([]models.Contact, error) {
	defer observe("select", "user_contacts", time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.user_id, u.username, u.email, u.status, u.last_active
		 FROM user_contacts uc
		 JOIN users u ON u.user_id = uc.contact_user_id
		 WHERE uc.user_id = ?
		 ORDER BY u.username ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w: %v", ErrTransient, err)
	}
	defer closeRows(rows)

	contacts := []models.Contact{}
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.UserID, &c.Username, &c.Email, &c.Status, &c.LastActive); err != nil {
			return nil, fmt.Errorf("scan contact: %w: %v", ErrTransient, err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contacts: %w: %v", ErrTransient, err)
	}
	return contacts, nil
}

// AddContact adds a one-directional contact entry. Returns ErrConflict when
// the contact already exists.
func (db *DB) AddContact(ctx context.Context, userID, contactID int64) error {
	defer observe("insert", "user_contacts", time.Now())

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_contacts (user_id, contact_user_id)
		 VALUES (?, ?)
		 ON CONFLICT (user_id, contact_user_id) DO NOTHING`,
		userID, contactID)
	if err != nil {
		return fmt.Errorf("add contact: %w: %v", ErrTransient, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add contact: %w: %v", ErrTransient, err)
	}
	if affected == 0 {
		return fmt.Errorf("contact already present: %w", ErrConflict)
	}
	return nil
}

// RemoveContact deletes a contact entry. Returns ErrNotFound when absent.
func (db *DB) RemoveContact(ctx context.Context, userID, contactID int64) error {
	defer observe("delete", "user_contacts", time.Now())

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM user_contacts WHERE user_id = ? AND contact_user_id = ?`,
		userID, contactID)
	if err != nil {
		return fmt.Errorf("remove contact: %w: %v", ErrTransient, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove contact: %w: %v", ErrTransient, err)
	}
	if affected == 0 {
		return fmt.Errorf("contact: %w", ErrNotFound)
	}
	return nil
}

// IsContact reports whether contactID is on userID's contact list.
func (db *DB) IsContact(ctx context.Context, userID, contactID int64) (bool, error) {
	defer observe("select", "user_contacts", time.Now())

	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM user_contacts WHERE user_id = ? AND contact_user_id = ?`,
		userID, contactID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is contact: %w: %v", ErrTransient, err)
	}
	return true, nil
}

// BlockUser records a block and drops the blocker's contact entry for the
// blocked user. Returns ErrConflict when the block already exists.
func (db *DB) BlockUser(ctx context.Context, blockerID, blockedID int64) error {
	defer observe("insert", "user_blocks", time.Now())

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_blocks (blocker_id, blocked_id)
		 VALUES (?, ?)
		 ON CONFLICT (blocker_id, blocked_id) DO NOTHING`,
		blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("block user: %w: %v", ErrTransient, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("block user: %w: %v", ErrTransient, err)
	}
	if affected == 0 {
		return fmt.Errorf("user already blocked: %w", ErrConflict)
	}

	// Blocking removes the existing contact entry, if any.
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM user_contacts WHERE user_id = ? AND contact_user_id = ?`,
		blockerID, blockedID); err != nil {
		return fmt.Errorf("drop blocked contact: %w: %v", ErrTransient, err)
	}

	return nil
}

// UnblockUser removes a block entry. Returns ErrNotFound when absent.
func (db *DB) UnblockUser(ctx context.Context, blockerID, blockedID int64) error {
	defer observe("delete", "user_blocks", time.Now())

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM user_blocks WHERE blocker_id = ? AND blocked_id = ?`,
		blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("unblock user: %w: %v", ErrTransient, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unblock user: %w: %v", ErrTransient, err)
	}
	if affected == 0 {
		return fmt.Errorf("block: %w", ErrNotFound)
	}
	return nil
}

// IsBlockedEither reports whether either user has blocked the other.
func (db *DB) IsBlockedEither(ctx context.Context, a, b int64) (bool, error) {
	defer observe("select", "user_blocks", time.Now())

	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM user_blocks
		 WHERE (blocker_id = ? AND blocked_id = ?)
		    OR (blocker_id = ? AND blocked_id = ?)`,
		a, b, b, a).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is blocked: %w: %v", ErrTransient, err)
	}
	return true, nil
}

// ListBlocked returns the users blocked by blockerID, most recent first.
func (db *DB) ListBlocked(ctx context.Context, blockerID int64) ([]models.BlockedUser, error) {
	defer observe("select", "user_blocks", time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.user_id, u.username, u.email, ub.blocked_at
		 FROM user_blocks ub
		 JOIN users u ON u.user_id = ub.blocked_id
		 WHERE ub.blocker_id = ?
		 ORDER BY ub.blocked_at DESC`, blockerID)
	if err != nil {
		return nil, fmt.Errorf("list blocked: %w: %v", ErrTransient, err)
	}
	defer closeRows(rows)

	blocked := []models.BlockedUser{}
	for rows.Next() {
		var b models.BlockedUser
		if err := rows.Scan(&b.UserID, &b.Username, &b.Email, &b.BlockedAt); err != nil {
			return nil, fmt.Errorf("scan blocked user: %w: %v", ErrTransient, err)
		}
		blocked = append(blocked, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list blocked: %w: %v", ErrTransient, err)
	}
	return blocked, nil
}
