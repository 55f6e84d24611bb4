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

// CreateUser inserts a new account. Returns ErrConflict when the username
// or email is already taken.
func (db *DB) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	defer observe("insert", "users", time.Now())

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Status:       models.UserStatusOffline,
	}

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash)
		 VALUES (?, ?, ?)
		 RETURNING user_id, last_active, created_at`,
		username, email, passwordHash,
	).Scan(&user.UserID, &user.LastActive, &user.CreatedAt)
	if err != nil {
		return nil, mapConstraintErr("create user", err)
	}

	return user, nil
}

// GetUserByID fetches a user by ID.
func (db *DB) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	defer observe("select", "users", time.Now())

	return db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT user_id, username, email, password_hash, status, last_active, created_at
		 FROM users WHERE user_id = ?`, userID))
}

// GetUserByIdentifier fetches a user by username or email.
func (db *DB) GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	defer observe("select", "users", time.Now())

	return db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT user_id, username, email, password_hash, status, last_active, created_at
		 FROM users WHERE username = ? OR email = ?`, identifier, identifier))
}

func (db *DB) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.UserID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Status, &user.LastActive, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w: %v", ErrTransient, err)
	}
	return user, nil
}

// SetUserStatus updates the persisted presence status and touches last_active.
// Presence writes are best-effort bookkeeping: the in-memory registry is the
// authority for routing decisions.
func (db *DB) SetUserStatus(ctx context.Context, userID int64, status string) error {
	defer observe("update", "users", time.Now())

	_, err := db.conn.ExecContext(ctx,
		`UPDATE users SET status = ?, last_active = current_timestamp WHERE user_id = ?`,
		status, userID)
	if err != nil {
		return fmt.Errorf("set user status: %w: %v", ErrTransient, err)
	}
	return nil
}

// SearchUsers finds users matching the query by username or email, excluding
// the searching user, flagging existing contacts.
func (db *DB) SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]models.UserSearchResult, error) {
	defer observe("select", "users", time.Now())

	pattern := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.user_id, u.username, u.email,
		        uc.contact_user_id IS NOT NULL AS is_contact
		 FROM users u
		 LEFT JOIN user_contacts uc
		   ON uc.contact_user_id = u.user_id AND uc.user_id = ?
		 WHERE (u.username LIKE ? OR u.email LIKE ?)
		   AND u.user_id != ?
		 ORDER BY u.username ASC
		 LIMIT ?`,
		excludeID, pattern, pattern, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w: %v", ErrTransient, err)
	}
	defer closeRows(rows)

	results := []models.UserSearchResult{}
	for rows.Next() {
		var r models.UserSearchResult
		if err := rows.Scan(&r.UserID, &r.Username, &r.Email, &r.IsContact); err != nil {
			return nil, fmt.Errorf("scan search result: %w: %v", ErrTransient, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search users: %w: %v", ErrTransient, err)
	}

	return results, nil
}

// UserExists reports whether a user ID is registered.
func (db *DB) UserExists(ctx context.Context, userID int64) (bool, error) {
	defer observe("select", "users", time.Now())

	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE user_id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("user exists: %w: %v", ErrTransient, err)
	}
	return true, nil
}
