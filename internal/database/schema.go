// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package database

import (
	"fmt"
)

// schemaStatements creates sequences, tables, and indexes. Statements are
// idempotent so startup can run them unconditionally.
//
// conversations.pair_key is the canonical unordered pair key for direct
// conversations ("d:<minID>:<maxID>", NULL for groups). Its UNIQUE constraint
// closes the check-then-create race: concurrent creators collide in the
// engine and the loser re-reads the winner's row.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS seq_user_id START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_conv_id START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_msg_id START 1`,

	`CREATE TABLE IF NOT EXISTS users (
		user_id       BIGINT PRIMARY KEY DEFAULT nextval('seq_user_id'),
		username      VARCHAR NOT NULL UNIQUE,
		email         VARCHAR NOT NULL UNIQUE,
		password_hash VARCHAR NOT NULL,
		status        VARCHAR NOT NULL DEFAULT 'offline',
		last_active   TIMESTAMP NOT NULL DEFAULT current_timestamp,
		created_at    TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		conv_id         BIGINT PRIMARY KEY DEFAULT nextval('seq_conv_id'),
		conv_type       VARCHAR NOT NULL,
		name            VARCHAR,
		created_by      BIGINT NOT NULL,
		pair_key        VARCHAR UNIQUE,
		privacy         VARCHAR NOT NULL DEFAULT 'private',
		created_at      TIMESTAMP NOT NULL DEFAULT current_timestamp,
		last_message_at TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS conversation_participants (
		conversation_id BIGINT NOT NULL,
		user_id         BIGINT NOT NULL,
		role            VARCHAR NOT NULL DEFAULT 'member',
		joined_at       TIMESTAMP NOT NULL DEFAULT current_timestamp,
		UNIQUE (conversation_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		msg_id      BIGINT PRIMARY KEY DEFAULT nextval('seq_msg_id'),
		conv_id     BIGINT NOT NULL,
		sender_id   BIGINT NOT NULL,
		receiver_id BIGINT NOT NULL,
		content     VARCHAR NOT NULL,
		sent_at     TIMESTAMP NOT NULL DEFAULT current_timestamp,
		status      VARCHAR NOT NULL DEFAULT 'sent',
		edited      BOOLEAN NOT NULL DEFAULT FALSE,
		edited_at   TIMESTAMP,
		deleted     BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at  TIMESTAMP,
		pinned      BOOLEAN NOT NULL DEFAULT FALSE,
		attachment_path VARCHAR
	)`,

	`CREATE TABLE IF NOT EXISTS user_contacts (
		user_id         BIGINT NOT NULL,
		contact_user_id BIGINT NOT NULL,
		added_at        TIMESTAMP NOT NULL DEFAULT current_timestamp,
		UNIQUE (user_id, contact_user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS user_blocks (
		blocker_id BIGINT NOT NULL,
		blocked_id BIGINT NOT NULL,
		blocked_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		UNIQUE (blocker_id, blocked_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages (conv_id, sent_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages (receiver_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_participants_user ON conversation_participants (user_id)`,
}

// initialize creates the schema.
func (db *DB) initialize() error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
