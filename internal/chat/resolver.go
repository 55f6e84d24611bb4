// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/courier/internal/database"
	"github.com/tomtom215/courier/internal/models"
)

// Resolver maps a pair of users to their single direct conversation,
// creating it on first contact.
type Resolver struct {
	db *database.DB
}

// NewResolver creates a conversation resolver.
func NewResolver(db *database.DB) *Resolver {
	return &Resolver{db: db}
}

// ResolveDirect returns the direct conversation for the pair, creating it if
// missing. Two first messages racing each other both land on the same
// conversation: the loser of the pair-key insert re-reads the winner's row.
func (r *Resolver) ResolveDirect(ctx context.Context, a, b int64) (*models.Conversation, error) {
	conv, err := r.db.FindDirectConversation(ctx, a, b)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	conv, err = r.db.CreateDirectConversation(ctx, a, b)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, database.ErrConflict) {
		return nil, err
	}

	// Lost the creation race; the conversation exists now.
	conv, err = r.db.FindDirectConversation(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("re-read after conflict: %w", err)
	}
	return conv, nil
}
