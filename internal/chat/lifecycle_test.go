// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/database"
	"github.com/tomtom215/courier/internal/models"
)

func newChatStore(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{Path: ""})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})
	return db
}

func newLifecycle(t *testing.T) (*Lifecycle, *database.DB) {
	t.Helper()
	db := newChatStore(t)
	return NewLifecycle(db, NewResolver(db), testChatConfig()), db
}

func createUser(t *testing.T, db *database.DB, name string) *models.User {
	t.Helper()
	user, err := db.CreateUser(context.Background(), name, name+"@example.com", "x")
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func TestSendDirectPersistsAndResolvesConversation(t *testing.T) {
	lc, db := newLifecycle(t)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	first, err := lc.SendDirect(ctx, alice.UserID, bob.UserID, "  hello  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if first.Content != "hello" {
		t.Errorf("content should be trimmed, got %q", first.Content)
	}
	if first.Status != models.MessageStatusSent {
		t.Errorf("new message should be sent, got %s", first.Status)
	}

	// A reply from the other side lands on the same conversation.
	reply, err := lc.SendDirect(ctx, bob.UserID, alice.UserID, "hi")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply.ConvID != first.ConvID {
		t.Errorf("reply should reuse conversation %d, got %d", first.ConvID, reply.ConvID)
	}
}

func TestSendDirectValidation(t *testing.T) {
	lc, db := newLifecycle(t)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	tests := []struct {
		name       string
		receiverID int64
		content    string
		wantErr    error
	}{
		{"empty content", bob.UserID, "   ", ErrValidation},
		{"oversized content", bob.UserID, strings.Repeat("a", 5000), ErrValidation},
		{"self message", alice.UserID, "hi", ErrValidation},
		{"zero receiver", 0, "hi", ErrValidation},
		{"unknown receiver", 9999, "hi", database.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lc.SendDirect(ctx, alice.UserID, tt.receiverID, tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSendDirectBlockedEitherDirection(t *testing.T) {
	lc, db := newLifecycle(t)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	if err := db.BlockUser(ctx, bob.UserID, alice.UserID); err != nil {
		t.Fatalf("block: %v", err)
	}

	// The block stops traffic both ways.
	if _, err := lc.SendDirect(ctx, alice.UserID, bob.UserID, "hi"); !errors.Is(err, ErrBlocked) {
		t.Errorf("blocked sender should get ErrBlocked, got %v", err)
	}
	if _, err := lc.SendDirect(ctx, bob.UserID, alice.UserID, "hi"); !errors.Is(err, ErrBlocked) {
		t.Errorf("blocker should get ErrBlocked, got %v", err)
	}
}

func TestSendGroupRequiresMembership(t *testing.T) {
	lc, db := newLifecycle(t)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	group, err := db.CreateGroup(ctx, "duo", alice.UserID, []int64{bob.UserID})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	msg, err := lc.SendGroup(ctx, alice.UserID, group.ConvID, "hello group")
	if err != nil {
		t.Fatalf("member send: %v", err)
	}
	if msg.ReceiverID != alice.UserID {
		t.Errorf("group rows carry the sender as receiver, got %d", msg.ReceiverID)
	}

	if _, err := lc.SendGroup(ctx, carol.UserID, group.ConvID, "let me in"); !errors.Is(err, ErrAuthorization) {
		t.Errorf("non-member should get ErrAuthorization, got %v", err)
	}
	if _, err := lc.SendGroup(ctx, alice.UserID, 9999, "hi"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("unknown group should be ErrNotFound, got %v", err)
	}
}

func TestSendGroupRejectsDirectConversation(t *testing.T) {
	lc, db := newLifecycle(t)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	msg, err := lc.SendDirect(ctx, alice.UserID, bob.UserID, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := lc.SendGroup(ctx, alice.UserID, msg.ConvID, "hi"); !errors.Is(err, ErrValidation) {
		t.Errorf("direct conversation should be rejected, got %v", err)
	}
}

func TestEditOwnershipAndDeletedTerminal(t *testing.T) {
	lc, db := newLifecycle(t)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	msg, err := lc.SendDirect(ctx, alice.UserID, bob.UserID, "helo")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, _, err := lc.Edit(ctx, bob.UserID, msg.MsgID, "hacked"); !errors.Is(err, ErrAuthorization) {
		t.Errorf("non-sender edit should be ErrAuthorization, got %v", err)
	}

	updated, conv, err := lc.Edit(ctx, alice.UserID, msg.MsgID, "hello")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if updated.Content != "hello" || !updated.Edited {
		t.Errorf("edit not applied: %+v", updated)
	}
	if conv.ConvID != msg.ConvID {
		t.Errorf("expected conversation %d, got %d", msg.ConvID, conv.ConvID)
	}

	if _, _, err := lc.Delete(ctx, alice.UserID, msg.MsgID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := lc.Edit(ctx, alice.UserID, msg.MsgID, "again"); !errors.Is(err, ErrValidation) {
		t.Errorf("edit after delete should be ErrValidation, got %v", err)
	}
}

func TestEditRacingDeleteNeverReturnsTombstone(t *testing.T) {
	lc, db := newLifecycle(t)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	// An edit racing a delete must either apply cleanly or fail with the
	// same validation error a sequential edit-after-delete gets. It must
	// never report success while handing back the deleted placeholder,
	// which fanout would then broadcast as an edit.
	for i := 0; i < 100; i++ {
		msg, err := lc.SendDirect(ctx, alice.UserID, bob.UserID, "draft")
		if err != nil {
			t.Fatalf("send: %v", err)
		}

		var wg sync.WaitGroup
		var edited *models.Message
		var editErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			edited, _, editErr = lc.Edit(ctx, alice.UserID, msg.MsgID, "final")
		}()
		go func() {
			defer wg.Done()
			_, _, _ = lc.Delete(ctx, alice.UserID, msg.MsgID)
		}()
		wg.Wait()

		if editErr != nil {
			if !errors.Is(editErr, ErrValidation) {
				t.Fatalf("losing edit should be ErrValidation, got %v", editErr)
			}
			continue
		}
		if edited.Deleted || edited.Content == models.DeletedMessagePlaceholder {
			t.Fatalf("edit reported success on a deleted message: %+v", edited)
		}
	}
}

func TestDeleteOwnershipAndIdempotence(t *testing.T) {
	lc, db := newLifecycle(t)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	msg, err := lc.SendDirect(ctx, alice.UserID, bob.UserID, "oops")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, _, err := lc.Delete(ctx, bob.UserID, msg.MsgID); !errors.Is(err, ErrAuthorization) {
		t.Errorf("non-sender delete should be ErrAuthorization, got %v", err)
	}

	if _, _, err := lc.Delete(ctx, alice.UserID, msg.MsgID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Second delete is a quiet no-op.
	if _, _, err := lc.Delete(ctx, alice.UserID, msg.MsgID); err != nil {
		t.Fatalf("repeat delete should be a no-op, got %v", err)
	}

	got, err := db.GetMessage(ctx, msg.MsgID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if got.Content != models.DeletedMessagePlaceholder {
		t.Errorf("expected placeholder, got %q", got.Content)
	}
}

func TestMarkReadCountsChanges(t *testing.T) {
	lc, db := newLifecycle(t)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	if _, err := lc.MarkRead(ctx, bob.UserID, alice.UserID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("mark read without conversation should be ErrNotFound, got %v", err)
	}

	if _, err := lc.SendDirect(ctx, alice.UserID, bob.UserID, "one"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := lc.SendDirect(ctx, alice.UserID, bob.UserID, "two"); err != nil {
		t.Fatalf("send: %v", err)
	}

	n, err := lc.MarkRead(ctx, bob.UserID, alice.UserID)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 changed, got n=%d err=%v", n, err)
	}
	n, err = lc.MarkRead(ctx, bob.UserID, alice.UserID)
	if err != nil || n != 0 {
		t.Fatalf("repeat mark read must change nothing, got n=%d err=%v", n, err)
	}
}
