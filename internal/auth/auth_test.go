// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/courier/internal/config"
)

func newJWTManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "test-secret-that-is-long-enough-123",
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("new jwt manager: %v", err)
	}
	return m
}

func TestJWTManagerRequiresSecret(t *testing.T) {
	if _, err := NewJWTManager(&config.SecurityConfig{}); err == nil {
		t.Error("empty secret should be rejected")
	}
}

func TestJWTRoundtrip(t *testing.T) {
	m := newJWTManager(t)

	token, expiresAt, err := m.GenerateToken(42, "alice", "sess-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("expiry should be in the future")
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	m := newJWTManager(t)

	token, _, err := m.GenerateToken(42, "alice", "sess-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := m.ValidateToken(tampered); err == nil {
		t.Error("tampered token should be rejected")
	}
	if _, err := m.ValidateToken("not.a.token"); err == nil {
		t.Error("garbage token should be rejected")
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	m := newJWTManager(t)
	other, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "a-completely-different-secret-456789",
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("new jwt manager: %v", err)
	}

	token, _, err := other.GenerateToken(42, "alice", "sess-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Error("token signed with another secret should be rejected")
	}
}

func TestPasswordHasherRoundtrip(t *testing.T) {
	h := NewPasswordHasher(4) // minimum cost keeps the test fast

	hash, err := h.Hash("s3cret-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret-password" {
		t.Fatal("hash must not equal the plaintext")
	}

	if !h.Compare(hash, "s3cret-password") {
		t.Error("correct password should match")
	}
	if h.Compare(hash, "wrong-password") {
		t.Error("wrong password must not match")
	}
}

func TestPasswordHasherInvalidCostFallsBack(t *testing.T) {
	h := NewPasswordHasher(99)
	if _, err := h.Hash("pw"); err != nil {
		t.Errorf("out-of-range cost should fall back to default, got %v", err)
	}
}

func newBadgerStore(t *testing.T) *BadgerSessionStore {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close badger: %v", err)
		}
	})
	return NewBadgerSessionStore(db)
}

func TestSessionStoreCreateGetDelete(t *testing.T) {
	store := newBadgerStore(t)
	ctx := context.Background()

	session := NewSession(42, "alice", time.Hour)
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != 42 || got.Username != "alice" {
		t.Errorf("unexpected session: %+v", got)
	}

	if err := store.Delete(ctx, session.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, session.ID); err != nil {
		t.Errorf("repeat delete should be a no-op, got %v", err)
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	store := newBadgerStore(t)
	ctx := context.Background()

	session := NewSession(42, "alice", -time.Minute)
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.Get(ctx, session.ID); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}

	n, err := store.CleanupExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 cleaned up, got n=%d err=%v", n, err)
	}
	count, err := store.Count(ctx)
	if err != nil || count != 0 {
		t.Errorf("expected empty store, got count=%d err=%v", count, err)
	}
}

func TestSessionStoreDeleteByUserID(t *testing.T) {
	store := newBadgerStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Create(ctx, NewSession(42, "alice", time.Hour)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	other := NewSession(7, "bob", time.Hour)
	if err := store.Create(ctx, other); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := store.DeleteByUserID(ctx, 42)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 deleted, got n=%d err=%v", n, err)
	}

	// The other user's session survives.
	if _, err := store.Get(ctx, other.ID); err != nil {
		t.Errorf("unrelated session should survive, got %v", err)
	}
}

func TestSessionStoreTouch(t *testing.T) {
	store := newBadgerStore(t)
	ctx := context.Background()

	session := NewSession(42, "alice", time.Minute)
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}

	newExpiry := time.Now().Add(2 * time.Hour)
	if err := store.Touch(ctx, session.ID, newExpiry); err != nil {
		t.Fatalf("touch: %v", err)
	}

	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.ExpiresAt.After(session.ExpiresAt) {
		t.Error("touch should extend expiry")
	}

	if err := store.Touch(ctx, "missing", newExpiry); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}
