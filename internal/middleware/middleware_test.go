// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/courier/internal/auth"
	"github.com/tomtom215/courier/internal/config"
)

func newAuthFixture(t *testing.T) (*auth.JWTManager, auth.SessionStore) {
	t.Helper()

	m, err := auth.NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "test-secret-that-is-long-enough-123",
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("new jwt manager: %v", err)
	}

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return m, auth.NewBadgerSessionStore(db)
}

func TestAuthenticateAcceptsValidToken(t *testing.T) {
	m, sessions := newAuthFixture(t)

	session := auth.NewSession(42, "alice", time.Hour)
	if err := sessions.Create(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	token, _, err := m.GenerateToken(42, "alice", session.ID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var got *AuthUser
	handler := Authenticate(m, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetAuthUser(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contacts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.UserID != 42 || got.Username != "alice" {
		t.Errorf("unexpected auth user: %+v", got)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	m, sessions := newAuthFixture(t)

	// A token whose session was revoked must be refused.
	session := auth.NewSession(42, "alice", time.Hour)
	if err := sessions.Create(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	revokedToken, _, err := m.GenerateToken(42, "alice", session.ID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if err := sessions.Delete(context.Background(), session.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.token"},
		{"revoked session", "Bearer " + revokedToken},
	}

	handler := Authenticate(m, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for rejected requests")
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/contacts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen == "" {
		t.Error("request ID should be generated")
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Error("response header should carry the request ID")
	}
}

func TestRequestIDHonorsInboundHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "caller-supplied" {
		t.Errorf("expected caller-supplied, got %q", seen)
	}
}

func TestPrometheusMetricsPassesThrough(t *testing.T) {
	handler := PrometheusMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("expected status to pass through, got %d", rec.Code)
	}
}
