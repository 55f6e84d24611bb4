// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/courier/internal/auth"
	"github.com/tomtom215/courier/internal/logging"
)

type authUserKey struct{}

// AuthUser is the authenticated identity attached to a request context.
type AuthUser struct {
	UserID    int64
	Username  string
	SessionID string
}

// Authenticate validates the Bearer token and checks the session is still
// live in the store. Tokens whose session was revoked by logout are refused
// even before their JWT expiry.
func Authenticate(jwtManager *auth.JWTManager, sessions auth.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "missing credentials")
				return
			}

			claims, err := jwtManager.ValidateToken(token)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			if _, err := sessions.Get(r.Context(), claims.ID); err != nil {
				unauthorized(w, "session revoked or expired")
				return
			}

			user := &AuthUser{
				UserID:    claims.UserID,
				Username:  claims.Username,
				SessionID: claims.ID,
			}
			ctx := context.WithValue(r.Context(), authUserKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuthUser returns the authenticated user from the context, or nil when
// the request did not pass the Authenticate middleware.
func GetAuthUser(ctx context.Context) *AuthUser {
	user, _ := ctx.Value(authUserKey{}).(*AuthUser)
	return user
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	body := map[string]interface{}{
		"status": "error",
		"error": map[string]string{
			"code":    "AUTHENTICATION_ERROR",
			"message": message,
		},
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to write unauthorized response")
	}
}
