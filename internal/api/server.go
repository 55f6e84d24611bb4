// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

// Package api exposes the REST surface and the websocket entry point of the
// messaging backend.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/courier/internal/auth"
	"github.com/tomtom215/courier/internal/chat"
	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/database"
	"github.com/tomtom215/courier/internal/middleware"
)

// Server bundles the dependencies of the HTTP handlers.
type Server struct {
	cfg         *config.Config
	db          *database.DB
	hub         *chat.Hub
	registry    *chat.Registry
	lifecycle   *chat.Lifecycle
	fanout      *chat.Fanout
	chatHandler *chat.Handler
	jwtManager  *auth.JWTManager
	sessions    auth.SessionStore
	hasher      *auth.PasswordHasher
	upgrader    websocket.Upgrader
}

// NewServer wires the API surface.
func NewServer(
	cfg *config.Config,
	db *database.DB,
	hub *chat.Hub,
	registry *chat.Registry,
	lifecycle *chat.Lifecycle,
	fanout *chat.Fanout,
	chatHandler *chat.Handler,
	jwtManager *auth.JWTManager,
	sessions auth.SessionStore,
) *Server {
	return &Server{
		cfg:         cfg,
		db:          db,
		hub:         hub,
		registry:    registry,
		lifecycle:   lifecycle,
		fanout:      fanout,
		chatHandler: chatHandler,
		jwtManager:  jwtManager,
		sessions:    sessions,
		hasher:      auth.NewPasswordHasher(cfg.Security.BcryptCost),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(cfg),
		},
	}
}

func checkOrigin(cfg *config.Config) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if !cfg.IsProduction() {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range cfg.Security.CORSOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	}
}

// Routes builds the router with middleware, rate limits and all endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	if len(s.cfg.Security.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Security.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	if !s.cfg.Security.RateLimitDisabled {
		r.Use(httprate.LimitByIP(s.cfg.Security.RateLimitReqs, s.cfg.Security.RateLimitWindow))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			// Credential endpoints get a tighter limit to slow brute force.
			if !s.cfg.Security.RateLimitDisabled {
				r.Use(httprate.LimitByIP(s.cfg.Security.AuthRateLimitReqs, time.Minute))
			}
			r.Post("/auth/signup", s.handleSignup)
			r.Post("/auth/login", s.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.jwtManager, s.sessions))

			r.Post("/auth/logout", s.handleLogout)

			r.Get("/users/search", s.handleSearchUsers)

			r.Get("/contacts", s.handleListContacts)
			r.Post("/contacts", s.handleAddContact)
			r.Delete("/contacts/{contactID}", s.handleRemoveContact)
			r.Get("/contacts/blocked", s.handleListBlocked)
			r.Post("/contacts/block", s.handleBlockUser)
			r.Delete("/contacts/block/{userID}", s.handleUnblockUser)

			r.Get("/messages/history/{contactID}", s.handleHistory)
			r.Post("/messages/send", s.handleSendMessage)
			r.Post("/messages/mark-read/{contactID}", s.handleMarkRead)
			r.Put("/messages/{msgID}", s.handleEditMessage)
			r.Delete("/messages/{msgID}", s.handleDeleteMessage)
			r.Get("/messages/unread-count", s.handleUnreadCount)
			r.Get("/messages/unread-per-contact", s.handleUnreadPerContact)

			r.Post("/groups", s.handleCreateGroup)
			r.Get("/groups", s.handleListGroups)
			r.Get("/groups/{groupID}", s.handleGroupDetails)
			r.Get("/groups/{groupID}/messages", s.handleGroupMessages)
			r.Post("/groups/{groupID}/send", s.handleSendGroupMessage)
			r.Post("/groups/{groupID}/members", s.handleAddMember)
			r.Delete("/groups/{groupID}/members/{memberID}", s.handleRemoveMember)
			r.Post("/groups/{groupID}/leave", s.handleLeaveGroup)
			r.Delete("/groups/{groupID}", s.handleDeleteGroup)
		})
	})

	// The websocket endpoint authenticates through a query token since
	// browsers cannot set headers on websocket upgrades.
	r.Get("/ws", s.handleWebSocket)

	return r
}
