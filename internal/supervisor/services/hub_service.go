// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package services

import (
	"context"
)

// ContextHub matches the chat hub's RunWithContext method without importing
// the chat package.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService supervises the chat hub. RunWithContext already follows the
// suture.Service contract, so the wrapper only contributes a name.
type HubService struct {
	hub ContextHub
}

// NewHubService wraps the chat hub for supervision.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String names the service in supervisor logs.
func (s *HubService) String() string {
	return "chat-hub"
}
