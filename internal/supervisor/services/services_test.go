// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// fakeHTTPServer stands in for *http.Server.
type fakeHTTPServer struct {
	listenErr     error
	shutdownErr   error
	shutdownCalls atomic.Int32
	started       chan struct{}
	stopCh        chan struct{}
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{
		started: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stopCh
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	f.shutdownCalls.Add(1)
	close(f.stopCh)
	return f.shutdownErr
}

func TestServiceInterfaces(t *testing.T) {
	var _ suture.Service = (*HTTPServerService)(nil)
	var _ suture.Service = (*HubService)(nil)
	var _ suture.Service = (*SessionCleanupService)(nil)
}

func TestHTTPServerServiceDefaultTimeout(t *testing.T) {
	svc := NewHTTPServerService(newFakeHTTPServer(), 0)
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("expected default timeout 10s, got %v", svc.shutdownTimeout)
	}
	svc = NewHTTPServerService(newFakeHTTPServer(), -time.Second)
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("negative timeout should fall back, got %v", svc.shutdownTimeout)
	}
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	server := newFakeHTTPServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	select {
	case <-server.started:
	case <-time.After(2 * time.Second):
		t.Fatal("server never started")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	if server.shutdownCalls.Load() != 1 {
		t.Errorf("expected one Shutdown call, got %d", server.shutdownCalls.Load())
	}
}

func TestHTTPServerServiceListenFailure(t *testing.T) {
	server := newFakeHTTPServer()
	server.listenErr = errors.New("address in use")
	svc := NewHTTPServerService(server, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, server.listenErr) {
		t.Errorf("expected listen error to surface, got %v", err)
	}
}

func TestHTTPServerServiceShutdownFailure(t *testing.T) {
	server := newFakeHTTPServer()
	server.shutdownErr = errors.New("connections still draining")
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	<-server.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, server.shutdownErr) {
			t.Errorf("expected shutdown error to surface, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

type fakeHub struct {
	ran atomic.Bool
}

func (f *fakeHub) RunWithContext(ctx context.Context) error {
	f.ran.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func TestHubServiceDelegates(t *testing.T) {
	hub := &fakeHub{}
	svc := NewHubService(hub)
	if svc.String() != "chat-hub" {
		t.Errorf("unexpected name %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if !hub.ran.Load() {
		t.Error("hub RunWithContext was never called")
	}
}

type fakeCleaner struct {
	sweeps atomic.Int32
	err    error
}

func (f *fakeCleaner) CleanupExpired(ctx context.Context) (int, error) {
	f.sweeps.Add(1)
	return 2, f.err
}

func TestSessionCleanupServiceSweeps(t *testing.T) {
	cleaner := &fakeCleaner{}
	svc := NewSessionCleanupService(cleaner, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for cleaner.sweeps.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("no sweeps observed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestSessionCleanupServiceKeepsRunningOnError(t *testing.T) {
	cleaner := &fakeCleaner{err: errors.New("store closed")}
	svc := NewSessionCleanupService(cleaner, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for cleaner.sweeps.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("service stopped sweeping after errors")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
