// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package chat

import (
	"sort"
	"sync"
)

const registryShards = 32

// Registry tracks which users currently hold a live connection. It is the
// authority for online checks and delivery routing; the persisted status
// column is best-effort bookkeeping behind it.
//
// The map is sharded by user ID so presence churn from one set of users does
// not contend with lookups for another.
type Registry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	mu      sync.RWMutex
	clients map[int64]*Client
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].clients = make(map[int64]*Client)
	}
	return r
}

func (r *Registry) shard(userID int64) *registryShard {
	return &r.shards[uint64(userID)%registryShards]
}

// Bind records the client as the user's live connection. When the user was
// already bound to another client, that client is returned so the caller can
// close the superseded connection. A user has at most one live connection.
func (r *Registry) Bind(userID int64, c *Client) (displaced *Client) {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.clients[userID]
	s.clients[userID] = c
	if prev == c {
		return nil
	}
	return prev
}

// Release removes the binding only if the user is still bound to this exact
// client. A stale disconnect from a superseded connection must not knock the
// replacement offline. Reports whether the binding was removed.
func (r *Registry) Release(userID int64, c *Client) bool {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clients[userID] != c {
		return false
	}
	delete(s.clients, userID)
	return true
}

// Get returns the user's live client, or nil when offline.
func (r *Registry) Get(userID int64) *Client {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clients[userID]
}

// IsOnline reports whether the user holds a live connection.
func (r *Registry) IsOnline(userID int64) bool {
	return r.Get(userID) != nil
}

// OnlineIDs returns the IDs of all online users in ascending order.
func (r *Registry) OnlineIDs() []int64 {
	ids := []int64{}
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for id := range s.clients {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Count returns the number of online users.
func (r *Registry) Count() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.clients)
		s.mu.RUnlock()
	}
	return n
}
