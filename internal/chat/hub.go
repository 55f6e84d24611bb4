// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/metrics"
)

// UserRoom names the personal room every connection joins on connect.
func UserRoom(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

// GroupRoom names the room shared by a group conversation's members.
func GroupRoom(groupID int64) string {
	return fmt.Sprintf("group_%d", groupID)
}

type roomChange struct {
	client *Client
	room   string
}

// delivery is one fanout unit. An empty room targets every connected client.
type delivery struct {
	room    string
	exclude *Client
	msg     Outbound
}

// Hub owns the room membership tables and fans events out to clients. All
// state mutation happens on the run loop goroutine; the mutex exists for the
// read-only counters exposed to other goroutines.
type Hub struct {
	clients  map[*Client]bool
	rooms    map[string]map[*Client]bool
	memberOf map[*Client]map[string]bool

	Register   chan *Client
	Unregister chan *Client
	join       chan roomChange
	leave      chan roomChange
	broadcast  chan delivery

	mu sync.RWMutex
}

// NewHub creates a hub with the configured broadcast buffer.
func NewHub(cfg *config.ChatConfig) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		memberOf:   make(map[*Client]map[string]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		join:       make(chan roomChange, cfg.BroadcastBuffer),
		leave:      make(chan roomChange, cfg.BroadcastBuffer),
		broadcast:  make(chan delivery, cfg.BroadcastBuffer),
	}
}

// RunWithContext runs the hub until the context is canceled, then closes all
// clients and returns ctx.Err(). Designed for suture supervision: a restart
// finds no orphaned connections.
//
// Selection is priority ordered so behavior stays predictable when several
// channels are ready at once: shutdown first, then lifecycle and room
// membership, then fanout.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		case change := <-h.join:
			h.joinRoom(change.client, change.room)
			continue
		case change := <-h.leave:
			h.leaveRoom(change.client, change.room)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case change := <-h.join:
			h.joinRoom(change.client, change.room)

		case change := <-h.leave:
			h.leaveRoom(change.client, change.room)

		case d := <-h.broadcast:
			h.deliver(d)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnectedClients.Set(float64(total))
	logging.Info().
		Int64("user_id", client.userID).
		Int("total_clients", total).
		Msg("chat client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	for room := range h.memberOf[client] {
		h.dropFromRoom(client, room)
	}
	delete(h.memberOf, client)
	close(client.send)
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnectedClients.Set(float64(total))
	logging.Info().
		Int64("user_id", client.userID).
		Int("total_clients", total).
		Msg("chat client disconnected")
}

func (h *Hub) joinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	if h.memberOf[client] == nil {
		h.memberOf[client] = make(map[string]bool)
	}
	h.memberOf[client][room] = true
}

func (h *Hub) leaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropFromRoom(client, room)
	delete(h.memberOf[client], room)
}

// dropFromRoom requires h.mu held.
func (h *Hub) dropFromRoom(client *Client, room string) {
	if members := h.rooms[room]; members != nil {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// deliver fans one event out to the target room, or to every client when the
// room is empty. Clients are visited in ID order so delivery order is
// deterministic. A client whose send buffer is full is dropped: a reader that
// slow is not keeping up with the protocol anyway.
func (h *Hub) deliver(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var pool map[*Client]bool
	if d.room == "" {
		pool = h.clients
	} else {
		pool = h.rooms[d.room]
	}

	targets := make([]*Client, 0, len(pool))
	for client := range pool {
		if client == d.exclude {
			continue
		}
		targets = append(targets, client)
	}
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].id < targets[j].id
	})

	var toRemove []*Client
	for _, client := range targets {
		select {
		case client.send <- d.msg:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		metrics.FanoutDropsTotal.Inc()
		logging.Warn().
			Int64("user_id", client.userID).
			Str("event", d.msg.Event).
			Msg("send buffer full, dropping client")
		delete(h.clients, client)
		for room := range h.memberOf[client] {
			h.dropFromRoom(client, room)
		}
		delete(h.memberOf, client)
		close(client.send)
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		delete(h.clients, client)
		delete(h.memberOf, client)
		close(client.send)
	}
	h.rooms = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	metrics.WSConnectedClients.Set(0)
	logging.Info().
		Str("component", "chat-hub").
		Str("reason", reason).
		Int("clients_closed", len(clients)).
		Msg("chat hub stopped")
}

// Join asks the run loop to add the client to a room.
func (h *Hub) Join(client *Client, room string) {
	h.join <- roomChange{client: client, room: room}
}

// Leave asks the run loop to remove the client from a room.
func (h *Hub) Leave(client *Client, room string) {
	h.leave <- roomChange{client: client, room: room}
}

// EmitRoom queues an event for every member of a room. Events are dropped
// when the broadcast buffer is full rather than blocking the caller.
func (h *Hub) EmitRoom(room, event string, data interface{}) {
	h.queue(delivery{room: room, msg: Outbound{Event: event, Data: data}})
}

// EmitRoomExcept queues an event for a room, skipping one client.
func (h *Hub) EmitRoomExcept(room string, except *Client, event string, data interface{}) {
	h.queue(delivery{room: room, exclude: except, msg: Outbound{Event: event, Data: data}})
}

// EmitAll queues an event for every connected client.
func (h *Hub) EmitAll(event string, data interface{}) {
	h.queue(delivery{msg: Outbound{Event: event, Data: data}})
}

// EmitUser queues an event for a user's personal room.
func (h *Hub) EmitUser(userID int64, event string, data interface{}) {
	h.EmitRoom(UserRoom(userID), event, data)
}

func (h *Hub) queue(d delivery) {
	select {
	case h.broadcast <- d:
	default:
		metrics.FanoutDropsTotal.Inc()
		logging.Warn().Str("event", d.msg.Event).Msg("broadcast channel full, dropping event")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of members in a room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
