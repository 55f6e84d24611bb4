// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package chat

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/metrics"
)

const maxMessageSize = 64 * 1024 // 64 KB

// clientIDCounter assigns unique, monotonically increasing IDs so clients
// can be ordered consistently during fanout and shutdown.
var clientIDCounter atomic.Uint64

// Client binds one authenticated websocket connection to the hub.
type Client struct {
	id       uint64
	userID   int64
	username string

	hub     *Hub
	handler *Handler
	conn    *websocket.Conn
	send    chan Outbound
	limiter *rate.Limiter

	writeWait time.Duration
	pongWait  time.Duration
}

// NewClient wraps an upgraded connection for the given user.
func NewClient(hub *Hub, handler *Handler, conn *websocket.Conn, userID int64, username string, cfg *config.ChatConfig) *Client {
	return &Client{
		id:        clientIDCounter.Add(1),
		userID:    userID,
		username:  username,
		hub:       hub,
		handler:   handler,
		conn:      conn,
		send:      make(chan Outbound, cfg.SendBuffer),
		limiter:   rate.NewLimiter(rate.Limit(cfg.EventRate), cfg.EventBurst),
		writeWait: cfg.WriteWait,
		pongWait:  cfg.PongWait,
	}
}

// UserID returns the authenticated user behind this connection.
func (c *Client) UserID() int64 {
	return c.userID
}

// Start begins the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump reads client events, rate-limits them, and hands them to the
// handler. On exit it runs the disconnect sequence exactly once; the hub
// unregister is idempotent so a connection superseded by a newer login
// cleans up without disturbing the replacement.
func (c *Client) readPump() {
	defer func() {
		c.handler.HandleDisconnect(c)
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		var evt Event
		if err := c.conn.ReadJSON(&evt); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Int64("user_id", c.userID).Msg("unexpected websocket close")
			}
			break
		}

		if !c.limiter.Allow() {
			metrics.RecordChatEventError(evt.Event, "RATE_LIMIT_EXCEEDED")
			c.hub.EmitUser(c.userID, EventMessageError, ErrorPayload{
				Error: "too many events, slow down",
				Code:  "RATE_LIMIT_EXCEEDED",
			})
			continue
		}

		c.handler.Dispatch(c, evt)
	}
}

// writePump serializes all writes to the connection and keeps the ping
// cycle alive.
func (c *Client) writePump() {
	pingPeriod := (c.pongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logging.Error().Err(err).Int64("user_id", c.userID).Msg("failed to write event")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
