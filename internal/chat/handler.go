// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package chat

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/database"
	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/metrics"
)

const (
	dispatchTimeout = 10 * time.Second
	presenceTimeout = 5 * time.Second
)

// Handler drives the chat protocol: the connect and disconnect sequences and
// the dispatch of inbound events to lifecycle operations.
type Handler struct {
	db        *database.DB
	hub       *Hub
	registry  *Registry
	lifecycle *Lifecycle
	fanout    *Fanout
	cfg       *config.ChatConfig

	// presenceBreaker shields the event loop from a struggling database.
	// Presence writes are best-effort; when the breaker is open they are
	// skipped and the in-memory registry stays authoritative.
	presenceBreaker *gobreaker.CircuitBreaker[any]
}

// NewHandler wires the chat components together.
func NewHandler(db *database.DB, hub *Hub, registry *Registry, lifecycle *Lifecycle, fanout *Fanout, cfg *config.ChatConfig) *Handler {
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "presence-writes",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Handler{
		db:              db,
		hub:             hub,
		registry:        registry,
		lifecycle:       lifecycle,
		fanout:          fanout,
		cfg:             cfg,
		presenceBreaker: breaker,
	}
}

// HandleConnect runs the connect sequence for an authenticated client:
// registry binding, room joins, the persisted status write and the presence
// broadcast. A previous connection of the same user is closed; its cleanup
// will find the registry binding already replaced and stay quiet.
func (h *Handler) HandleConnect(c *Client) {
	if displaced := h.registry.Bind(c.userID, c); displaced != nil {
		logging.Info().Int64("user_id", c.userID).Msg("closing superseded connection")
		_ = displaced.conn.Close()
	}

	h.hub.Register <- c
	h.hub.Join(c, UserRoom(c.userID))

	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()

	groupIDs, err := h.db.ListUserGroupIDs(ctx, c.userID)
	if err != nil {
		logging.Error().Err(err).Int64("user_id", c.userID).Msg("failed to load group rooms")
	}
	for _, groupID := range groupIDs {
		h.hub.Join(c, GroupRoom(groupID))
	}

	h.writePresence(c.userID, true)
	h.fanout.PresenceChanged(c.userID, true)
}

// HandleDisconnect runs the disconnect sequence. Only the connection that
// still owns the registry binding flips the user offline; a superseded
// connection just goes away.
func (h *Handler) HandleDisconnect(c *Client) {
	if !h.registry.Release(c.userID, c) {
		return
	}
	h.writePresence(c.userID, false)
	h.fanout.PresenceChanged(c.userID, false)
}

// writePresence updates the persisted status column behind the breaker.
func (h *Handler) writePresence(userID int64, online bool) {
	status := "offline"
	if online {
		status = "online"
	}

	_, err := h.presenceBreaker.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		defer cancel()
		return nil, h.db.SetUserStatus(ctx, userID, status)
	})
	if err != nil {
		metrics.PresenceWriteFailures.Inc()
		logging.Warn().Err(err).Int64("user_id", userID).Str("status", status).
			Msg("presence write skipped")
	}
}

// Dispatch routes one inbound event. Operation failures turn into an error
// event on the origin connection only; other clients never see them.
func (h *Handler) Dispatch(c *Client, evt Event) {
	metrics.RecordChatEvent(evt.Event)

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	var err error
	switch evt.Event {
	case EventSendMessage:
		err = h.onSendMessage(ctx, c, evt.Data)
	case EventSendGroupMessage:
		err = h.onSendGroupMessage(ctx, c, evt.Data)
	case EventTyping:
		err = h.onTyping(c, evt.Data)
	case EventGroupTyping:
		err = h.onGroupTyping(c, evt.Data)
	case EventMarkRead:
		err = h.onMarkRead(ctx, c, evt.Data)
	case EventDeleteMessage:
		err = h.onDeleteMessage(ctx, c, evt.Data)
	case EventEditMessage:
		err = h.onEditMessage(ctx, c, evt.Data)
	case EventJoinGroup:
		err = h.onJoinGroup(ctx, c, evt.Data)
	case EventLeaveGroupRoom:
		err = h.onLeaveGroupRoom(c, evt.Data)
	case EventGetOnlineUsers:
		h.fanout.OnlineUsers(c.userID)
	default:
		logging.Debug().Str("event", evt.Event).Int64("user_id", c.userID).Msg("unknown event")
	}

	if err != nil {
		h.emitError(c, evt.Event, err)
	}
}

func (h *Handler) emitError(c *Client, inbound string, err error) {
	code := errorCode(err)
	metrics.RecordChatEventError(inbound, code)

	message := err.Error()
	if code == "INTERNAL_ERROR" {
		logging.Error().Err(err).Str("event", inbound).Int64("user_id", c.userID).
			Msg("chat operation failed")
		message = "internal error"
	}

	event := EventMessageError
	switch inbound {
	case EventSendGroupMessage, EventGroupTyping, EventJoinGroup, EventLeaveGroupRoom:
		event = EventGroupMessageError
	}
	h.hub.EmitUser(c.userID, event, ErrorPayload{Error: message, Code: code})
}

func decode[T any](raw json.RawMessage) (T, error) {
	var payload T
	if len(raw) == 0 {
		return payload, ErrValidation
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, ErrValidation
	}
	return payload, nil
}

func (h *Handler) onSendMessage(ctx context.Context, c *Client, raw json.RawMessage) error {
	payload, err := decode[SendMessagePayload](raw)
	if err != nil {
		return err
	}

	msg, err := h.lifecycle.SendDirect(ctx, c.userID, payload.ReceiverID, payload.Content)
	if err != nil {
		return err
	}
	h.fanout.DeliverDirect(msg)

	// An online receiver advances the message to delivered right away.
	if h.registry.IsOnline(msg.ReceiverID) {
		changed, err := h.lifecycle.MarkDelivered(ctx, msg.MsgID)
		if err != nil {
			logging.Warn().Err(err).Int64("msg_id", msg.MsgID).Msg("delivery mark failed")
			return nil
		}
		if changed {
			h.fanout.NotifyDelivered(msg.SenderID, msg.MsgID, msg.ReceiverID)
		}
	}
	return nil
}

func (h *Handler) onSendGroupMessage(ctx context.Context, c *Client, raw json.RawMessage) error {
	payload, err := decode[SendGroupMessagePayload](raw)
	if err != nil {
		return err
	}

	msg, err := h.lifecycle.SendGroup(ctx, c.userID, payload.GroupID, payload.Content)
	if err != nil {
		return err
	}
	h.fanout.DeliverGroup(msg, payload.GroupID)
	return nil
}

func (h *Handler) onTyping(c *Client, raw json.RawMessage) error {
	payload, err := decode[TypingPayload](raw)
	if err != nil {
		return err
	}
	if payload.ReceiverID <= 0 {
		return ErrValidation
	}
	h.fanout.Typing(c.userID, payload.ReceiverID, payload.IsTyping)
	return nil
}

func (h *Handler) onGroupTyping(c *Client, raw json.RawMessage) error {
	payload, err := decode[GroupTypingPayload](raw)
	if err != nil {
		return err
	}
	if payload.GroupID <= 0 {
		return ErrValidation
	}
	h.fanout.GroupTyping(c, payload.GroupID, payload.IsTyping)
	return nil
}

func (h *Handler) onMarkRead(ctx context.Context, c *Client, raw json.RawMessage) error {
	payload, err := decode[MarkReadPayload](raw)
	if err != nil {
		return err
	}
	if payload.ContactID <= 0 {
		return ErrValidation
	}

	changed, err := h.lifecycle.MarkRead(ctx, c.userID, payload.ContactID)
	if err != nil {
		return err
	}
	// The read receipt only goes out when something actually changed, so
	// repeated mark_read events stay silent.
	if changed > 0 {
		h.fanout.NotifyRead(c.userID, payload.ContactID)
	}
	return nil
}

func (h *Handler) onDeleteMessage(ctx context.Context, c *Client, raw json.RawMessage) error {
	payload, err := decode[DeleteMessagePayload](raw)
	if err != nil {
		return err
	}

	msg, conv, err := h.lifecycle.Delete(ctx, c.userID, payload.MsgID)
	if err != nil {
		return err
	}
	h.fanout.NotifyDeleted(c, msg, conv)
	return nil
}

func (h *Handler) onEditMessage(ctx context.Context, c *Client, raw json.RawMessage) error {
	payload, err := decode[EditMessagePayload](raw)
	if err != nil {
		return err
	}

	msg, conv, err := h.lifecycle.Edit(ctx, c.userID, payload.MsgID, payload.Content)
	if err != nil {
		return err
	}
	h.fanout.NotifyEdited(c, msg, conv)
	return nil
}

func (h *Handler) onJoinGroup(ctx context.Context, c *Client, raw json.RawMessage) error {
	payload, err := decode[GroupRoomPayload](raw)
	if err != nil {
		return err
	}

	member, err := h.db.IsParticipant(ctx, payload.GroupID, c.userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrAuthorization
	}

	h.hub.Join(c, GroupRoom(payload.GroupID))
	h.fanout.JoinedGroup(c.userID, payload.GroupID)
	return nil
}

func (h *Handler) onLeaveGroupRoom(c *Client, raw json.RawMessage) error {
	payload, err := decode[GroupRoomPayload](raw)
	if err != nil {
		return err
	}
	h.hub.Leave(c, GroupRoom(payload.GroupID))
	return nil
}
