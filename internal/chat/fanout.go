// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package chat

import (
	"github.com/tomtom215/courier/internal/metrics"
	"github.com/tomtom215/courier/internal/models"
)

// Fanout turns lifecycle results into outbound events on the right rooms.
// It never touches the store; routing decisions come from the registry and
// the message itself.
type Fanout struct {
	hub      *Hub
	registry *Registry
}

// NewFanout creates the event fanout.
func NewFanout(hub *Hub, registry *Registry) *Fanout {
	return &Fanout{hub: hub, registry: registry}
}

// DeliverDirect emits the sender confirmation and the receiver copy of a
// fresh direct message. The same stored message goes out twice with only
// the viewer's perspective differing.
func (f *Fanout) DeliverDirect(msg *models.Message) {
	f.hub.EmitUser(msg.SenderID, EventMessageSent, directPayload(msg, true))
	f.hub.EmitUser(msg.ReceiverID, EventNewMessage, directPayload(msg, false))
	metrics.MessagesTotal.WithLabelValues("direct").Inc()
}

// DeliverGroup emits a group message to the group room. The sender receives
// their own copy through the room like everyone else.
func (f *Fanout) DeliverGroup(msg *models.Message, groupID int64) {
	f.hub.EmitRoom(GroupRoom(groupID), EventNewGroupMessage, groupPayload(msg, groupID))
	metrics.MessagesTotal.WithLabelValues("group").Inc()
}

// NotifyDelivered tells the sender their message reached an online receiver.
func (f *Fanout) NotifyDelivered(senderID, msgID, receiverID int64) {
	f.hub.EmitUser(senderID, EventMessageDelivered, DeliveredPayload{
		MsgID:      msgID,
		ReceiverID: receiverID,
	})
}

// NotifyRead tells the original sender that the reader caught up on their
// direct conversation.
func (f *Fanout) NotifyRead(readerID, senderID int64) {
	f.hub.EmitUser(senderID, EventMessagesRead, ReadPayload{
		ReaderID: readerID,
		SenderID: senderID,
	})
}

// NotifyDeleted confirms a deletion to the actor and notifies the other
// parties. Group notifications skip the origin connection since it already
// got the confirmation.
func (f *Fanout) NotifyDeleted(origin *Client, msg *models.Message, conv *models.Conversation) {
	payload := DeletedPayload{MsgID: msg.MsgID, Deleted: true}

	f.hub.EmitUser(msg.SenderID, EventMessageDeleted, payload)
	if conv.Type == models.ConversationGroup {
		f.hub.EmitRoomExcept(GroupRoom(conv.ConvID), origin, EventMessageDeleted, payload)
	} else {
		f.hub.EmitUser(msg.ReceiverID, EventMessageDeleted, payload)
	}
}

// NotifyEdited confirms an edit to the actor and notifies the other parties.
func (f *Fanout) NotifyEdited(origin *Client, msg *models.Message, conv *models.Conversation) {
	payload := EditedPayload{MsgID: msg.MsgID, Content: msg.Content, Edited: true}

	f.hub.EmitUser(msg.SenderID, EventMessageEdited, payload)
	if conv.Type == models.ConversationGroup {
		f.hub.EmitRoomExcept(GroupRoom(conv.ConvID), origin, EventMessageEdited, payload)
	} else {
		f.hub.EmitUser(msg.ReceiverID, EventMessageEdited, payload)
	}
}

// Typing forwards a direct typing indicator to the receiver.
func (f *Fanout) Typing(senderID, receiverID int64, isTyping bool) {
	f.hub.EmitUser(receiverID, EventUserTyping, TypingIndicatorPayload{
		UserID:   senderID,
		IsTyping: isTyping,
	})
}

// GroupTyping forwards a typing indicator to the group, excluding the typist.
func (f *Fanout) GroupTyping(origin *Client, groupID int64, isTyping bool) {
	f.hub.EmitRoomExcept(GroupRoom(groupID), origin, EventGroupUserTyping, GroupTypingIndicatorPayload{
		UserID:   origin.userID,
		Username: origin.username,
		IsTyping: isTyping,
		GroupID:  groupID,
	})
}

// PresenceChanged announces an online or offline transition to every
// connected client.
func (f *Fanout) PresenceChanged(userID int64, online bool) {
	event := EventUserOffline
	if online {
		event = EventUserOnline
	}
	f.hub.EmitAll(event, PresencePayload{UserID: userID})
}

// OnlineUsers sends the full online roster to one user.
func (f *Fanout) OnlineUsers(userID int64) {
	f.hub.EmitUser(userID, EventOnlineUsersList, OnlineUsersPayload{
		Users: f.registry.OnlineIDs(),
	})
}

// JoinedGroup confirms a group room join to the user.
func (f *Fanout) JoinedGroup(userID, groupID int64) {
	f.hub.EmitUser(userID, EventJoinedGroup, JoinedGroupPayload{GroupID: groupID})
}
