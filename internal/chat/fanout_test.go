// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package chat

import (
	"testing"

	"github.com/tomtom215/courier/internal/models"
)

// The actor's connection sits in both their personal room and the group
// room. Notifications must resolve the actor from the registry and exclude
// that connection from the group emit, otherwise the actor hears the event
// twice.
func TestGroupNotificationsReachActorExactlyOnce(t *testing.T) {
	hub := startHub(t)
	registry := NewRegistry()
	fanout := NewFanout(hub, registry)

	alice := testClient(hub, 1)
	bob := testClient(hub, 2)
	register(t, hub, alice)
	register(t, hub, bob)
	registry.Bind(1, alice)
	registry.Bind(2, bob)

	hub.Join(alice, UserRoom(1))
	hub.Join(bob, UserRoom(2))
	hub.Join(alice, GroupRoom(9))
	hub.Join(bob, GroupRoom(9))
	waitFor(t, func() bool { return hub.RoomCount(GroupRoom(9)) == 2 })

	msg := &models.Message{MsgID: 5, ConvID: 9, SenderID: 1, ReceiverID: 1, Content: "fixed"}
	conv := &models.Conversation{ConvID: 9, Type: models.ConversationGroup}

	fanout.NotifyEdited(registry.Get(1), msg, conv)

	if evt := recvEvent(t, alice); evt.Event != EventMessageEdited {
		t.Errorf("expected %s for actor, got %q", EventMessageEdited, evt.Event)
	}
	expectNoEvent(t, alice)
	if evt := recvEvent(t, bob); evt.Event != EventMessageEdited {
		t.Errorf("expected %s for member, got %q", EventMessageEdited, evt.Event)
	}

	fanout.NotifyDeleted(registry.Get(1), msg, conv)

	if evt := recvEvent(t, alice); evt.Event != EventMessageDeleted {
		t.Errorf("expected %s for actor, got %q", EventMessageDeleted, evt.Event)
	}
	expectNoEvent(t, alice)
	if evt := recvEvent(t, bob); evt.Event != EventMessageDeleted {
		t.Errorf("expected %s for member, got %q", EventMessageDeleted, evt.Event)
	}
}
