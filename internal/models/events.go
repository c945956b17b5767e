package models

import "github.com/google/uuid"

// Bus event types. They double as the server→client frame types so the hub
// forwards envelopes without re-mapping.
const (
	EventMessageCreated = "message_created"
	EventMessageDeleted = "message_deleted"
	EventMemberJoined   = "member_joined"
	EventMemberLeft     = "member_left"
	EventRoomUpdated    = "room_updated"
	EventRoomClosed     = "room_closed"
	EventPresence       = "presence"
)

// Presence states carried by presence events.
const (
	PresenceConnected    = "connected"
	PresenceDisconnected = "disconnected"
)

// RoomEvent is the envelope published on the bus for one room.
type RoomEvent struct {
	Type      string       `json:"type"`
	RoomID    uuid.UUID    `json:"room_id"`
	Message   *Message     `json:"message,omitempty"`
	MessageID *uuid.UUID   `json:"message_id,omitempty"`
	UserID    *uuid.UUID   `json:"user_id,omitempty"`
	ActorID   *uuid.UUID   `json:"actor_id,omitempty"`
	Changes   *RoomChanges `json:"changes,omitempty"`
	State     string       `json:"state,omitempty"`
}

// Droppable reports whether the event may be evicted from a full outbound
// queue instead of tearing the connection down.
func (e RoomEvent) Droppable() bool {
	return e.Type == EventPresence
}

// NewMessageCreated builds the broadcast event for a freshly appended message.
func NewMessageCreated(msg Message) RoomEvent {
	return RoomEvent{Type: EventMessageCreated, RoomID: msg.RoomID, Message: &msg}
}

// NewMessageDeleted builds the tombstone broadcast event.
func NewMessageDeleted(roomID, messageID, actorID uuid.UUID) RoomEvent {
	return RoomEvent{Type: EventMessageDeleted, RoomID: roomID, MessageID: &messageID, ActorID: &actorID}
}

// NewMemberJoined builds the membership-added event.
func NewMemberJoined(roomID, userID uuid.UUID) RoomEvent {
	return RoomEvent{Type: EventMemberJoined, RoomID: roomID, UserID: &userID}
}

// NewMemberLeft builds the membership-removed event.
func NewMemberLeft(roomID, userID uuid.UUID) RoomEvent {
	return RoomEvent{Type: EventMemberLeft, RoomID: roomID, UserID: &userID}
}

// NewRoomUpdated builds the room-settings-changed event.
func NewRoomUpdated(roomID uuid.UUID, changes RoomChanges) RoomEvent {
	return RoomEvent{Type: EventRoomUpdated, RoomID: roomID, Changes: &changes}
}

// NewRoomClosed builds the terminal room event.
func NewRoomClosed(roomID uuid.UUID) RoomEvent {
	return RoomEvent{Type: EventRoomClosed, RoomID: roomID}
}

// NewPresence builds a connected/disconnected presence event.
func NewPresence(roomID, userID uuid.UUID, state string) RoomEvent {
	return RoomEvent{Type: EventPresence, RoomID: roomID, UserID: &userID, State: state}
}
