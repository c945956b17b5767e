package models

import "github.com/google/uuid"

// Client→server frame types. Unknown types are ignored by the server.
const (
	FramePing      = "ping"
	FrameJoinRoom  = "join_room"
	FrameLeaveRoom = "leave_room"
	FrameMessage   = "message"
)

// Server→client frame types that are direct replies, not bus events.
const (
	FramePong   = "pong"
	FrameJoined = "joined"
	FrameLeft   = "left"
	FrameError  = "error"
)

// ClientFrame is a decoded client→server websocket frame.
type ClientFrame struct {
	Type           string     `json:"type"`
	RoomID         uuid.UUID  `json:"room_id"`
	Password       string     `json:"password"`
	Content        string     `json:"content"`
	Kind           string     `json:"kind"`
	ReplyTo        *uuid.UUID `json:"reply_to"`
	IdempotencyKey string     `json:"idempotency_key"`
}

// ServerFrame carries a direct reply to a single client.
type ServerFrame struct {
	Type        string     `json:"type"`
	RoomID      *uuid.UUID `json:"room_id,omitempty"`
	MemberCount int        `json:"member_count,omitempty"`
	ServerTime  string     `json:"server_time,omitempty"`
	Code        string     `json:"code,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// NewPongFrame answers a client ping.
func NewPongFrame(serverTime string) ServerFrame {
	return ServerFrame{Type: FramePong, ServerTime: serverTime}
}

// NewJoinedFrame acknowledges a join_room.
func NewJoinedFrame(roomID uuid.UUID, memberCount int) ServerFrame {
	return ServerFrame{Type: FrameJoined, RoomID: &roomID, MemberCount: memberCount}
}

// NewLeftFrame acknowledges a leave_room.
func NewLeftFrame(roomID uuid.UUID) ServerFrame {
	return ServerFrame{Type: FrameLeft, RoomID: &roomID}
}

// NewErrorFrame reports a failed client frame.
func NewErrorFrame(code, message string) ServerFrame {
	return ServerFrame{Type: FrameError, Code: code, Message: message}
}
