package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatRoom is a named channel with a member list and a message log.
type ChatRoom struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	OwnerID      uuid.UUID `db:"owner_id" json:"owner_id"`
	IsPrivate    bool      `db:"is_private" json:"is_private"`
	PasswordHash *string   `db:"password_hash" json:"-"`
	IsClosed     bool      `db:"is_closed" json:"is_closed"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// RoomSummary is a room row joined with the caller's membership role.
type RoomSummary struct {
	ChatRoom
	Role string `db:"role" json:"role"`
}

// RoomChanges names the mutated fields carried by a room_updated event.
type RoomChanges struct {
	Name      *string `json:"name,omitempty"`
	IsPrivate *bool   `json:"is_private,omitempty"`
}

// Empty reports whether no field changed.
func (c RoomChanges) Empty() bool {
	return c.Name == nil && c.IsPrivate == nil
}
