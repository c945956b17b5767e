package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership roles, totally ordered owner > admin > member.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// RoleRank maps a role to its position in the total order; unknown roles rank
// below member.
func RoleRank(role string) int {
	switch role {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// RoleAtLeast reports whether role ranks at or above min.
func RoleAtLeast(role, min string) bool {
	return RoleRank(role) >= RoleRank(min)
}

// RoomMember binds a user to a room with a role.
type RoomMember struct {
	RoomID            uuid.UUID  `db:"room_id" json:"room_id"`
	UserID            uuid.UUID  `db:"user_id" json:"user_id"`
	Role              string     `db:"role" json:"role"`
	JoinedAt          time.Time  `db:"joined_at" json:"joined_at"`
	LastReadMessageID *uuid.UUID `db:"last_read_message_id" json:"last_read_message_id,omitempty"`
}

// MemberInfo is a membership row hydrated with the member's username.
type MemberInfo struct {
	UserID   uuid.UUID `db:"user_id" json:"user_id"`
	Username string    `db:"username" json:"username"`
	Role     string    `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}
