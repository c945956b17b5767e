package models

import (
	"time"

	"github.com/google/uuid"
)

// Message kinds.
const (
	MessageKindText  = "text"
	MessageKindImage = "image"
	MessageKindFile  = "file"
)

// Content length bounds in characters.
const (
	MinContentLength = 1
	MaxContentLength = 10000
)

// DeletedContent is the sentinel that replaces a tombstoned message's content.
const DeletedContent = "[deleted]"

// Message is one record in a room's append-only log.
type Message struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	RoomID    uuid.UUID  `db:"room_id" json:"room_id"`
	AuthorID  uuid.UUID  `db:"author_id" json:"author_id"`
	Content   string     `db:"content" json:"content"`
	Kind      string     `db:"kind" json:"kind"`
	ReplyTo   *uuid.UUID `db:"reply_to" json:"reply_to,omitempty"`
	IsDeleted bool       `db:"is_deleted" json:"is_deleted"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// ValidMessageKind reports whether kind is one of the accepted kinds.
func ValidMessageKind(kind string) bool {
	switch kind {
	case MessageKindText, MessageKindImage, MessageKindFile:
		return true
	}
	return false
}

// HistoryCursor points at the earliest (created_at, id) a client has already
// seen; history fetches return strictly older rows.
type HistoryCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}
