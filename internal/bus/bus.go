// Package bus carries room events between backend instances over Redis
// pub/sub. Delivery is at most once per connected subscriber; durability is
// the store's job, so events lost while a subscriber was away are never
// replayed.
package bus

import (
	"context"

	"github.com/google/uuid"

	"chat-backend/internal/models"
)

// Bus publishes room events and manages per-room subscriptions.
type Bus interface {
	Publish(ctx context.Context, event models.RoomEvent) error
	Subscribe(ctx context.Context, roomID uuid.UUID) error
	Unsubscribe(ctx context.Context, roomID uuid.UUID) error
}

// ChannelFor names the logical pub/sub channel of one room.
func ChannelFor(roomID uuid.UUID) string {
	return "room:" + roomID.String()
}
