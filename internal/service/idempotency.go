package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chat-backend/internal/models"
)

// IdempotencyCache remembers recently sent messages by client-assigned key so
// a retried send acknowledges the original row instead of appending a
// duplicate. Entries live for a short window; after it expires a reused key
// appends normally.
type IdempotencyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyCache builds a cache with the given dedup window.
func NewIdempotencyCache(client *redis.Client, ttl time.Duration) *IdempotencyCache {
	return &IdempotencyCache{client: client, ttl: ttl}
}

func idemKey(userID, roomID uuid.UUID, key string) string {
	return "idem:" + userID.String() + ":" + roomID.String() + ":" + key
}

// Get returns the message cached under (user, room, key), if any. Undecodable
// entries count as misses.
func (c *IdempotencyCache) Get(ctx context.Context, userID, roomID uuid.UUID, key string) (models.Message, bool, error) {
	raw, err := c.client.Get(ctx, idemKey(userID, roomID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return models.Message{}, false, nil
	}
	if err != nil {
		return models.Message{}, false, err
	}

	var msg models.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return models.Message{}, false, nil
	}
	return msg, true, nil
}

// Put stores the appended message under its key for the dedup window. The
// first writer wins; a concurrent duplicate keeps the existing entry.
func (c *IdempotencyCache) Put(ctx context.Context, userID, roomID uuid.UUID, key string, msg models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.client.SetNX(ctx, idemKey(userID, roomID, key), payload, c.ttl).Err()
}
