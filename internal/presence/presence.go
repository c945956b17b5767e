// Package presence tracks which users are currently connected to each room.
// The set lives in Redis so every backend instance observes the same view;
// entries carry a liveness deadline and fall out on their own when the
// instance that wrote them dies.
package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Tracker is the shared room → connected-users set.
type Tracker interface {
	Add(ctx context.Context, roomID, userID uuid.UUID) error
	Refresh(ctx context.Context, roomID, userID uuid.UUID) error
	Remove(ctx context.Context, roomID, userID uuid.UUID) error
	Members(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)
}

// RedisTracker keeps one sorted set per room keyed room:presence:<room_id>,
// member = user id, score = unix liveness deadline. Reads filter on the
// deadline, so a crashed instance's entries stop counting after at most ttl
// with no cleanup pass required.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTracker builds a tracker whose entries stay live for ttl without a
// refresh. Callers pass twice the heartbeat interval.
func NewRedisTracker(client *redis.Client, ttl time.Duration) *RedisTracker {
	return &RedisTracker{client: client, ttl: ttl}
}

func presenceKey(roomID uuid.UUID) string {
	return "room:presence:" + roomID.String()
}

func (t *RedisTracker) deadline() float64 {
	return float64(time.Now().Add(t.ttl).Unix())
}

// Add records the user as connected to the room.
func (t *RedisTracker) Add(ctx context.Context, roomID, userID uuid.UUID) error {
	key := presenceKey(roomID)
	pipe := t.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: t.deadline(), Member: userID.String()})
	// Key-level expiry backstops rooms nobody ever prunes again.
	pipe.Expire(ctx, key, 2*t.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Refresh pushes the user's liveness deadline forward. Called on every pong.
func (t *RedisTracker) Refresh(ctx context.Context, roomID, userID uuid.UUID) error {
	return t.Add(ctx, roomID, userID)
}

// Remove drops the user from the room's set.
func (t *RedisTracker) Remove(ctx context.Context, roomID, userID uuid.UUID) error {
	return t.client.ZRem(ctx, presenceKey(roomID), userID.String()).Err()
}

// Members returns the users whose deadline has not passed, pruning expired
// entries opportunistically.
func (t *RedisTracker) Members(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	key := presenceKey(roomID)
	now := strconv.FormatInt(time.Now().Unix(), 10)

	if err := t.client.ZRemRangeByScore(ctx, key, "-inf", "("+now).Err(); err != nil {
		return nil, err
	}

	raw, err := t.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: now, Max: "+inf"}).Result()
	if err != nil {
		return nil, err
	}

	members := make([]uuid.UUID, 0, len(raw))
	for _, entry := range raw {
		id, err := uuid.Parse(entry)
		if err != nil {
			continue
		}
		members = append(members, id)
	}
	return members, nil
}
