package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AttemptLimiter throttles private-room password attempts per (user, room) so
// the secret cannot be brute-forced. The counter lives in Redis and is shared
// by every instance.
type AttemptLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewAttemptLimiter builds a limiter allowing limit attempts per window.
func NewAttemptLimiter(client *redis.Client, limit int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{client: client, limit: limit, window: window}
}

func attemptKey(userID, roomID uuid.UUID) string {
	return "join:attempts:" + userID.String() + ":" + roomID.String()
}

// Allow counts one attempt and reports whether the caller is still inside the
// window's budget.
func (l *AttemptLimiter) Allow(ctx context.Context, userID, roomID uuid.UUID) (bool, error) {
	key := attemptKey(userID, roomID)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.limit), nil
}
