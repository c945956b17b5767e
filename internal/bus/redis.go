package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"chat-backend/internal/models"
	"chat-backend/internal/observability"
)

// RedisBus is the Redis pub/sub implementation of Bus. A single shared PubSub
// connection carries every room subscription of this process; a background
// goroutine decodes envelopes and feeds the Events channel.
type RedisBus struct {
	client  *redis.Client
	pubsub  *redis.PubSub
	events  chan models.RoomEvent
	log     zerolog.Logger
	timeout time.Duration
}

// NewRedisBus opens the shared subscriber connection and starts the dispatch
// goroutine. Close tears both down.
func NewRedisBus(client *redis.Client, logger zerolog.Logger, timeout time.Duration) *RedisBus {
	b := &RedisBus{
		client:  client,
		pubsub:  client.Subscribe(context.Background()),
		events:  make(chan models.RoomEvent, 256),
		log:     logger.With().Str("component", "bus").Logger(),
		timeout: timeout,
	}
	go b.dispatch()
	return b
}

// Publish marshals the event and fires it at the room's channel. It does not
// wait for any subscriber; a transport failure is returned to the caller.
func (b *RedisBus) Publish(ctx context.Context, event models.RoomEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.client.Publish(ctx, ChannelFor(event.RoomID), payload).Err(); err != nil {
		return fmt.Errorf("bus publish: %w", err)
	}
	observability.IncBusPublished(event.Type)
	return nil
}

// Subscribe adds the room's channel to the shared subscriber connection.
func (b *RedisBus) Subscribe(ctx context.Context, roomID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.pubsub.Subscribe(ctx, ChannelFor(roomID)); err != nil {
		return fmt.Errorf("bus subscribe: %w", err)
	}
	return nil
}

// Unsubscribe drops the room's channel from the shared connection.
func (b *RedisBus) Unsubscribe(ctx context.Context, roomID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.pubsub.Unsubscribe(ctx, ChannelFor(roomID)); err != nil {
		return fmt.Errorf("bus unsubscribe: %w", err)
	}
	return nil
}

// Events exposes the decoded event stream. The channel closes after Close.
func (b *RedisBus) Events() <-chan models.RoomEvent {
	return b.events
}

// Close shuts the subscriber connection down and drains the dispatcher.
func (b *RedisBus) Close() error {
	return b.pubsub.Close()
}

func (b *RedisBus) dispatch() {
	defer close(b.events)
	for msg := range b.pubsub.Channel() {
		var event models.RoomEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping undecodable bus event")
			continue
		}
		observability.IncBusReceived(event.Type)
		b.events <- event
	}
}
