package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chat-backend/internal/bus"
	"chat-backend/internal/models"
	"chat-backend/internal/presence"
)

// roomUser keys the local connection refcount per (room, user) pair.
type roomUser struct {
	room uuid.UUID
	user uuid.UUID
}

// Hub owns every websocket connection of this process. It maps rooms to
// their local subscribers, holds the shared bus subscription for any room
// with at least one local client, and edge-triggers presence on the first
// and last local connection of a (room, user) pair.
//
// mu guards the registry maps, including each client's rooms set, and is
// never held across a socket write or a Redis call. subMu serializes bus
// subscribe/unsubscribe decisions so a join racing a teardown cannot leave
// a populated room without a bus subscription.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]bool
	rooms    map[uuid.UUID]map[*Client]bool
	refcount map[roomUser]int
	closed   bool

	subMu         sync.Mutex
	busSubscribed map[uuid.UUID]bool

	bus     bus.Bus
	tracker presence.Tracker
	timeout time.Duration
	log     zerolog.Logger
}

// ErrHubClosed rejects registrations during shutdown.
var ErrHubClosed = errors.New("hub is shutting down")

// NewHub creates an empty hub. timeout bounds the background Redis calls
// made during connection teardown and event dispatch.
func NewHub(eventBus bus.Bus, tracker presence.Tracker, timeout time.Duration, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		rooms:         make(map[uuid.UUID]map[*Client]bool),
		refcount:      make(map[roomUser]int),
		busSubscribed: make(map[uuid.UUID]bool),
		bus:           eventBus,
		tracker:       tracker,
		timeout:       timeout,
		log:           logger.With().Str("component", "hub").Logger(),
	}
}

// Register adds a fresh connection to the registry.
func (h *Hub) Register(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.clients[client] = true
	return nil
}

// Unregister runs the connection's full teardown: every room attachment is
// released, presence is withdrawn where this was the user's last local
// connection, and the send queue is closed. Safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	rooms := make([]uuid.UUID, 0, len(client.rooms))
	for roomID := range client.rooms {
		rooms = append(rooms, roomID)
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	for _, roomID := range rooms {
		h.Unsubscribe(ctx, client, roomID)
	}

	client.queue.close()
	client.close()
}

// Subscribe attaches the connection to a room's local fan-out. The room's
// first local connection opens the bus subscription; the user's first local
// connection to the room writes presence and announces it.
func (h *Hub) Subscribe(ctx context.Context, client *Client, roomID uuid.UUID) error {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return errors.New("connection is not registered")
	}
	if client.rooms[roomID] {
		h.mu.Unlock()
		return nil
	}
	client.rooms[roomID] = true
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	key := roomUser{room: roomID, user: client.userID}
	h.refcount[key]++
	firstLocal := h.refcount[key] == 1
	h.mu.Unlock()

	h.subMu.Lock()
	if !h.busSubscribed[roomID] {
		if err := h.bus.Subscribe(ctx, roomID); err != nil {
			h.subMu.Unlock()
			h.rollbackSubscribe(client, roomID)
			return err
		}
		h.busSubscribed[roomID] = true
	}
	h.subMu.Unlock()

	if firstLocal {
		// Presence failures do not kill the attachment; the entry is
		// advisory and the next pong retries the write.
		if err := h.tracker.Add(ctx, roomID, client.userID); err != nil {
			h.log.Warn().Err(err).Str("room_id", roomID.String()).Msg("presence add failed")
		}
		if err := h.bus.Publish(ctx, models.NewPresence(roomID, client.userID, models.PresenceConnected)); err != nil {
			h.log.Warn().Err(err).Str("room_id", roomID.String()).Msg("presence publish failed")
		}
	}
	return nil
}

func (h *Hub) rollbackSubscribe(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(client.rooms, roomID)
	if set, ok := h.rooms[roomID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.rooms, roomID)
		}
	}
	key := roomUser{room: roomID, user: client.userID}
	if h.refcount[key]--; h.refcount[key] <= 0 {
		delete(h.refcount, key)
	}
}

// Unsubscribe detaches the connection from a room. The user's last local
// connection withdraws presence, and an emptied room releases the bus
// subscription. Detaching twice is a no-op.
func (h *Hub) Unsubscribe(ctx context.Context, client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	if !client.rooms[roomID] {
		h.mu.Unlock()
		return
	}
	delete(client.rooms, roomID)
	if set, ok := h.rooms[roomID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.rooms, roomID)
		}
	}
	key := roomUser{room: roomID, user: client.userID}
	h.refcount[key]--
	lastLocal := h.refcount[key] <= 0
	if lastLocal {
		delete(h.refcount, key)
	}
	h.mu.Unlock()

	if lastLocal {
		if err := h.tracker.Remove(ctx, roomID, client.userID); err != nil {
			h.log.Warn().Err(err).Str("room_id", roomID.String()).Msg("presence remove failed")
		}
		if err := h.bus.Publish(ctx, models.NewPresence(roomID, client.userID, models.PresenceDisconnected)); err != nil {
			h.log.Warn().Err(err).Str("room_id", roomID.String()).Msg("presence publish failed")
		}
	}

	h.releaseRoom(ctx, roomID)
}

// releaseRoom drops the bus subscription for a room with no local clients
// left. The emptiness re-check under subMu linearizes against a concurrent
// Subscribe.
func (h *Hub) releaseRoom(ctx context.Context, roomID uuid.UUID) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if !h.busSubscribed[roomID] {
		return
	}
	h.mu.RLock()
	empty := len(h.rooms[roomID]) == 0
	h.mu.RUnlock()
	if !empty {
		return
	}
	if err := h.bus.Unsubscribe(ctx, roomID); err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID.String()).Msg("bus unsubscribe failed")
		return
	}
	delete(h.busSubscribed, roomID)
}

// Subscribed reports whether the connection is attached to the room.
func (h *Hub) Subscribed(client *Client, roomID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return client.rooms[roomID]
}

// RefreshPresence pushes the liveness deadline forward in every room the
// connection is attached to. Called on every pong.
func (h *Hub) RefreshPresence(ctx context.Context, client *Client) {
	h.mu.RLock()
	rooms := make([]uuid.UUID, 0, len(client.rooms))
	for roomID := range client.rooms {
		rooms = append(rooms, roomID)
	}
	h.mu.RUnlock()

	for _, roomID := range rooms {
		if err := h.tracker.Refresh(ctx, roomID, client.userID); err != nil {
			h.log.Warn().Err(err).Str("room_id", roomID.String()).Msg("presence refresh failed")
			return
		}
	}
}

// Run drains the bus event stream into local fan-out. It returns when the
// stream closes.
func (h *Hub) Run(events <-chan models.RoomEvent) {
	for event := range events {
		h.Dispatch(event)
	}
}

// Dispatch fans one event out to the room's local connections. The registry
// lock is released before any enqueue. A member_left event also detaches
// that user's local connections, so leaves and kicks take effect on every
// instance regardless of where the HTTP request landed.
func (h *Hub) Dispatch(event models.RoomEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Warn().Err(err).Str("type", event.Type).Msg("dropping unencodable event")
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[event.RoomID]))
	for client := range h.rooms[event.RoomID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	droppable := event.Droppable()
	for _, client := range targets {
		client.send(payload, droppable)
	}

	if event.Type == models.EventMemberLeft && event.UserID != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		h.detachUser(ctx, event.RoomID, *event.UserID)
		cancel()
	}
}

func (h *Hub) detachUser(ctx context.Context, roomID, userID uuid.UUID) {
	h.mu.RLock()
	var targets []*Client
	for client := range h.rooms[roomID] {
		if client.userID == userID {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.Unsubscribe(ctx, client, roomID)
	}
}

// Shutdown refuses new registrations, tells every connection the service is
// restarting and waits for their read loops to finish teardown until ctx
// expires.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.closeWith(websocket.CloseServiceRestart, "server restarting")
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		h.mu.RLock()
		remaining := len(h.clients)
		h.mu.RUnlock()
		if remaining == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
