package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"chat-backend/internal/auth"
	"chat-backend/internal/errs"
	"chat-backend/internal/models"
	"chat-backend/internal/observability"
	"chat-backend/internal/repositories"
)

// RoomJoiner covers the room operations reachable over the socket.
type RoomJoiner interface {
	Join(ctx context.Context, userID, roomID uuid.UUID, password string) (bool, error)
	Leave(ctx context.Context, userID, roomID uuid.UUID) error
	MemberCount(ctx context.Context, roomID uuid.UUID) (int, error)
}

// MessageSender persists and broadcasts an inbound message frame.
type MessageSender interface {
	Send(ctx context.Context, authorID, roomID uuid.UUID, content, kind string, replyTo *uuid.UUID, idempotencyKey string) (models.Message, error)
}

// Handler authenticates the websocket handshake, upgrades the connection and
// runs its read loop. Frames reuse the same service layer as the HTTP
// surface, so both paths enforce identical rules.
type Handler struct {
	hub       *Hub
	users     repositories.UserRepository
	tokens    *auth.TokenManager
	rooms     RoomJoiner
	messages  MessageSender
	heartbeat time.Duration
	timeout   time.Duration
	queueSize int
	log       zerolog.Logger
}

// NewHandler constructs a Handler. timeout bounds each frame's service call.
func NewHandler(hub *Hub, users repositories.UserRepository, tokens *auth.TokenManager, rooms RoomJoiner, messages MessageSender, heartbeat, timeout time.Duration, queueSize int, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:       hub,
		users:     users,
		tokens:    tokens,
		rooms:     rooms,
		messages:  messages,
		heartbeat: heartbeat,
		timeout:   timeout,
		queueSize: queueSize,
		log:       logger.With().Str("component", "ws").Logger(),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and starts its pumps.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-backend/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	userID, err := h.verifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   gin.H{"code": errs.CodeOf(err), "message": errs.MessageOf(err)},
		})
		return
	}

	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   gin.H{"code": errs.CodeInvalidToken, "message": "unknown account"},
		})
		return
	}
	if !user.IsActive() {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   gin.H{"code": errs.CodeForbidden, "message": "account is not active"},
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestID(ctx),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := newClient(conn, userID, h.queueSize, info)
	if err := h.hub.Register(client); err != nil {
		deadline := time.Now().Add(writeWait)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseServiceRestart, "server restarting"), deadline)
		_ = conn.Close()
		return
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishConnEvent(ctx, client, "ws_connect", "")

	go client.writePump(h.heartbeat)
	go h.readLoop(ctx, client)
}

func (h *Handler) verifyToken(header string) (uuid.UUID, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return h.tokens.VerifyAccess(parts[1])
	}
	return uuid.Nil, errs.Unauthenticated(errs.CodeAuthenticationFailed, "missing bearer token")
}

// readLoop consumes client frames until the connection dies, then runs the
// full teardown. Pongs refresh both the read deadline and presence.
func (h *Handler) readLoop(ctx context.Context, client *Client) {
	conn := client.conn
	var closeReason string
	defer func() {
		h.hub.Unregister(client)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishConnEvent(ctx, client, "ws_disconnect", closeReason)
	}()

	conn.SetReadLimit(maxFrameSize)
	readWait := 2 * h.heartbeat
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		pongCtx, cancel := context.WithTimeout(context.Background(), h.timeout)
		h.hub.RefreshPresence(pongCtx, client)
		cancel()
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseServiceRestart) {
				observability.IncWSEvent("ws_error")
				h.publishConnEvent(ctx, client, "ws_error", closeReason)
			}
			return
		}

		var f models.ClientFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			client.sendFrame(models.NewErrorFrame(errs.CodeValidationFailed, "malformed frame"))
			continue
		}
		h.handleFrame(client, f)
	}
}

func (h *Handler) handleFrame(client *Client, f models.ClientFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	switch f.Type {
	case models.FramePing:
		client.sendFrame(models.NewPongFrame(time.Now().UTC().Format(time.RFC3339Nano)))

	case models.FrameJoinRoom:
		if f.RoomID == uuid.Nil {
			client.sendFrame(models.NewErrorFrame(errs.CodeValidationFailed, "room_id is required"))
			return
		}
		if _, err := h.rooms.Join(ctx, client.userID, f.RoomID, f.Password); err != nil {
			client.sendFrame(models.NewErrorFrame(errs.CodeOf(err), errs.MessageOf(err)))
			return
		}
		if err := h.hub.Subscribe(ctx, client, f.RoomID); err != nil {
			h.log.Error().Err(err).Str("room_id", f.RoomID.String()).Msg("room subscription failed")
			client.sendFrame(models.NewErrorFrame(errs.CodeServiceUnavailable, "subscription failed"))
			return
		}
		count, err := h.rooms.MemberCount(ctx, f.RoomID)
		if err != nil {
			h.log.Warn().Err(err).Str("room_id", f.RoomID.String()).Msg("member count failed")
		}
		client.sendFrame(models.NewJoinedFrame(f.RoomID, count))

	case models.FrameLeaveRoom:
		if f.RoomID == uuid.Nil {
			client.sendFrame(models.NewErrorFrame(errs.CodeValidationFailed, "room_id is required"))
			return
		}
		if err := h.rooms.Leave(ctx, client.userID, f.RoomID); err != nil {
			client.sendFrame(models.NewErrorFrame(errs.CodeOf(err), errs.MessageOf(err)))
			return
		}
		h.hub.Unsubscribe(ctx, client, f.RoomID)
		client.sendFrame(models.NewLeftFrame(f.RoomID))

	case models.FrameMessage:
		if f.RoomID == uuid.Nil {
			client.sendFrame(models.NewErrorFrame(errs.CodeValidationFailed, "room_id is required"))
			return
		}
		msg, err := h.messages.Send(ctx, client.userID, f.RoomID, f.Content, f.Kind, f.ReplyTo, f.IdempotencyKey)
		if err != nil {
			client.sendFrame(models.NewErrorFrame(errs.CodeOf(err), errs.MessageOf(err)))
			return
		}
		// A subscribed sender sees the message through the room broadcast;
		// one who sent without joining over this socket gets it directly.
		if !h.hub.Subscribed(client, f.RoomID) {
			if payload, err := json.Marshal(models.NewMessageCreated(msg)); err == nil {
				client.send(payload, false)
			}
		}

	default:
		// Unknown frame types are ignored so older clients keep working.
	}
}

func (h *Handler) publishConnEvent(ctx context.Context, client *Client, event, reason string) {
	info := client.info
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events.rooms", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
}
