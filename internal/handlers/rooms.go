package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-backend/internal/errs"
	"chat-backend/internal/middleware"
	"chat-backend/internal/service"
)

// RoomHandler serves room lifecycle and membership endpoints.
type RoomHandler struct {
	rooms service.RoomService
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(rooms service.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

func identity(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		respondError(c, errs.Unauthenticated(errs.CodeAuthenticationFailed, "missing identity"))
		return uuid.Nil, false
	}
	return userID, true
}

// Create makes the caller owner of a new room.
func (h *RoomHandler) Create(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}

	var req struct {
		Name      string `json:"name"`
		IsPrivate bool   `json:"is_private"`
		Password  string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), userID, req.Name, req.IsPrivate, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusCreated, gin.H{"room": room})
}

// List returns the rooms the caller is a member of.
func (h *RoomHandler) List(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	rooms, err := h.rooms.ListRooms(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"rooms": rooms})
}

// Get returns one room the caller may see.
func (h *RoomHandler) Get(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	room, err := h.rooms.GetRoom(c.Request.Context(), userID, roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"room": room})
}

// Update patches room settings; owner only.
func (h *RoomHandler) Update(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Name      *string `json:"name"`
		IsPrivate *bool   `json:"is_private"`
		Password  *string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}

	room, err := h.rooms.UpdateRoom(c.Request.Context(), userID, roomID, service.RoomPatch{
		Name:      req.Name,
		IsPrivate: req.IsPrivate,
		Password:  req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"room": room})
}

// Close marks the room terminal; owner only.
func (h *RoomHandler) Close(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.rooms.CloseRoom(c.Request.Context(), userID, roomID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Join makes the caller a member; already being one is not an error.
func (h *RoomHandler) Join(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	// Join takes an optional body; an absent one means no password.
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	if _, err := h.rooms.Join(c.Request.Context(), userID, roomID, req.Password); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Leave removes the caller's membership.
func (h *RoomHandler) Leave(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.rooms.Leave(c.Request.Context(), userID, roomID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Members lists the room's memberships; members only.
func (h *RoomHandler) Members(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	members, err := h.rooms.Members(c.Request.Context(), userID, roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"members": members})
}

// OnlineMembers lists the members currently connected somewhere.
func (h *RoomHandler) OnlineMembers(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	users, err := h.rooms.OnlineMembers(c.Request.Context(), userID, roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"members": users})
}

// Invite adds another user to the room; admin and up.
func (h *RoomHandler) Invite(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		UserID uuid.UUID `json:"user_id"`
		Role   string    `json:"role"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		respondError(c, errs.Validation("user_id is required"))
		return
	}

	member, err := h.rooms.Invite(c.Request.Context(), userID, roomID, req.UserID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusCreated, gin.H{"member": member})
}

// Kick removes another member; admin and up, never upward.
func (h *RoomHandler) Kick(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	if err := h.rooms.Kick(c.Request.Context(), userID, roomID, targetID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ChangeRole promotes or demotes a member, or transfers ownership.
func (h *RoomHandler) ChangeRole(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if err := h.rooms.ChangeRole(c.Request.Context(), userID, roomID, targetID, req.Role); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
