package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-backend/internal/errs"
	"chat-backend/internal/models"
	"chat-backend/internal/service"
)

// defaultHistoryLimit applies when the client sends no limit parameter.
const defaultHistoryLimit = 50

// MessageHandler serves the message log endpoints.
type MessageHandler struct {
	messages service.MessageService
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Send appends a message to a room over HTTP.
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Content        string     `json:"content"`
		Kind           string     `json:"kind"`
		ReplyTo        *uuid.UUID `json:"reply_to"`
		IdempotencyKey string     `json:"idempotency_key"`
	}
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), userID, roomID, req.Content, req.Kind, req.ReplyTo, req.IdempotencyKey)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusCreated, gin.H{"message": msg})
}

// History pages a room's log backwards from the cursor.
func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", defaultHistoryLimit)
	if !ok {
		return
	}

	before, err := parseCursor(c.Query("before"))
	if err != nil {
		respondError(c, errs.Validation("invalid before cursor"))
		return
	}

	messages, err := h.messages.History(c.Request.Context(), userID, roomID, before, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"messages": messages})
}

// MarkRead advances the caller's last-read pointer in a room.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		MessageID uuid.UUID `json:"message_id"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.MessageID == uuid.Nil {
		respondError(c, errs.Validation("message_id is required"))
		return
	}

	if err := h.messages.MarkRead(c.Request.Context(), userID, roomID, req.MessageID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Get returns one message; members only.
func (h *MessageHandler) Get(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	msg, err := h.messages.GetMessage(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"message": msg})
}

// Edit replaces a message's content; author only.
func (h *MessageHandler) Edit(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messages.EditMessage(c.Request.Context(), userID, messageID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"message": msg})
}

// Delete tombstones a message; author or room admin and up.
func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.messages.DeleteMessage(c.Request.Context(), userID, messageID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// parseCursor decodes "created_at,id" history cursors; an empty value means
// start from the newest row.
func parseCursor(raw string) (*models.HistoryCursor, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return nil, errs.Validation("invalid before cursor")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, err
	}
	return &models.HistoryCursor{CreatedAt: createdAt, ID: id}, nil
}
