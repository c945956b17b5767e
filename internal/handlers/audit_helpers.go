package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-backend/internal/middleware"
)

func requestIDFromContext(c *gin.Context) string {
	if id := middleware.RequestIDFromContext(c); id != "" {
		return id
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if userID, ok := middleware.UserIDFromContext(c); ok && userID != uuid.Nil {
		id := userID.String()
		return &id
	}

	if header := c.GetHeader("X-User-ID"); header != "" {
		if parsed, err := uuid.Parse(header); err == nil {
			id := parsed.String()
			return &id
		}
	}

	return nil
}
