package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-backend/internal/observability"
)

// RequestIDKey is the gin context key carrying the request correlation id.
const RequestIDKey = "request_id"

const requestIDHeader = "X-Request-ID"

// RequestID honors an inbound X-Request-ID or mints one, and echoes it on the
// response so clients and the audit pipeline can correlate.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Request = c.Request.WithContext(observability.WithRequestID(c.Request.Context(), requestID))
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// RequestIDFromContext reads the correlation id set by RequestID.
func RequestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(RequestIDKey); ok {
		if id, ok := val.(string); ok {
			return id
		}
	}
	return ""
}
