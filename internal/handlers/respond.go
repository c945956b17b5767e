package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chat-backend/internal/errs"
	"chat-backend/internal/middleware"
)

// respondData writes the success envelope.
func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError maps a classified error onto the error envelope. Internal
// causes are logged with the correlation id and never reach the client.
func respondError(c *gin.Context, err error) {
	if errs.KindOf(err) == errs.KindInternal {
		log.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(c)).
			Str("route", c.FullPath()).
			Msg("request failed")
	}
	c.JSON(errs.StatusOf(err), gin.H{
		"success": false,
		"error":   gin.H{"code": errs.CodeOf(err), "message": errs.MessageOf(err)},
	})
}

// bindJSON decodes the request body, folding malformed payloads into the
// validation taxonomy.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, errs.Validation("invalid request body"))
		return false
	}
	return true
}

// pathID parses a uuid path parameter, answering 422 on garbage.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, errs.Validationf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, errs.Validationf("%s must be an integer", name))
		return 0, false
	}
	return val, true
}
