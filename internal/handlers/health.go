package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health answers liveness probes. No envelope; this is the ops surface.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
