package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo carries the identity and correlation fields captured at handshake
// time, reused by every lifecycle event the connection emits.
type ConnInfo struct {
	ConnID      string
	UserID      uuid.UUID
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
