package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-backend/internal/models"
)

const (
	// writeWait bounds a single socket write.
	writeWait = 10 * time.Second

	// maxFrameSize bounds inbound frames; content caps at 10000 characters,
	// so 64 KiB leaves generous headroom.
	maxFrameSize = 64 << 10
)

// Client is one websocket connection. The read loop lives on the handler,
// the write pump is the only goroutine writing data frames, and the rooms
// set is guarded by the hub's lock.
type Client struct {
	conn   *websocket.Conn
	userID uuid.UUID
	queue  *sendQueue
	rooms  map[uuid.UUID]bool
	info   ConnInfo

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, userID uuid.UUID, queueSize int, info ConnInfo) *Client {
	return &Client{
		conn:   conn,
		userID: userID,
		queue:  newSendQueue(queueSize),
		rooms:  make(map[uuid.UUID]bool),
		info:   info,
		done:   make(chan struct{}),
	}
}

// send enqueues an encoded payload. If an essential frame cannot fit, the
// connection closes with 1013 so the client reconnects and re-syncs.
func (c *Client) send(payload []byte, droppable bool) {
	if !c.queue.push(frame{payload: payload, droppable: droppable}) {
		c.closeWith(websocket.CloseTryAgainLater, "send queue overflow")
	}
}

// sendFrame marshals and enqueues a direct server reply.
func (c *Client) sendFrame(f models.ServerFrame) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.send(payload, false)
}

// close tears the connection down without a close frame; used when the
// transport is already broken.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// closeWith sends a close control frame with the given code, then tears the
// connection down. Control writes are safe concurrently with the write pump.
func (c *Client) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(writeWait)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump is the connection's single data writer: it drains the send queue
// and pings the client every heartbeat interval.
func (c *Client) writePump(heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case <-c.queue.ready:
			for _, f := range c.queue.drain() {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, f.payload); err != nil {
					c.close()
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
