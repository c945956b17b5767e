package ws

import (
	"sync"

	"chat-backend/internal/observability"
)

// frame is one encoded outbound payload. Droppable frames (presence) may be
// evicted under backpressure; everything else must reach the client or the
// connection dies.
type frame struct {
	payload   []byte
	droppable bool
}

// sendQueue is a connection's bounded outbound buffer. A channel cannot
// express the eviction rule, so it is a slice under a mutex with a ready
// signal for the write pump.
type sendQueue struct {
	mu     sync.Mutex
	frames []frame
	limit  int
	ready  chan struct{}
	closed bool
}

func newSendQueue(limit int) *sendQueue {
	return &sendQueue{limit: limit, ready: make(chan struct{}, 1)}
}

// push enqueues a frame. On overflow it evicts the oldest droppable frame
// first, or discards the new frame itself if that one is droppable. It
// returns false only when an essential frame would be lost, which means the
// connection must close so the client re-syncs from history.
func (q *sendQueue) push(f frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return true
	}

	if len(q.frames) >= q.limit {
		if !q.evictDroppable() {
			if f.droppable {
				observability.AddDroppedFrames(1)
				return true
			}
			return false
		}
	}

	q.frames = append(q.frames, f)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// evictDroppable removes the oldest droppable frame. Caller holds mu.
func (q *sendQueue) evictDroppable() bool {
	for i, f := range q.frames {
		if f.droppable {
			q.frames = append(q.frames[:i], q.frames[i+1:]...)
			observability.AddDroppedFrames(1)
			return true
		}
	}
	return false
}

// drain takes every queued frame, preserving FIFO order.
func (q *sendQueue) drain() []frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	frames := q.frames
	q.frames = nil
	return frames
}

func (q *sendQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.frames = nil
}

func (q *sendQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
