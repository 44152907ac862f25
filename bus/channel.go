package bus

import (
	"context"
	"sync"
)

// Channel is a buffered channel that tolerates concurrent Close and send.
// Sends after Close are refused instead of panicking.
type Channel[T any] struct {
	channel chan T
	mu      sync.RWMutex
	closed  bool
}

func NewChannel[T any](bufferSize int) *Channel[T] {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Channel[T]{channel: make(chan T, bufferSize)}
}

// TrySend queues message without blocking. It reports false when the buffer
// is full or the channel is closed.
func (c *Channel[T]) TrySend(message T) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}

	select {
	case c.channel <- message:
		return true
	default:
		return false
	}
}

// Receive blocks until a message arrives, the channel is closed, or ctx is
// done.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	select {
	case message, ok := <-c.channel:
		if !ok {
			var zero T
			return zero, ErrClosed
		}
		return message, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (c *Channel[T]) TryReceive() (T, bool) {
	select {
	case message, ok := <-c.channel:
		return message, ok
	default:
		var zero T
		return zero, false
	}
}

func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.channel)
	}
}

func (c *Channel[T]) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Channel[T]) BufferSize() int {
	return cap(c.channel)
}

func (c *Channel[T]) QueueLength() int {
	return len(c.channel)
}
