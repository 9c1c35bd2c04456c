package queue

import (
	"context"
	"sync"
)

// Memory is an in-process queue backed by a buffered channel. It serves
// single-binary deployments where the server embeds its own workers.
type Memory struct {
	mu     sync.Mutex
	ch     chan Message
	closed bool
}

// NewMemory creates an in-memory queue with the given buffer size.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 256
	}
	return &Memory{ch: make(chan Message, buffer)}
}

// Publish enqueues a message. It fails rather than blocks when the
// buffer is full so the caller can mark the job FAILED.
func (m *Memory) Publish(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	select {
	case m.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrClosed
	}
}

// Messages returns the delivery channel. All subscribers share one
// channel, so each message is delivered to exactly one worker.
func (m *Memory) Messages(ctx context.Context) (<-chan Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg, ok := <-m.ch:
				if !ok {
					return
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts down the queue. Pending messages are dropped.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.ch)
	return nil
}
