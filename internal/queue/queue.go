package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned when publishing to or subscribing on a closed queue.
var ErrClosed = errors.New("queue is closed")

// Message is one job delivery. The queue guarantees at-least-once
// delivery; consumers must tolerate duplicates.
type Message struct {
	JobID string `json:"job_id"`
}

// Queue carries job ids from the API to analysis workers. Implementations
// are safe for concurrent use.
type Queue interface {
	// Publish enqueues a job message. An error means the message was not
	// accepted and the caller should fail the job.
	Publish(ctx context.Context, msg Message) error

	// Messages returns a channel of incoming job messages. The channel is
	// closed when ctx is cancelled or the queue shuts down.
	Messages(ctx context.Context) (<-chan Message, error)

	// Close releases queue resources.
	Close() error
}
