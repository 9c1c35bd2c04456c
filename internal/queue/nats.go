package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nats-io/nats.go"
)

// NATS is a queue backed by a NATS subject with a queue group, so a
// message is handed to exactly one worker per group while the broker
// still provides at-least-once semantics across redeliveries.
type NATS struct {
	nc         *nats.Conn
	subject    string
	queueGroup string
}

// NATSOptions configures the NATS queue.
type NATSOptions struct {
	URL        string
	Subject    string
	QueueGroup string
}

// ConnectNATS connects to a NATS server with a few connection retries,
// then reconnects indefinitely once established.
func ConnectNATS(opts NATSOptions) (*NATS, error) {
	var nc *nats.Conn
	err := retry.Do(
		func() error {
			var err error
			nc, err = nats.Connect(opts.URL,
				nats.MaxReconnects(-1),
				nats.ReconnectWait(2*time.Second),
				nats.Timeout(5*time.Second),
			)
			return err
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", opts.URL, err)
	}

	return &NATS{
		nc:         nc,
		subject:    opts.Subject,
		queueGroup: opts.QueueGroup,
	}, nil
}

// Publish sends a job message on the configured subject.
func (q *NATS) Publish(ctx context.Context, msg Message) error {
	if q.nc.IsClosed() {
		return ErrClosed
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := q.nc.Publish(q.subject, data); err != nil {
		return fmt.Errorf("failed to publish job message: %w", err)
	}
	// Surface broker connectivity problems at publish time instead of
	// letting the message sit in the reconnect buffer.
	if err := q.nc.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("failed to flush job message: %w", err)
	}
	return nil
}

// Messages subscribes to the subject as part of the queue group and
// returns decoded job messages.
func (q *NATS) Messages(ctx context.Context) (<-chan Message, error) {
	if q.nc.IsClosed() {
		return nil, ErrClosed
	}

	inbox := make(chan *nats.Msg, 64)
	sub, err := q.nc.ChanQueueSubscribe(q.subject, q.queueGroup, inbox)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", q.subject, err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case natsMsg, ok := <-inbox:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal(natsMsg.Data, &msg); err != nil {
					continue // Malformed messages are dropped
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

// Connected reports whether the broker connection is currently up.
func (q *NATS) Connected() bool {
	return q.nc != nil && q.nc.IsConnected()
}

// Close drains the connection, letting in-flight messages finish.
func (q *NATS) Close() error {
	if q.nc == nil || q.nc.IsClosed() {
		return nil
	}
	return q.nc.Drain()
}
