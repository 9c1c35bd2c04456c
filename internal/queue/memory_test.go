package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryPublishAndReceive(t *testing.T) {
	q := NewMemory(4)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := q.Messages(ctx)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}

	want := Message{JobID: "job-1"}
	if err := q.Publish(ctx, want); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-msgs:
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestMemorySingleDelivery(t *testing.T) {
	q := NewMemory(4)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := q.Messages(ctx)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}

	q.Publish(ctx, Message{JobID: "only-once"})

	select {
	case <-msgs:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	select {
	case got, ok := <-msgs:
		if ok {
			t.Errorf("unexpected second delivery: %+v", got)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryPublishFullBuffer(t *testing.T) {
	q := NewMemory(1)
	defer q.Close()

	ctx := context.Background()
	if err := q.Publish(ctx, Message{JobID: "a"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	// No consumer, buffer full: publish must fail, not block.
	if err := q.Publish(ctx, Message{JobID: "b"}); err == nil {
		t.Error("Publish() with full buffer succeeded")
	}
}

func TestMemoryClosed(t *testing.T) {
	q := NewMemory(4)
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := q.Publish(context.Background(), Message{JobID: "x"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after close error = %v, want ErrClosed", err)
	}
	if _, err := q.Messages(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Messages() after close error = %v, want ErrClosed", err)
	}

	// Close is idempotent.
	if err := q.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestMemoryMessagesStopOnCancel(t *testing.T) {
	q := NewMemory(4)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := q.Messages(ctx)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}

	cancel()

	select {
	case _, ok := <-msgs:
		if ok {
			t.Error("received message after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
