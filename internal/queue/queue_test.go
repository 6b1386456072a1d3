package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	body, _ := json.Marshal(map[string]string{"session_id": "s1", "student_id": "alice"})
	if err := q.Publish(ctx, Message{Type: "scan", Body: body}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	select {
	case msg := <-messages:
		if msg.Type != "scan" {
			t.Fatalf("type = %q, want scan", msg.Type)
		}
		var decoded map[string]string
		if err := json.Unmarshal(msg.Body, &decoded); err != nil {
			t.Fatalf("body decode: %v", err)
		}
		if decoded["student_id"] != "alice" {
			t.Fatalf("body = %v, want student alice", decoded)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestInMemoryPublishDropsWhenFull(t *testing.T) {
	q := NewInMemory(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 2; i++ {
		if err := q.Publish(ctx, Message{Type: "scan"}); err != nil {
			t.Fatalf("Publish(%d) error = %v", i, err)
		}
	}

	// Nothing consumes in this process; the overflow publish must drop
	// immediately rather than park the caller until a consumer appears.
	start := time.Now()
	err := q.Publish(ctx, Message{Type: "scan"})
	if !errors.Is(err, ErrFull) {
		t.Fatalf("Publish() on full queue = %v, want ErrFull", err)
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		t.Fatalf("Publish() on full queue blocked for %s", waited)
	}

	// Draining one slot makes room again.
	messages, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	<-messages
	if err := q.Publish(ctx, Message{Type: "scan"}); err != nil {
		t.Fatalf("Publish() after drain error = %v", err)
	}
}

func TestInMemoryPublishRespectsCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	// Fill the buffer, then cancel; the next publish must not block forever.
	_ = q.Publish(ctx, Message{Type: "scan"})
	cancel()
	if err := q.Publish(ctx, Message{Type: "scan"}); err == nil {
		t.Fatal("Publish() on cancelled context should fail")
	}
}
