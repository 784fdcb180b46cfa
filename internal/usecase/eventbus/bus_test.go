package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"relayd/internal/domain"
)

func TestPublishTyped(t *testing.T) {
	bus := New(slog.Default())
	defer bus.Close()

	var mu sync.Mutex
	var got []domain.Event

	bus.Subscribe(domain.EventMessageQueued, func(_ context.Context, e domain.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	bus.Publish(context.Background(), domain.Event{Type: domain.EventMessageQueued, Agent: "bob"})
	bus.Publish(context.Background(), domain.Event{Type: domain.EventPushFailed, Agent: "bob"})
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("typed subscriber received %d events, want 1", len(got))
	}
	if got[0].Agent != "bob" {
		t.Errorf("Agent = %q, want %q", got[0].Agent, "bob")
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := New(slog.Default())

	var count sync.WaitGroup
	count.Add(2)
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		count.Done()
	})

	bus.Publish(context.Background(), domain.Event{Type: domain.EventAgentRegistered})
	bus.Publish(context.Background(), domain.Event{Type: domain.EventQueueDrained})

	done := make(chan struct{})
	go func() {
		count.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("all-event subscriber did not receive both events")
	}
	bus.Close()
}

func TestUnsubscribe(t *testing.T) {
	bus := New(slog.Default())

	var mu sync.Mutex
	calls := 0
	unsub := bus.Subscribe(domain.EventMessagePushed, func(_ context.Context, _ domain.Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	bus.Publish(context.Background(), domain.Event{Type: domain.EventMessagePushed})
	bus.Close() // wait for the in-flight handler

	unsub()
	bus.Publish(context.Background(), domain.Event{Type: domain.EventMessagePushed})

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestPanicRecovered(t *testing.T) {
	bus := New(slog.Default())

	bus.Subscribe(domain.EventPushFailed, func(_ context.Context, _ domain.Event) {
		panic("bad observer")
	})

	// Must not crash the publisher.
	bus.Publish(context.Background(), domain.Event{Type: domain.EventPushFailed})
	bus.Close()
}

func TestPublishAfterClose(t *testing.T) {
	bus := New(slog.Default())
	called := false
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) { called = true })

	bus.Close()
	bus.Publish(context.Background(), domain.Event{Type: domain.EventAgentRegistered})
	bus.Close() // idempotent

	if called {
		t.Error("handler invoked after Close")
	}
}
