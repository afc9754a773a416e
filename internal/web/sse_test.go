package web

import (
	"context"
	"testing"
	"time"

	"github.com/raglab/raglab/internal/bus"
	"github.com/raglab/raglab/internal/pkg/logger"
)

func TestBroadcaster_ForwardsBusEventsToClients(t *testing.T) {
	events := bus.NewMemoryBus()
	defer events.Close()

	b := newBroadcaster(events, logger.New("error", "text"))
	client := b.attach()
	defer b.detach(client)

	err := events.Publish(context.Background(), bus.TopicExecutionRecorded, bus.Event{
		Type:   bus.TopicExecutionRecorded,
		Source: "recorder",
	})
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	select {
	case name := <-client:
		if name != bus.TopicExecutionRecorded {
			t.Errorf("expected %q, got %q", bus.TopicExecutionRecorded, name)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a forwarded event")
	}
}

func TestBroadcaster_SlowClientDropsInsteadOfBlocking(t *testing.T) {
	b := newBroadcaster(nil, logger.New("error", "text"))
	client := make(chan string) // unbuffered and never read
	b.mu.Lock()
	b.clients[client] = struct{}{}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = b.forward(context.Background(), bus.Event{Type: bus.TopicExecutionsPurged})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward must not block on a slow client")
	}
}

func TestBroadcaster_DetachStopsDelivery(t *testing.T) {
	b := newBroadcaster(nil, logger.New("error", "text"))
	client := b.attach()
	b.detach(client)

	if err := b.forward(context.Background(), bus.Event{Type: bus.TopicDocumentIndexed}); err != nil {
		t.Fatalf("forward() error: %v", err)
	}

	select {
	case name := <-client:
		t.Errorf("detached client received %q", name)
	default:
	}
}
