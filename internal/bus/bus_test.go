package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var received atomic.Int32
	var wg sync.WaitGroup

	err := bus.Subscribe(context.Background(), TopicExecutionRecorded, func(ctx context.Context, event Event) error {
		received.Add(1)
		wg.Done()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Publish one event per technique run
	techniques := []string{"baseline", "hyde", "reranking"}
	wg.Add(len(techniques))
	for i, tech := range techniques {
		err := bus.Publish(context.Background(), TopicExecutionRecorded, Event{
			ID:      fmt.Sprintf("exec-%d", i),
			Type:    TopicExecutionRecorded,
			Source:  "recorder",
			Payload: map[string]string{"technique": tech},
		})
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for events")
	}

	if got := received.Load(); got != int32(len(techniques)) {
		t.Errorf("Received %d events, want %d", got, len(techniques))
	}
}

func TestMemoryBus_MultipleSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var cacheRefreshes, auditWrites atomic.Int32
	var wg sync.WaitGroup

	// A recorded execution fans out to the comparison refresher and the audit log
	bus.Subscribe(context.Background(), TopicExecutionRecorded, func(ctx context.Context, event Event) error {
		cacheRefreshes.Add(1)
		wg.Done()
		return nil
	})
	bus.Subscribe(context.Background(), TopicExecutionRecorded, func(ctx context.Context, event Event) error {
		auditWrites.Add(1)
		wg.Done()
		return nil
	})

	wg.Add(2)
	bus.Publish(context.Background(), TopicExecutionRecorded, Event{ID: "exec-1", Type: TopicExecutionRecorded})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timeout")
	}

	if cacheRefreshes.Load() != 1 || auditWrites.Load() != 1 {
		t.Errorf("Expected both subscribers to receive 1 event, got %d and %d", cacheRefreshes.Load(), auditWrites.Load())
	}
}

func TestMemoryBus_NoSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	// Publishing with nothing listening is fine; purges can happen before
	// the dashboard refresher has started
	err := bus.Publish(context.Background(), TopicExecutionsPurged, Event{ID: "purge-1", Type: TopicExecutionsPurged})
	if err != nil {
		t.Errorf("Publish() to topic without subscribers error = %v", err)
	}
}

func TestMemoryBus_HandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var wg sync.WaitGroup
	bus.Subscribe(context.Background(), TopicDocumentIndexed, func(ctx context.Context, event Event) error {
		defer wg.Done()
		return fmt.Errorf("refresh failed")
	})

	wg.Add(1)
	if err := bus.Publish(context.Background(), TopicDocumentIndexed, Event{ID: "doc-1"}); err != nil {
		t.Errorf("Publish() error = %v, handler failures must not surface to publishers", err)
	}
	wg.Wait()
}

func TestMemoryBus_Close(t *testing.T) {
	bus := NewMemoryBus()

	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := bus.Publish(context.Background(), TopicExecutionRecorded, Event{})
	if err == nil {
		t.Error("Publish() after Close() should error")
	}

	err = bus.Subscribe(context.Background(), TopicExecutionRecorded, func(ctx context.Context, event Event) error {
		return nil
	})
	if err == nil {
		t.Error("Subscribe() after Close() should error")
	}
}

func TestMemoryBus_CloseWaitsForInflight(t *testing.T) {
	bus := NewMemoryBus()

	var completed atomic.Bool
	bus.Subscribe(context.Background(), TopicExecutionRecorded, func(ctx context.Context, event Event) error {
		time.Sleep(50 * time.Millisecond)
		completed.Store(true)
		return nil
	})

	bus.Publish(context.Background(), TopicExecutionRecorded, Event{ID: "exec-slow"})

	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !completed.Load() {
		t.Error("Close() returned before the in-flight handler finished")
	}
}

func TestMemoryBus_Concurrent(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var received atomic.Int32
	var wg sync.WaitGroup

	bus.Subscribe(context.Background(), TopicExecutionRecorded, func(ctx context.Context, event Event) error {
		received.Add(1)
		wg.Done()
		return nil
	})

	// Concurrent technique runs all publish to the same topic
	numPublishers := 10
	eventsPerPublisher := 100
	wg.Add(numPublishers * eventsPerPublisher)

	for p := 0; p < numPublishers; p++ {
		go func() {
			for i := 0; i < eventsPerPublisher; i++ {
				bus.Publish(context.Background(), TopicExecutionRecorded, Event{
					ID:   "exec",
					Type: TopicExecutionRecorded,
				})
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Timeout: received %d events, expected %d", received.Load(), numPublishers*eventsPerPublisher)
	}

	expected := int32(numPublishers * eventsPerPublisher)
	if got := received.Load(); got != expected {
		t.Errorf("Received %d events, want %d", got, expected)
	}
}
