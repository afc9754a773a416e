package bus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func recordedEvent(id, technique string, ts time.Time) Event {
	return Event{
		ID:        id,
		Type:      TopicExecutionRecorded,
		Source:    "recorder",
		Timestamp: ts.Unix(),
		Payload:   map[string]string{"technique": technique},
	}
}

func TestEventLogger(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "events.log")

	t.Run("NewEventLogger_Enabled", func(t *testing.T) {
		eventLog, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer eventLog.Close()

		if !eventLog.IsEnabled() {
			t.Error("Expected logger to be enabled")
		}
	})

	t.Run("NewEventLogger_Disabled", func(t *testing.T) {
		eventLog, err := NewEventLogger(logPath, false)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer eventLog.Close()

		if eventLog.IsEnabled() {
			t.Error("Expected logger to be disabled")
		}
	})

	t.Run("Log_Enabled", func(t *testing.T) {
		eventLog, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer eventLog.Close()

		event := recordedEvent("exec-1", "hyde", time.Now())
		if err := eventLog.Log(TopicExecutionRecorded, event); err != nil {
			t.Fatalf("Log failed: %v", err)
		}

		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Fatal("Log file was not created")
		}
	})

	t.Run("Log_Disabled", func(t *testing.T) {
		eventLog, err := NewEventLogger(logPath, false)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer eventLog.Close()

		// No-op when disabled, never an error
		if err := eventLog.Log(TopicExecutionRecorded, recordedEvent("exec-2", "fusion", time.Now())); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	})

	t.Run("GetEvents", func(t *testing.T) {
		os.Remove(logPath)

		eventLog, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer eventLog.Close()

		now := time.Now()
		techniques := []string{"baseline", "hyde", "reranking", "fusion", "subquery"}
		for i, tech := range techniques {
			event := recordedEvent(fmt.Sprintf("exec-%d", i), tech, now.Add(time.Duration(i)*time.Second))
			if err := eventLog.Log(TopicExecutionRecorded, event); err != nil {
				t.Fatalf("Log failed: %v", err)
			}
		}

		events, err := eventLog.GetEvents(now.Add(-1*time.Minute), 0)
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(events) != 5 {
			t.Errorf("Expected 5 events, got %d", len(events))
		}

		events, err = eventLog.GetEvents(now.Add(-1*time.Minute), 3)
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(events) != 3 {
			t.Errorf("Expected 3 events (limit), got %d", len(events))
		}
	})

	t.Run("GetEvents_Disabled", func(t *testing.T) {
		eventLog, err := NewEventLogger(logPath, false)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer eventLog.Close()

		if _, err := eventLog.GetEvents(time.Now().Add(-time.Minute), 0); err == nil {
			t.Error("GetEvents on a disabled logger should error")
		}
	})

	t.Run("Replay", func(t *testing.T) {
		os.Remove(logPath)

		eventLog, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer eventLog.Close()

		now := time.Now()
		for i := 0; i < 3; i++ {
			event := recordedEvent(fmt.Sprintf("replay-%d", i), "agentic", now.Add(time.Duration(i)*time.Second))
			if err := eventLog.Log(TopicExecutionRecorded, event); err != nil {
				t.Fatalf("Log failed: %v", err)
			}
		}

		replayBus := NewMemoryBus()
		defer replayBus.Close()

		received := make(chan Event, 3)
		ctx := context.Background()
		err = replayBus.Subscribe(ctx, TopicExecutionRecorded, func(ctx context.Context, event Event) error {
			received <- event
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}

		if err := eventLog.Replay(ctx, replayBus, now.Add(-1*time.Minute)); err != nil {
			t.Fatalf("Replay failed: %v", err)
		}

		for i := 0; i < 3; i++ {
			select {
			case <-received:
			case <-time.After(time.Second):
				t.Fatalf("Timeout: only %d of 3 events replayed", i)
			}
		}
	})
}

func TestLoggedBus(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "logged_bus.log")

	t.Run("Publish_LogsEvent", func(t *testing.T) {
		innerBus := NewMemoryBus()
		defer innerBus.Close()

		eventLog, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer eventLog.Close()

		loggedBus := NewLoggedBus(innerBus, eventLog, nil)

		event := recordedEvent("exec-pub", "adaptive", time.Now())
		if err := loggedBus.Publish(context.Background(), TopicExecutionRecorded, event); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		events, err := eventLog.GetEvents(time.Now().Add(-1*time.Minute), 0)
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("Expected 1 logged event, got %d", len(events))
		}
		if events[0].Event.ID != "exec-pub" {
			t.Errorf("Expected event ID 'exec-pub', got '%s'", events[0].Event.ID)
		}
		if events[0].Topic != TopicExecutionRecorded {
			t.Errorf("Expected topic %q, got %q", TopicExecutionRecorded, events[0].Topic)
		}
	})

	t.Run("Subscribe_DelegatesToInner", func(t *testing.T) {
		os.Remove(logPath)

		innerBus := NewMemoryBus()
		defer innerBus.Close()

		eventLog, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer eventLog.Close()

		loggedBus := NewLoggedBus(innerBus, eventLog, nil)

		received := make(chan Event, 1)
		ctx := context.Background()
		err = loggedBus.Subscribe(ctx, TopicDocumentIndexed, func(ctx context.Context, event Event) error {
			received <- event
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}

		if err := loggedBus.Publish(ctx, TopicDocumentIndexed, Event{ID: "doc-1", Type: TopicDocumentIndexed}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		select {
		case event := <-received:
			if event.ID != "doc-1" {
				t.Errorf("Expected event ID 'doc-1', got '%s'", event.ID)
			}
		case <-time.After(time.Second):
			t.Fatal("Timeout waiting for subscribed handler")
		}
	})
}
