package web

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/raglab/raglab/internal/bus"
	"github.com/raglab/raglab/internal/pkg/logger"
)

// sseKeepalive is the interval between keepalive comments, keeping
// proxies from closing idle streams.
const sseKeepalive = 15 * time.Second

// broadcaster fans bus events out to all connected SSE clients. It
// subscribes once per topic so client churn never accumulates handlers
// on the bus.
type broadcaster struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
	log     *logger.Logger
}

func newBroadcaster(events bus.Bus, log *logger.Logger) *broadcaster {
	b := &broadcaster{
		clients: make(map[chan string]struct{}),
		log:     log,
	}

	if events == nil {
		return b
	}

	topics := []string{
		bus.TopicExecutionRecorded,
		bus.TopicExecutionsPurged,
		bus.TopicDocumentIndexed,
	}
	for _, topic := range topics {
		if err := events.Subscribe(context.Background(), topic, b.forward); err != nil {
			log.Warn("dashboard event subscription failed", "topic", topic, "error", err)
		}
	}
	return b
}

// forward delivers an event name to every connected client. Slow
// clients drop updates instead of blocking the bus.
func (b *broadcaster) forward(ctx context.Context, event bus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.clients {
		select {
		case ch <- event.Type:
		default:
		}
	}
	return nil
}

func (b *broadcaster) attach() chan string {
	ch := make(chan string, 8)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) detach(ch chan string) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
}

// handleEvents streams dashboard refresh notifications over SSE. The
// page listens for named events and re-fetches the comparison section.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	events := h.broadcaster.attach()
	defer h.broadcaster.detach(events)

	ticker := time.NewTicker(sseKeepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case name := <-events:
			fmt.Fprintf(w, "event: %s\ndata: refresh\n\n", name)
			flusher.Flush()
		}
	}
}
