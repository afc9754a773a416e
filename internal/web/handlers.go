// Package web serves the technique comparison dashboard using templ
// templates and HTMX.
package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/raglab/raglab/internal/bus"
	"github.com/raglab/raglab/internal/comparison"
	"github.com/raglab/raglab/internal/pkg/logger"
	"github.com/raglab/raglab/internal/web/components"
)

// Handler serves the dashboard pages and the live update stream.
type Handler struct {
	cache    comparison.Cache
	interval time.Duration
	log      *logger.Logger

	broadcaster *broadcaster
	done        chan struct{}
	closeOnce   sync.Once
}

// NewHandler creates the dashboard handler. events is optional; without
// it the dashboard falls back to interval polling only.
func NewHandler(cache comparison.Cache, events bus.Bus, interval time.Duration, log *logger.Logger) *Handler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = logger.Default()
	}

	h := &Handler{
		cache:    cache,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
	}
	h.broadcaster = newBroadcaster(events, log)
	return h
}

// RegisterRoutes registers all dashboard routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /dashboard", h.handleDashboard)
	mux.HandleFunc("GET /dashboard/table", h.handleTable)
	mux.HandleFunc("GET /dashboard/data", h.handleData)
	mux.HandleFunc("GET /dashboard/events", h.handleEvents)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
}

// Close shuts down all open event streams.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// handleDashboard renders the full dashboard page.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := components.DashboardData{
		Snapshot:       h.snapshot(r),
		RefreshSeconds: int(h.interval.Seconds()),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := components.DashboardPage(data).Render(r.Context(), w); err != nil {
		h.log.Error("failed to render dashboard", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// handleTable renders just the comparison section for HTMX refreshes.
func (h *Handler) handleTable(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := components.ComparisonSection(h.snapshot(r)).Render(r.Context(), w); err != nil {
		h.log.Error("failed to render comparison table", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// handleData serves the comparison snapshot as JSON for pollers that
// want the raw numbers instead of rendered HTML.
func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	snapshot := h.snapshot(r)
	if snapshot == nil {
		// Same shape the aggregator emits for empty input: rows and
		// rankings serialize as [] and {}, never null.
		snapshot = &comparison.Result{
			Rows:     []comparison.Row{},
			Rankings: map[string][]string{},
			NoData:   true,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		h.log.Error("failed to encode dashboard data", "error", err)
	}
}

// snapshot reads the latest comparison snapshot. A missing or failing
// snapshot renders as the empty state, never an error page.
func (h *Handler) snapshot(r *http.Request) *comparison.Result {
	if h.cache == nil {
		return nil
	}
	result, err := h.cache.Get(r.Context())
	if err != nil {
		h.log.Warn("snapshot read failed", "error", err)
		return nil
	}
	return result
}
