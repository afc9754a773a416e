package comparison

import (
	"context"
	"sync"
	"time"

	"github.com/raglab/raglab/internal/pkg/logger"
	"github.com/raglab/raglab/internal/recorder"
)

// Refresher periodically recomputes the unfiltered comparison and
// stores it in the cache. Dashboard polls read the cached snapshot
// instead of re-aggregating on every request.
type Refresher struct {
	service  *Service
	cache    Cache
	interval time.Duration
	log      *logger.Logger

	trigger chan struct{}
	stop    chan struct{}
	done    chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewRefresher creates a snapshot refresher. A non-positive interval
// falls back to five seconds.
func NewRefresher(service *Service, cache Cache, interval time.Duration, log *logger.Logger) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Refresher{
		service:  service,
		cache:    cache,
		interval: interval,
		log:      log,
		trigger:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the refresh loop. The first snapshot is computed
// immediately so the dashboard never waits a full interval after boot.
func (r *Refresher) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

func (r *Refresher) run() {
	defer close(r.done)

	r.refresh()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.refresh()
		case <-r.trigger:
			r.refresh()
		}
	}
}

// Trigger requests an out-of-band refresh, used when a new execution
// is recorded. Coalesces with any refresh already pending.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	result, err := r.service.Compare(ctx, recorder.Filter{})
	if err != nil {
		r.log.Warn("comparison snapshot refresh failed", "error", err)
		return
	}

	if err := r.cache.Set(ctx, result); err != nil {
		r.log.Warn("comparison snapshot cache write failed", "error", err)
	}
}

// Stop halts the refresh loop and waits for it to exit. Safe to call
// more than once and before Start.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	r.startOnce.Do(func() {
		close(r.done)
	})
	<-r.done
}
