package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raglab/raglab/internal/bus"
	"github.com/raglab/raglab/internal/pkg/errors"
	"github.com/raglab/raglab/internal/pkg/logger"
)

// Service provides execution recording, lookup, listing, and purging.
type Service struct {
	storage Storage
	events  bus.Bus
	known   map[string]struct{}
	log     *logger.Logger
}

// NewService creates a new recorder service. knownTechniques is the set
// of technique identifiers accepted by Record.
func NewService(storage Storage, events bus.Bus, knownTechniques []string, log *logger.Logger) *Service {
	known := make(map[string]struct{}, len(knownTechniques))
	for _, t := range knownTechniques {
		known[t] = struct{}{}
	}

	if log == nil {
		log = logger.Default()
	}

	return &Service{
		storage: storage,
		events:  events,
		known:   known,
		log:     log,
	}
}

// Record validates and durably appends an execution. The id and
// created_at fields are assigned here; any values supplied by the
// caller are overwritten. Returns the assigned id.
func (s *Service) Record(ctx context.Context, e *Execution) (string, error) {
	if !ValidateQuery(e.Query) {
		return "", errors.ValidationError("query cannot be empty")
	}

	if _, ok := s.known[e.Technique]; !ok {
		return "", errors.ValidationError(fmt.Sprintf("unknown technique: %s", e.Technique))
	}

	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()

	if err := s.storage.Insert(ctx, e); err != nil {
		return "", err
	}

	s.publish(ctx, bus.TopicExecutionRecorded, map[string]any{
		"id":        e.ID,
		"technique": e.Technique,
	})

	return e.ID, nil
}

// Get returns the execution with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Execution, error) {
	if id == "" {
		return nil, errors.ValidationError("execution id cannot be empty")
	}
	return s.storage.Get(ctx, id)
}

// List returns executions matching the filter, most recent first.
func (s *Service) List(ctx context.Context, f Filter) ([]*Execution, error) {
	return s.storage.List(ctx, f)
}

// Purge deletes matching executions and returns the count. Purging an
// empty matching set returns 0 without error.
func (s *Service) Purge(ctx context.Context, f Filter) (int64, error) {
	count, err := s.storage.Delete(ctx, f)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.publish(ctx, bus.TopicExecutionsPurged, map[string]any{
			"count": count,
		})
	}

	return count, nil
}

// publish emits a best-effort notification; delivery failures are
// logged, never surfaced to the caller.
func (s *Service) publish(ctx context.Context, topic string, payload map[string]any) {
	if s.events == nil {
		return
	}

	event := bus.Event{
		ID:        uuid.New().String(),
		Type:      topic,
		Source:    "recorder",
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}

	if err := s.events.Publish(ctx, topic, event); err != nil {
		s.log.Warn("failed to publish event", "topic", topic, "error", err.Error())
	}
}
