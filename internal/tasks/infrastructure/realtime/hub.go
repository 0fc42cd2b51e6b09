// Package realtime fans task change notifications out to subscribers.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

type subscriber struct {
	ownerID string
	fn      func(domain.ChangeEvent)
}

// Hub delivers change events to the subscribers of the event's owner
// scope. It consumes the event bus and also accepts events pushed directly
// by a database feed.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]subscriber
	next   uint64
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[uint64]subscriber),
		logger: logger.With("component", "realtime_hub"),
	}
}

// Subscribe registers fn for changes to ownerID's tasks; an empty owner
// receives changes to tasks without one. fn runs on the publishing
// goroutine.
func (h *Hub) Subscribe(_ context.Context, ownerID string, fn func(domain.ChangeEvent)) (domain.Subscription, error) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = subscriber{ownerID: ownerID, fn: fn}
	h.mu.Unlock()

	h.logger.Debug("subscribed", "owner_id", ownerID, "subscription", id)

	var once sync.Once
	return domain.SubscriptionFunc(func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			h.logger.Debug("unsubscribed", "owner_id", ownerID, "subscription", id)
		})
	}), nil
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers ev to every subscriber in its owner scope.
func (h *Hub) Publish(ev domain.ChangeEvent) {
	h.mu.RLock()
	targets := make([]func(domain.ChangeEvent), 0, len(h.subs))
	for _, s := range h.subs {
		if s.ownerID == ev.OwnerID {
			targets = append(targets, s.fn)
		}
	}
	h.mu.RUnlock()

	h.logger.Debug("delivering change",
		"kind", ev.Kind,
		"task_id", ev.TaskID,
		"owner_id", ev.OwnerID,
		"subscribers", len(targets),
	)
	for _, fn := range targets {
		fn(ev)
	}
}

// EventTypes implements eventbus.EventConsumer.
func (h *Hub) EventTypes() []string {
	return []string{domain.RoutingKeyInserted, domain.RoutingKeyUpdated, domain.RoutingKeyDeleted}
}

// Handle implements eventbus.EventConsumer. Undecodable events are logged
// and acknowledged.
func (h *Hub) Handle(_ context.Context, event *eventbus.ConsumedEvent) error {
	var ev domain.ChangeEvent
	if err := event.Decode(&ev); err != nil {
		h.logger.Warn("dropping undecodable change event", "event_id", event.EventID, "error", err)
		return nil
	}
	if ev.Kind == "" {
		kind, err := domain.ChangeKindFromRoutingKey(event.RoutingKey)
		if err != nil {
			h.logger.Warn("dropping change event", "event_id", event.EventID, "error", err)
			return nil
		}
		ev.Kind = kind
	}
	if ev.TaskID == "" {
		ev.TaskID = event.AggregateID
	}
	if ev.OwnerID == "" {
		ev.OwnerID = event.Metadata.OwnerID
	}

	h.Publish(ev)
	return nil
}

var _ eventbus.EventConsumer = (*Hub)(nil)
