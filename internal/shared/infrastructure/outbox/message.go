// Package outbox stores events in the same transaction as the change they
// describe and relays them to the event bus afterwards.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/eventbus"
)

// Message represents an outbox message ready for publishing. Payload is
// the encoded event envelope.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	RoutingKey       string
	Payload          json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage creates an outbox message from an event envelope.
func NewMessage(event *eventbus.ConsumedEvent) (*Message, error) {
	if event == nil {
		return nil, fmt.Errorf("event is required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.EventID, err)
	}
	return &Message{
		EventID:    event.EventID,
		RoutingKey: event.RoutingKey,
		Payload:    payload,
		CreatedAt:  event.OccurredAt,
	}, nil
}

// Event decodes the stored envelope.
func (m *Message) Event() (*eventbus.ConsumedEvent, error) {
	var event eventbus.ConsumedEvent
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, fmt.Errorf("decode outbox message %d: %w", m.ID, err)
	}
	return &event, nil
}

// IsPublished returns true if the message has been published.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}

// CanRetry returns true if the message can be retried.
func (m *Message) CanRetry(maxRetries int) bool {
	return m.RetryCount < maxRetries
}
