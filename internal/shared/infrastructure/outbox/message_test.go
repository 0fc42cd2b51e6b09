package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/eventbus"
)

func newTestEvent(t *testing.T, text string) *eventbus.ConsumedEvent {
	t.Helper()
	event, err := eventbus.NewEvent("Task", "task-1", "tasks.task.inserted",
		map[string]string{"text": text}, eventbus.EventMetadata{OwnerID: "user-1"})
	require.NoError(t, err)
	return event
}

func TestNewMessage(t *testing.T) {
	t.Run("creates message from event envelope", func(t *testing.T) {
		event := newTestEvent(t, "Buy milk")

		msg, err := NewMessage(event)

		require.NoError(t, err)
		assert.Equal(t, event.EventID, msg.EventID)
		assert.Equal(t, "tasks.task.inserted", msg.RoutingKey)
		assert.Equal(t, event.OccurredAt, msg.CreatedAt)
		assert.Contains(t, string(msg.Payload), "Buy milk")
		assert.Zero(t, msg.ID)
		assert.Nil(t, msg.PublishedAt)
		assert.Nil(t, msg.NextRetryAt)
		assert.Zero(t, msg.RetryCount)
		assert.Nil(t, msg.LastError)
		assert.Nil(t, msg.DeadLetteredAt)
	})

	t.Run("rejects nil event", func(t *testing.T) {
		_, err := NewMessage(nil)
		assert.Error(t, err)
	})
}

func TestMessage_Event(t *testing.T) {
	event := newTestEvent(t, "Call the bank")
	msg, err := NewMessage(event)
	require.NoError(t, err)

	decoded, err := msg.Event()
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, "task-1", decoded.AggregateID)
	assert.Equal(t, "user-1", decoded.Metadata.OwnerID)

	var payload map[string]string
	require.NoError(t, decoded.Decode(&payload))
	assert.Equal(t, "Call the bank", payload["text"])

	_, err = (&Message{Payload: []byte("not json")}).Event()
	assert.Error(t, err)
}

func TestMessage_IsPublished(t *testing.T) {
	msg := &Message{}
	assert.False(t, msg.IsPublished())

	now := time.Now()
	msg.PublishedAt = &now
	assert.True(t, msg.IsPublished())
}

func TestMessage_CanRetry(t *testing.T) {
	tests := []struct {
		retries int
		want    bool
	}{
		{0, true},
		{2, true},
		{3, false},
		{5, false},
	}
	for _, tt := range tests {
		msg := &Message{RetryCount: tt.retries}
		assert.Equal(t, tt.want, msg.CanRetry(3), "retry count %d", tt.retries)
	}
}

func TestProcessor_RetryBackoff(t *testing.T) {
	p := NewProcessor(nil, nil, ProcessorConfig{
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  10 * time.Second,
	}, nil)

	assert.Equal(t, time.Second, p.retryBackoff(0))
	assert.Equal(t, time.Second, p.retryBackoff(1))
	assert.Equal(t, 2*time.Second, p.retryBackoff(2))
	assert.Equal(t, 8*time.Second, p.retryBackoff(4))
	assert.Equal(t, 10*time.Second, p.retryBackoff(5))
	assert.Equal(t, 10*time.Second, p.retryBackoff(500))
}
