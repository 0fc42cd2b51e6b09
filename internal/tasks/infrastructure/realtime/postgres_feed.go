package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

// Channel is the NOTIFY channel the tasks trigger writes to.
const Channel = "task_changes"

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// notification is the payload built by notify_task_change().
type notification struct {
	Op      string          `json:"op"`
	ID      string          `json:"id"`
	OwnerID *string         `json:"owner_id"`
	Version int64           `json:"version"`
	Task    json.RawMessage `json:"task"`
}

// ParseNotification converts a NOTIFY payload into a change event.
func ParseNotification(payload []byte) (domain.ChangeEvent, error) {
	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("decode notification: %w", err)
	}
	owner := ""
	if n.OwnerID != nil {
		owner = *n.OwnerID
	}

	switch domain.ChangeKind(n.Op) {
	case domain.ChangeDelete:
		if n.ID == "" {
			return domain.ChangeEvent{}, errors.New("delete notification without id")
		}
		return domain.NewDeleteEvent(n.ID, owner, n.Version), nil
	case domain.ChangeInsert, domain.ChangeUpdate:
		t, err := domain.DecodeTask(n.Task)
		if err != nil {
			return domain.ChangeEvent{}, err
		}
		return domain.NewUpsertEvent(domain.ChangeKind(n.Op), t), nil
	default:
		return domain.ChangeEvent{}, fmt.Errorf("unknown notification op %q", n.Op)
	}
}

// PostgresFeed listens on Channel and pushes every change into a Hub.
// Use it instead of event bus announcements when the datastore is
// PostgreSQL: it also sees writes made by other services.
type PostgresFeed struct {
	listener *pq.Listener
	hub      *Hub
	logger   *slog.Logger
}

// NewPostgresFeed opens a dedicated LISTEN connection to dsn.
func NewPostgresFeed(dsn string, hub *Hub, logger *slog.Logger) (*PostgresFeed, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "postgres_feed")

	listener := pq.NewListener(dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			logger.Info("listening for task changes", "channel", Channel)
		case pq.ListenerEventDisconnected:
			logger.Warn("task change listener disconnected", "error", err)
		case pq.ListenerEventReconnected:
			logger.Info("task change listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Warn("task change listener reconnect failed", "error", err)
		}
	})
	if err := listener.Listen(Channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", Channel, err)
	}

	return &PostgresFeed{listener: listener, hub: hub, logger: logger}, nil
}

// Run forwards notifications until ctx is done.
func (f *PostgresFeed) Run(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case n, ok := <-f.listener.Notify:
			if !ok {
				return errors.New("listener closed")
			}
			if n == nil {
				// reconnected; changes during the gap are only visible after a reload
				f.logger.Warn("task change notifications may have been missed")
				continue
			}
			ev, err := ParseNotification([]byte(n.Extra))
			if err != nil {
				f.logger.Warn("dropping task change notification", "error", err)
				continue
			}
			f.hub.Publish(ev)

		case <-ticker.C:
			go func() {
				if err := f.listener.Ping(); err != nil {
					f.logger.Debug("listener ping failed", "error", err)
				}
			}()
		}
	}
}

// Close stops listening.
func (f *PostgresFeed) Close() error {
	return f.listener.Close()
}
