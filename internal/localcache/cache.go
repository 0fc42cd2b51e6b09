// Package localcache is the on-device key-value store: anonymous task
// bookkeeping, the persisted session and, in local-only mode, the task list.
package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

const probeKey = "__storage_test__"

// ErrUnavailable is returned when the backend cannot be used.
var ErrUnavailable = errors.New("local storage unavailable")

// Backend stores raw values by key.
type Backend interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// Gateway stores JSON encoded values on a Backend.
type Gateway struct {
	backend Backend
	logger  *slog.Logger
}

// New creates a Gateway over backend.
func New(backend Backend, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{backend: backend, logger: logger.With("component", "localcache")}
}

// Get decodes the value at key into dst. It reports false, leaving dst
// untouched, when the key is missing or holds unreadable data.
func (g *Gateway) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := g.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		g.logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// Set encodes value as JSON and stores it at key.
func (g *Gateway) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := g.backend.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Remove deletes key.
func (g *Gateway) Remove(ctx context.Context, key string) error {
	if err := g.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// IsAvailable writes and removes a probe key.
func (g *Gateway) IsAvailable(ctx context.Context) bool {
	if err := g.backend.Set(ctx, probeKey, []byte(`"probe"`)); err != nil {
		g.logger.Debug("local storage probe failed", "error", err)
		return false
	}
	if err := g.backend.Delete(ctx, probeKey); err != nil {
		g.logger.Debug("local storage probe cleanup failed", "error", err)
		return false
	}
	return true
}
