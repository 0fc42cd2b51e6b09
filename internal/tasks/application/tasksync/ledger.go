package tasksync

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Keys of the anonymous bookkeeping in the local cache.
const (
	KeyAnonymousCount   = "day_task_anonymous_count"
	KeyLimitShown       = "day_task_limit_shown"
	KeyAnonymousTaskIDs = "day_task_anonymous_task_ids"
)

// Cache is the local key-value capability the ledger is kept in.
type Cache interface {
	// Get decodes the value at key into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
}

// AnonymousLedger tracks tasks created without a session: how many were
// created (the quota counter) and which ids still need migrating.
//
// Cache failures are logged and read as empty bookkeeping.
type AnonymousLedger struct {
	cache  Cache
	logger *slog.Logger
	mu     sync.Mutex
}

// NewAnonymousLedger creates a ledger backed by cache.
func NewAnonymousLedger(cache Cache, logger *slog.Logger) *AnonymousLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnonymousLedger{cache: cache, logger: logger}
}

// Count returns how many tasks were created anonymously.
func (l *AnonymousLedger) Count(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count(ctx)
}

// IDs returns the anonymous task ids awaiting migration.
func (l *AnonymousLedger) IDs(ctx context.Context) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ids(ctx)
}

// Record notes a new anonymous task and returns the updated count.
func (l *AnonymousLedger) Record(ctx context.Context, id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.count(ctx) + 1
	l.set(ctx, KeyAnonymousCount, count)

	ids := l.ids(ctx)
	if !slices.Contains(ids, id) {
		l.set(ctx, KeyAnonymousTaskIDs, append(ids, id))
	}
	return count
}

// Forget undoes Record for a creation that was rolled back.
func (l *AnonymousLedger) Forget(ctx context.Context, id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.ids(ctx)
	i := slices.Index(ids, id)
	if i < 0 {
		return l.count(ctx)
	}
	l.set(ctx, KeyAnonymousTaskIDs, slices.Delete(ids, i, i+1))

	count := max(l.count(ctx)-1, 0)
	l.set(ctx, KeyAnonymousCount, count)
	return count
}

// Rename replaces oldID with newID after the server reassigned an id.
func (l *AnonymousLedger) Rename(ctx context.Context, oldID, newID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.ids(ctx)
	i := slices.Index(ids, oldID)
	if i < 0 {
		return
	}
	ids[i] = newID
	l.set(ctx, KeyAnonymousTaskIDs, ids)
}

// LimitShown reports whether the sign-in prompt for the quota was shown.
func (l *AnonymousLedger) LimitShown(ctx context.Context) bool {
	var shown bool
	if _, err := l.cache.Get(ctx, KeyLimitShown, &shown); err != nil {
		l.logger.Warn("failed to read limit flag", "error", err)
	}
	return shown
}

// MarkLimitShown records that the quota prompt was shown.
func (l *AnonymousLedger) MarkLimitShown(ctx context.Context) {
	l.set(ctx, KeyLimitShown, true)
}

// Clear drops all anonymous bookkeeping.
func (l *AnonymousLedger) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, key := range []string{KeyAnonymousCount, KeyLimitShown, KeyAnonymousTaskIDs} {
		if err := l.cache.Remove(ctx, key); err != nil {
			l.logger.Warn("failed to clear anonymous bookkeeping", "key", key, "error", err)
		}
	}
}

func (l *AnonymousLedger) count(ctx context.Context) int {
	var n int
	if _, err := l.cache.Get(ctx, KeyAnonymousCount, &n); err != nil {
		l.logger.Warn("failed to read anonymous task count", "error", err)
		return 0
	}
	return max(n, 0)
}

func (l *AnonymousLedger) ids(ctx context.Context) []string {
	var ids []string
	if _, err := l.cache.Get(ctx, KeyAnonymousTaskIDs, &ids); err != nil {
		l.logger.Warn("failed to read anonymous task ids", "error", err)
		return nil
	}
	return ids
}

func (l *AnonymousLedger) set(ctx context.Context, key string, value any) {
	if err := l.cache.Set(ctx, key, value); err != nil {
		l.logger.Warn("failed to write anonymous bookkeeping", "key", key, "error", err)
	}
}
