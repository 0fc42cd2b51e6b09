package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

// TasksKey is the cache key holding the full task list in local-only mode.
const TasksKey = "dayTask_tasks"

// Cache is the slice of the local cache the local gateway needs.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

// LocalGateway keeps every task on the device. It has no real-time feed.
type LocalGateway struct {
	cache  Cache
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewLocalGateway creates a gateway storing tasks under TasksKey.
func NewLocalGateway(cache Cache, logger *slog.Logger) *LocalGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalGateway{
		cache:  cache,
		logger: logger.With("component", "local_task_gateway"),
		now:    time.Now,
	}
}

// read loads the stored list, skipping records that fail validation.
func (g *LocalGateway) read(ctx context.Context) ([]domain.Task, error) {
	var stored []domain.Task
	if _, err := g.cache.Get(ctx, TasksKey, &stored); err != nil {
		return nil, fmt.Errorf("read tasks: %w: %w", domain.ErrPersistence, err)
	}
	valid, dropped := domain.FilterValid(stored)
	if dropped > 0 {
		g.logger.Warn("skipping invalid stored tasks", "dropped", dropped)
	}
	return valid, nil
}

func (g *LocalGateway) write(ctx context.Context, tasks []domain.Task) error {
	if err := g.cache.Set(ctx, TasksKey, tasks); err != nil {
		return fmt.Errorf("write tasks: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// List returns the owner's tasks in stored order, newest first.
func (g *LocalGateway) List(ctx context.Context, ownerID string) ([]domain.Task, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	all, err := g.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(all))
	for _, t := range all {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Create prepends t to the stored list.
func (g *LocalGateway) Create(ctx context.Context, t domain.Task, ownerID string) (domain.Task, error) {
	if !domain.IsValidTask(t) {
		return domain.Task{}, fmt.Errorf("create task: %w", domain.ErrInvalidTask)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	all, err := g.read(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	if slices.ContainsFunc(all, func(x domain.Task) bool { return x.ID == t.ID }) {
		return domain.Task{}, fmt.Errorf("create task %s: id already exists: %w", t.ID, domain.ErrPersistence)
	}

	t = domain.Normalize(t)
	t.OwnerID = ownerID
	t.Version = 1
	if t.CreatedAt.IsZero() {
		t.CreatedAt = g.now().UTC()
	}
	if err := g.write(ctx, append([]domain.Task{t}, all...)); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// Update merges fields into the stored task.
func (g *LocalGateway) Update(ctx context.Context, id string, fields domain.Fields) (domain.Task, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	all, err := g.read(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	i := slices.IndexFunc(all, func(x domain.Task) bool { return x.ID == id })
	if i < 0 {
		return domain.Task{}, fmt.Errorf("update task %s: %w", id, domain.ErrTaskNotFound)
	}

	updated := all[i].Apply(fields, g.now())
	if !domain.IsValidTask(updated) {
		return domain.Task{}, fmt.Errorf("update task %s: %w", id, domain.ErrInvalidTask)
	}
	updated.Version++
	all[i] = updated
	if err := g.write(ctx, all); err != nil {
		return domain.Task{}, err
	}
	return updated, nil
}

// Delete removes the task. Unknown ids are not an error.
func (g *LocalGateway) Delete(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	all, err := g.read(ctx)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(all, func(x domain.Task) bool { return x.ID == id })
	return g.write(ctx, kept)
}

// ReassignOwner moves the listed tasks that have no owner to ownerID.
func (g *LocalGateway) ReassignOwner(ctx context.Context, ids []string, ownerID string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if ownerID == "" {
		return 0, fmt.Errorf("reassign tasks: empty owner: %w", domain.ErrInvalidTask)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	all, err := g.read(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	now := g.now().UTC()
	for i, t := range all {
		if t.IsAnonymous() && slices.Contains(ids, t.ID) {
			all[i].OwnerID = ownerID
			all[i].UpdatedAt = now
			all[i].Version++
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	if err := g.write(ctx, all); err != nil {
		return 0, err
	}
	return n, nil
}

// Subscribe reports ErrNotConfigured: nothing else writes the device store.
func (g *LocalGateway) Subscribe(context.Context, string, func(domain.ChangeEvent)) (domain.Subscription, error) {
	return nil, fmt.Errorf("subscribe: %w", domain.ErrNotConfigured)
}
