// Package persistence implements the task Gateway over the available
// backends: a SQL database, the on-device cache, or nothing at all.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/daytask/internal/shared/application"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

const taskColumns = `id, text, completed, priority, category, notes, owner_id, created_at, updated_at, version`

// ChangeSource delivers change events for one owner scope.
type ChangeSource interface {
	Subscribe(ctx context.Context, ownerID string, fn func(domain.ChangeEvent)) (domain.Subscription, error)
}

// SQLGateway is the remote task collection backed by SQLite or PostgreSQL.
// Every committed write is announced on the publisher, or recorded in the
// outbox in the same transaction when one is configured. Subscriptions are
// served by the change source.
type SQLGateway struct {
	conn      database.Connection
	uow       application.UnitOfWork
	publisher eventbus.Publisher
	outbox    outbox.Repository
	changes   ChangeSource
	logger    *slog.Logger
	now       func() time.Time
}

// GatewayOption configures a SQLGateway.
type GatewayOption func(*SQLGateway)

// WithOutbox records change events in repo instead of publishing them
// directly. An outbox processor relays them.
func WithOutbox(repo outbox.Repository) GatewayOption {
	return func(g *SQLGateway) {
		g.outbox = repo
	}
}

// NewSQLGateway creates a gateway on conn. A nil publisher disables change
// announcements and a nil change source makes Subscribe report
// ErrNotConfigured.
func NewSQLGateway(conn database.Connection, publisher eventbus.Publisher, changes ChangeSource, logger *slog.Logger, opts ...GatewayOption) *SQLGateway {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = eventbus.NewNoopPublisher(logger)
	}
	g := &SQLGateway{
		conn:      conn,
		uow:       database.NewUnitOfWork(conn),
		publisher: publisher,
		changes:   changes,
		logger:    logger.With("component", "task_gateway", "driver", conn.Driver()),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *SQLGateway) q(query string) string {
	return database.Rebind(g.conn.Driver(), query)
}

func (g *SQLGateway) ts(t time.Time) any {
	return database.TimeArg(g.conn.Driver(), t)
}

// List returns the owner's tasks newest first. An empty owner lists tasks
// without one.
func (g *SQLGateway) List(ctx context.Context, ownerID string) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id IS NULL ORDER BY created_at DESC, id`
	args := []any{}
	if ownerID != "" {
		query = `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = ? ORDER BY created_at DESC, id`
		args = append(args, ownerID)
	}

	rows, err := database.ExecutorFromContext(ctx, g.conn).Query(ctx, g.q(query), args...)
	if err != nil {
		return nil, wrapErr("list tasks", err)
	}
	tasks, err := database.CollectRows(rows, scanTask)
	if err != nil {
		return nil, wrapErr("list tasks", err)
	}
	return tasks, nil
}

// Create inserts t under ownerID and returns the stored row.
func (g *SQLGateway) Create(ctx context.Context, t domain.Task, ownerID string) (domain.Task, error) {
	if !domain.IsValidTask(t) {
		return domain.Task{}, fmt.Errorf("create task: %w", domain.ErrInvalidTask)
	}
	t = domain.Normalize(t)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = g.now()
	}

	var saved domain.Task
	err := g.write(ctx, "create task", func(ctx context.Context) ([]domain.ChangeEvent, error) {
		row := database.ExecutorFromContext(ctx, g.conn).QueryRow(ctx, g.q(
			`INSERT INTO tasks (id, text, completed, priority, category, notes, owner_id, created_at, updated_at, version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
			 RETURNING `+taskColumns),
			t.ID, t.Text, t.Completed, string(t.Priority), string(t.Category), t.Notes,
			nullable(ownerID), g.ts(t.CreatedAt), g.ts(t.UpdatedAt),
		)
		var err error
		saved, err = scanTask(row)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return nil, fmt.Errorf("create task %s: id already exists: %w", t.ID, domain.ErrPersistence)
			}
			return nil, wrapErr("create task", err)
		}
		return []domain.ChangeEvent{domain.NewUpsertEvent(domain.ChangeInsert, saved)}, nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return saved, nil
}

// Update merges fields into the stored row and bumps its version.
func (g *SQLGateway) Update(ctx context.Context, id string, fields domain.Fields) (domain.Task, error) {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if fields.Text != nil {
		text := strings.TrimSpace(*fields.Text)
		if text == "" {
			return domain.Task{}, fmt.Errorf("update task %s: %w", id, domain.ErrInvalidTask)
		}
		set("text", text)
	}
	if fields.Completed != nil {
		set("completed", *fields.Completed)
	}
	if fields.Priority != nil {
		set("priority", string(domain.PriorityOrDefault(string(*fields.Priority))))
	}
	if fields.Category != nil {
		set("category", string(domain.CategoryOrDefault(string(*fields.Category))))
	}
	if fields.Notes != nil {
		set("notes", *fields.Notes)
	}
	set("updated_at", g.ts(g.now()))
	args = append(args, id)

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + `, version = version + 1 WHERE id = ? RETURNING ` + taskColumns
	var saved domain.Task
	err := g.write(ctx, "update task", func(ctx context.Context) ([]domain.ChangeEvent, error) {
		var err error
		saved, err = scanTask(database.ExecutorFromContext(ctx, g.conn).QueryRow(ctx, g.q(query), args...))
		if err != nil {
			if database.IsNoRows(err) {
				return nil, fmt.Errorf("update task %s: %w", id, domain.ErrTaskNotFound)
			}
			return nil, wrapErr("update task", err)
		}
		return []domain.ChangeEvent{domain.NewUpsertEvent(domain.ChangeUpdate, saved)}, nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return saved, nil
}

// Delete removes the task. Unknown ids are not an error.
func (g *SQLGateway) Delete(ctx context.Context, id string) error {
	return g.write(ctx, "delete task", func(ctx context.Context) ([]domain.ChangeEvent, error) {
		var (
			owner   sql.NullString
			version int64
		)
		err := database.ExecutorFromContext(ctx, g.conn).
			QueryRow(ctx, g.q(`DELETE FROM tasks WHERE id = ? RETURNING owner_id, version`), id).
			Scan(&owner, &version)
		switch {
		case database.IsNoRows(err):
			g.logger.Debug("delete of unknown task", "task_id", id)
			return nil, nil
		case err != nil:
			return nil, wrapErr("delete task", err)
		}
		return []domain.ChangeEvent{domain.NewDeleteEvent(id, owner.String, version)}, nil
	})
}

// ReassignOwner gives the listed tasks that have no owner to ownerID, in
// one transaction.
func (g *SQLGateway) ReassignOwner(ctx context.Context, ids []string, ownerID string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if ownerID == "" {
		return 0, fmt.Errorf("reassign tasks: empty owner: %w", domain.ErrInvalidTask)
	}

	args := make([]any, 0, len(ids)+2)
	args = append(args, ownerID, g.ts(g.now()))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE tasks SET owner_id = ?, updated_at = ?, version = version + 1
		WHERE owner_id IS NULL AND id IN (` + database.Placeholders(len(ids)) + `)
		RETURNING ` + taskColumns

	var moved []domain.Task
	err := g.write(ctx, "reassign tasks", func(ctx context.Context) ([]domain.ChangeEvent, error) {
		rows, err := database.ExecutorFromContext(ctx, g.conn).Query(ctx, g.q(query), args...)
		if err != nil {
			return nil, wrapErr("reassign tasks", err)
		}
		moved, err = database.CollectRows(rows, scanTask)
		if err != nil {
			return nil, wrapErr("reassign tasks", err)
		}
		events := make([]domain.ChangeEvent, 0, len(moved))
		for _, t := range moved {
			events = append(events, domain.NewUpsertEvent(domain.ChangeUpdate, t))
		}
		return events, nil
	})
	if err != nil {
		return 0, err
	}
	g.logger.Info("reassigned anonymous tasks", "owner_id", ownerID, "requested", len(ids), "moved", len(moved))
	return len(moved), nil
}

// Subscribe delegates to the change source.
func (g *SQLGateway) Subscribe(ctx context.Context, ownerID string, fn func(domain.ChangeEvent)) (domain.Subscription, error) {
	if g.changes == nil {
		return nil, fmt.Errorf("subscribe: %w", domain.ErrNotConfigured)
	}
	return g.changes.Subscribe(ctx, ownerID, fn)
}

// write runs fn in a transaction. With an outbox, the returned events are
// stored in the same transaction; otherwise they are announced once it
// commits.
func (g *SQLGateway) write(ctx context.Context, op string, fn func(ctx context.Context) ([]domain.ChangeEvent, error)) error {
	var events []domain.ChangeEvent
	err := application.WithUnitOfWork(ctx, g.uow, func(ctx context.Context) error {
		var err error
		events, err = fn(ctx)
		if err != nil || g.outbox == nil {
			return err
		}
		for _, ev := range events {
			if err := g.record(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if classified(err) {
			return err
		}
		return wrapErr(op, err)
	}

	if g.outbox == nil {
		for _, ev := range events {
			g.announce(ctx, ev)
		}
	}
	return nil
}

func envelope(ev domain.ChangeEvent) (*eventbus.ConsumedEvent, error) {
	return eventbus.NewEvent(domain.AggregateType, ev.TaskID, ev.Kind.RoutingKey(), ev,
		eventbus.EventMetadata{OwnerID: ev.OwnerID})
}

func (g *SQLGateway) record(ctx context.Context, ev domain.ChangeEvent) error {
	env, err := envelope(ev)
	if err != nil {
		return err
	}
	msg, err := outbox.NewMessage(env)
	if err != nil {
		return err
	}
	return g.outbox.Save(ctx, msg)
}

// announce publishes a committed change. A failed publish is only logged.
func (g *SQLGateway) announce(ctx context.Context, ev domain.ChangeEvent) {
	env, err := envelope(ev)
	if err == nil {
		err = eventbus.PublishEvent(ctx, g.publisher, env)
	}
	if err != nil {
		g.logger.Warn("failed to announce task change", "kind", ev.Kind, "task_id", ev.TaskID, "error", err)
	}
}

func scanTask(row database.Row) (domain.Task, error) {
	var (
		t                    domain.Task
		priority, category   string
		owner                sql.NullString
		createdAt, updatedAt database.Time
	)
	if err := row.Scan(&t.ID, &t.Text, &t.Completed, &priority, &category, &t.Notes,
		&owner, &createdAt, &updatedAt, &t.Version); err != nil {
		return domain.Task{}, err
	}
	t.Priority = domain.Priority(priority)
	t.Category = domain.Category(category)
	t.OwnerID = owner.String
	t.CreatedAt = createdAt.Time
	t.UpdatedAt = updatedAt.Time
	return t, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func classified(err error) bool {
	return errors.Is(err, domain.ErrPersistence) || errors.Is(err, domain.ErrUnavailable) ||
		errors.Is(err, domain.ErrTaskNotFound) || errors.Is(err, domain.ErrInvalidTask)
}

// wrapErr classifies a driver error. Timeouts and cancellations mean the
// datastore could not be reached; everything else is a failed request.
func wrapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}
