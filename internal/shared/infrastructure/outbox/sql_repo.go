package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/database"
)

const messageColumns = `id, event_id, routing_key, payload, created_at, published_at, next_retry_at,
	retry_count, last_error, dead_lettered_at, dead_letter_reason`

// SQLRepository implements Repository on SQLite or PostgreSQL.
type SQLRepository struct {
	conn database.Connection
	now  func() time.Time
}

// NewSQLRepository creates an outbox repository on conn.
func NewSQLRepository(conn database.Connection) *SQLRepository {
	return &SQLRepository{conn: conn, now: time.Now}
}

func (r *SQLRepository) q(query string) string {
	return database.Rebind(r.conn.Driver(), query)
}

func (r *SQLRepository) ts(t time.Time) any {
	return database.TimeArg(r.conn.Driver(), t)
}

// Save stores a new outbox message.
func (r *SQLRepository) Save(ctx context.Context, msg *Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now()
	}
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, r.q(
		`INSERT INTO outbox (event_id, routing_key, payload, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		msg.EventID.String(), msg.RoutingKey, string(msg.Payload), r.ts(msg.CreatedAt),
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("save outbox message: %w", err)
	}
	return nil
}

// GetUnpublished retrieves messages that are due for publishing, oldest first.
func (r *SQLRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, r.q(
		`SELECT `+messageColumns+` FROM outbox
		 WHERE published_at IS NULL AND dead_lettered_at IS NULL
		   AND (next_retry_at IS NULL OR next_retry_at <= ?)
		 ORDER BY id
		 LIMIT ?`),
		r.ts(r.now()), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get unpublished outbox messages: %w", err)
	}
	msgs, err := database.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("get unpublished outbox messages: %w", err)
	}
	return msgs, nil
}

// MarkPublished marks a message as successfully published.
func (r *SQLRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		r.q(`UPDATE outbox SET published_at = ? WHERE id = ?`), r.ts(r.now()), id)
	return err
}

// MarkFailed records a publish failure and when to try again.
func (r *SQLRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		r.q(`UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ? WHERE id = ?`),
		errMsg, r.ts(nextRetryAt), id)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *SQLRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		r.q(`UPDATE outbox SET retry_count = retry_count + 1, dead_lettered_at = ?, dead_letter_reason = ? WHERE id = ?`),
		r.ts(r.now()), reason, id)
	return err
}

// DeleteOld removes published messages created before cutoff.
func (r *SQLRepository) DeleteOld(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		r.q(`DELETE FROM outbox WHERE published_at IS NOT NULL AND created_at < ?`), r.ts(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanMessage(row database.Row) (*Message, error) {
	var (
		msg                            Message
		eventID, payload               string
		createdAt                      database.Time
		publishedAt, nextRetry, deadAt database.Time
		lastError, deadReason          sql.NullString
	)
	if err := row.Scan(&msg.ID, &eventID, &msg.RoutingKey, &payload, &createdAt, &publishedAt,
		&nextRetry, &msg.RetryCount, &lastError, &deadAt, &deadReason); err != nil {
		return nil, err
	}

	msg.EventID, _ = uuid.Parse(eventID)
	msg.Payload = []byte(payload)
	msg.CreatedAt = createdAt.Time
	msg.PublishedAt = optionalTime(publishedAt)
	msg.NextRetryAt = optionalTime(nextRetry)
	msg.DeadLetteredAt = optionalTime(deadAt)
	if lastError.Valid {
		msg.LastError = &lastError.String
	}
	if deadReason.Valid {
		msg.DeadLetterReason = &deadReason.String
	}
	return &msg, nil
}

func optionalTime(t database.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}
