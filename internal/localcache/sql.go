package localcache

import (
	"context"
	"time"

	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/database"
)

// SQLBackend stores values in the local_cache table.
type SQLBackend struct {
	conn database.Connection
}

// NewSQLBackend creates a backend on a migrated connection.
func NewSQLBackend(conn database.Connection) *SQLBackend {
	return &SQLBackend{conn: conn}
}

func (b *SQLBackend) q(query string) string {
	return database.Rebind(b.conn.Driver(), query)
}

func (b *SQLBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := b.conn.QueryRow(ctx, b.q(`SELECT value FROM local_cache WHERE key = ?`), key).Scan(&value)
	if database.IsNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (b *SQLBackend) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.conn.Exec(ctx, b.q(`
		INSERT INTO local_cache (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		key, string(value), database.TimeArg(b.conn.Driver(), time.Now()),
	)
	return err
}

func (b *SQLBackend) Delete(ctx context.Context, key string) error {
	_, err := b.conn.Exec(ctx, b.q(`DELETE FROM local_cache WHERE key = ?`), key)
	return err
}
