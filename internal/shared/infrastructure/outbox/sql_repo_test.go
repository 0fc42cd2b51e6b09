package outbox_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/daytask/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/outbox"
)

func newSQLRepository(t *testing.T) (*outbox.SQLRepository, database.Connection) {
	t.Helper()
	ctx := context.Background()
	conn, err := database.NewConnection(ctx, database.SQLiteConfig(filepath.Join(t.TempDir(), "outbox.db")))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn))
	return outbox.NewSQLRepository(conn), conn
}

func TestSQLRepository_SaveAndGetUnpublished(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLRepository(t)

	first := createTestMessage(t, "tasks.task.inserted")
	second := createTestMessage(t, "tasks.task.updated")
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))
	assert.Positive(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	msgs, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.EventID, msgs[0].EventID)
	assert.Equal(t, "tasks.task.inserted", msgs[0].RoutingKey)
	assert.JSONEq(t, string(first.Payload), string(msgs[0].Payload))
	assert.Nil(t, msgs[0].PublishedAt)

	limited, err := repo.GetUnpublished(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLRepository_DuplicateEvent(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLRepository(t)

	msg := createTestMessage(t, "tasks.task.inserted")
	require.NoError(t, repo.Save(ctx, msg))

	dup := *msg
	err := repo.Save(ctx, &dup)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
}

func TestSQLRepository_MarkPublished(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLRepository(t)

	msg := createTestMessage(t, "tasks.task.inserted")
	require.NoError(t, repo.Save(ctx, msg))
	require.NoError(t, repo.MarkPublished(ctx, msg.ID))

	msgs, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSQLRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLRepository(t)

	later := createTestMessage(t, "tasks.task.inserted")
	due := createTestMessage(t, "tasks.task.updated")
	require.NoError(t, repo.Save(ctx, later))
	require.NoError(t, repo.Save(ctx, due))

	require.NoError(t, repo.MarkFailed(ctx, later.ID, "broker down", time.Now().Add(time.Hour)))
	require.NoError(t, repo.MarkFailed(ctx, due.ID, "broker down", time.Now().Add(-time.Second)))

	msgs, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, due.ID, msgs[0].ID)
	assert.Equal(t, 1, msgs[0].RetryCount)
	require.NotNil(t, msgs[0].LastError)
	assert.Equal(t, "broker down", *msgs[0].LastError)
	assert.NotNil(t, msgs[0].NextRetryAt)
}

func TestSQLRepository_MarkDead(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLRepository(t)

	msg := createTestMessage(t, "tasks.task.deleted")
	require.NoError(t, repo.Save(ctx, msg))
	require.NoError(t, repo.MarkDead(ctx, msg.ID, "too many retries"))

	msgs, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSQLRepository_DeleteOld(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLRepository(t)

	published := createTestMessage(t, "tasks.task.inserted")
	pending := createTestMessage(t, "tasks.task.updated")
	require.NoError(t, repo.Save(ctx, published))
	require.NoError(t, repo.Save(ctx, pending))
	require.NoError(t, repo.MarkPublished(ctx, published.ID))

	n, err := repo.DeleteOld(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	msgs, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, pending.ID, msgs[0].ID)
}

func TestSQLRepository_SaveJoinsTransaction(t *testing.T) {
	ctx := context.Background()
	repo, conn := newSQLRepository(t)
	uow := database.NewUnitOfWork(conn)

	txCtx, err := uow.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Save(txCtx, createTestMessage(t, "tasks.task.inserted")))
	require.NoError(t, uow.Rollback(txCtx))

	msgs, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSQLRepository_ProcessorRelay(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLRepository(t)
	publisher := newMockPublisher()
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil)

	require.NoError(t, repo.Save(ctx, createTestMessage(t, "tasks.task.inserted")))
	require.NoError(t, repo.Save(ctx, createTestMessage(t, "tasks.task.deleted")))
	publisher.failForKeys["tasks.task.deleted"] = true

	require.NoError(t, processor.ProcessOnce(ctx))
	assert.Equal(t, 1, publisher.PublishedCount())

	// the failed message waits for its retry
	msgs, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	stats := processor.GetStats()
	assert.EqualValues(t, 1, stats.PublishedCount)
	assert.EqualValues(t, 1, stats.FailedCount)
}
