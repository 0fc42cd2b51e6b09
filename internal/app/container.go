// Package app wires the daytask components together according to the
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/daytask/internal/identity/application/auth"
	"github.com/felixgeelhaar/daytask/internal/identity/domain"
	identityPersistence "github.com/felixgeelhaar/daytask/internal/identity/infrastructure/persistence"
	"github.com/felixgeelhaar/daytask/internal/localcache"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/daytask/internal/shared/infrastructure/database/postgres"
	_ "github.com/felixgeelhaar/daytask/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/security"
	"github.com/felixgeelhaar/daytask/internal/tasks/application/tasksync"
	taskDomain "github.com/felixgeelhaar/daytask/internal/tasks/domain"
	taskPersistence "github.com/felixgeelhaar/daytask/internal/tasks/infrastructure/persistence"
	"github.com/felixgeelhaar/daytask/internal/tasks/infrastructure/realtime"
	"github.com/felixgeelhaar/daytask/pkg/config"
	"github.com/felixgeelhaar/daytask/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Datastore (SQLite or PostgreSQL); nil when it could not be opened.
	DB database.Connection

	// Device store
	CacheDB     database.Connection
	RedisClient *redis.Client
	Cache       *localcache.Gateway

	// Real-time
	EventBus       *eventbus.InProcessEventBus
	EventPublisher eventbus.Publisher
	EventConsumer  *eventbus.RabbitMQConsumer
	Hub            *realtime.Hub
	PostgresFeed   *realtime.PostgresFeed

	// Outbox; nil unless enabled on a SQLite datastore.
	Outbox          outbox.Repository
	OutboxProcessor *outbox.Processor

	// Tasks
	Gateway taskDomain.Gateway
	Ledger  *tasksync.AnonymousLedger

	// Identity
	Provider      domain.Provider
	LocalAccounts *identityPersistence.LocalProvider
	Sessions      *identityPersistence.SessionVault
	Auth          *auth.Service

	Health *observability.HealthRegistry

	// Notices receives out-of-band messages such as locally issued reset tokens.
	Notices io.Writer

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option customizes a container.
type Option func(*Container)

// WithNotices sets where out-of-band notices are written (default stderr).
func WithNotices(w io.Writer) Option {
	return func(c *Container) { c.Notices = w }
}

// WithCacheBackend replaces the device store backend.
func WithCacheBackend(b localcache.Backend) Option {
	return func(c *Container) { c.Cache = localcache.New(b, c.Logger) }
}

// NewContainer opens the configured backends and wires the components.
// Infrastructure that cannot be reached is replaced by its offline
// counterpart so the CLI keeps working; configuration errors are returned.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Notices: os.Stderr,
		Health:  observability.NewHealthRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}

	background, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	c.openDatastore(ctx)

	if c.Cache == nil {
		c.openCache(ctx)
	}
	c.Health.Register("local_storage", observability.LocalStoreHealthChecker(c.Cache.IsAvailable))

	c.initRealtime(background)

	c.initOutbox(background)

	factory := NewRepositoryFactory(cfg, c.DB, logger)

	var gatewayOpts []taskPersistence.GatewayOption
	if c.Outbox != nil {
		gatewayOpts = append(gatewayOpts, taskPersistence.WithOutbox(c.Outbox))
	}
	gateway, err := factory.TaskGateway(c.Cache, c.EventPublisher, c.Hub, gatewayOpts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Gateway = gateway
	c.Ledger = tasksync.NewAnonymousLedger(c.Cache, logger)

	provider, local, err := factory.IdentityProvider(c.Notices)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Provider = provider
	c.LocalAccounts = local

	var sealer crypto.Sealer
	if cfg.SessionKey != "" {
		aes, err := crypto.NewAESGCMFromBase64Key(cfg.SessionKey)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("DAYTASK_SESSION_KEY: %w", err)
		}
		sealer = aes
	}
	c.Sessions = identityPersistence.NewSessionVault(c.Cache, sealer, logger)
	c.Auth = auth.NewService(provider, c.Sessions, logger)

	logger.Debug("container initialized",
		"backend", cfg.Backend,
		"auth_provider", cfg.AuthProvider,
		"datastore", c.DB != nil,
	)
	return c, nil
}

// openDatastore connects to the task datastore and applies migrations. A
// datastore that cannot be opened is logged and left nil.
func (c *Container) openDatastore(ctx context.Context) {
	needed := c.Config.Backend != config.BackendLocal || c.Config.AuthProvider == config.AuthLocal
	if !needed {
		return
	}

	sqlitePath := c.Config.SQLitePath
	if !c.Config.UsesPostgres() {
		path, err := security.ValidateDataPath(sqlitePath)
		if err != nil {
			c.Logger.Error("invalid DAYTASK_SQLITE_PATH", "error", err)
			return
		}
		sqlitePath = path
	}

	conn, err := database.NewConnection(ctx, database.Config{
		URL:        c.Config.DatabaseURL,
		SQLitePath: sqlitePath,
	})
	if err != nil {
		c.Logger.Error("failed to open datastore", "error", err)
		return
	}
	if err := migrations.Run(ctx, conn); err != nil {
		c.Logger.Error("failed to run migrations", "error", err)
		_ = conn.Close()
		return
	}

	c.DB = conn
	c.Health.Register("database", observability.DatabaseHealthChecker(conn.Ping))
	c.Logger.Debug("datastore connected", "driver", conn.Driver())
}

// openCache selects the device store: Redis when configured, otherwise a
// SQLite key-value table, falling back to process memory.
func (c *Container) openCache(ctx context.Context) {
	if c.Config.RedisURL != "" {
		client, err := connectRedis(ctx, c.Config.RedisURL)
		if err == nil {
			c.RedisClient = client
			c.Cache = localcache.New(localcache.NewRedisBackend(client, localcache.DefaultNamespace), c.Logger)
			c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}))
			return
		}
		c.Logger.Warn("failed to connect to Redis, using the local device store", "error", err)
	}

	cachePath, err := security.ValidateDataPath(c.Config.CachePath)
	var conn database.Connection
	if err == nil {
		conn, err = database.NewConnection(ctx, database.SQLiteConfig(cachePath))
	}
	if err == nil {
		err = migrations.Run(ctx, conn)
		if err != nil {
			_ = conn.Close()
		}
	}
	if err != nil {
		c.Logger.Warn("local storage unavailable, nothing will persist across runs", "error", err)
		c.Cache = localcache.New(localcache.NewMemoryBackend(), c.Logger)
		return
	}
	c.CacheDB = conn
	c.Cache = localcache.New(localcache.NewSQLBackend(conn), c.Logger)
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// initRealtime builds the hub and the path change events take to it.
//
//   - PostgreSQL: the database NOTIFYs every committed change; the feed
//     pushes it into the hub and the gateway does not publish.
//   - RabbitMQ configured: the gateway publishes to the exchange and a
//     per-process queue feeds the hub, so other processes see changes too.
//   - Otherwise: the gateway publishes to the in-process bus.
func (c *Container) initRealtime(ctx context.Context) {
	c.Hub = realtime.NewHub(c.Logger)
	if c.DB == nil || c.Config.Backend == config.BackendLocal {
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		return
	}

	if c.DB.Driver() == database.DriverPostgres {
		feed, err := realtime.NewPostgresFeed(c.Config.DatabaseURL, c.Hub, c.Logger)
		if err != nil {
			c.Logger.Warn("real-time updates disabled", "error", err)
		} else {
			c.PostgresFeed = feed
			c.goRun("postgres feed", func() error { return feed.Run(ctx) })
		}
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		return
	}

	if c.Config.RabbitMQURL != "" {
		err := c.initRabbitMQ(ctx)
		if err == nil {
			return
		}
		c.Logger.Warn("failed to connect to RabbitMQ, using in-process events", "error", err)
	}

	c.EventBus = eventbus.NewInProcessEventBus(c.Logger)
	c.EventBus.RegisterConsumer(c.Hub)
	c.EventPublisher = c.EventBus
}

func (c *Container) initRabbitMQ(ctx context.Context) error {
	publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
	if err != nil {
		return err
	}
	consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
		URL:    c.Config.RabbitMQURL,
		Logger: c.Logger,
	}, nil)
	if err != nil {
		_ = publisher.Close()
		return err
	}
	consumer.RegisterConsumer(c.Hub)

	c.EventPublisher = publisher
	c.EventConsumer = consumer
	c.Health.Register("rabbitmq", observability.RabbitMQHealthChecker(func(context.Context) error {
		if publisher.IsClosed() {
			return errors.New("connection closed")
		}
		return nil
	}))
	c.goRun("rabbitmq consumer", func() error { return consumer.Start(ctx) })
	return nil
}

// outboxRetention is how long published outbox rows are kept.
const outboxRetention = 7 * 24 * time.Hour

// initOutbox starts relaying change events through the outbox table. The
// PostgreSQL feed already reads committed changes from the database, so the
// outbox only applies to SQLite.
func (c *Container) initOutbox(ctx context.Context) {
	if !c.Config.OutboxEnabled || c.DB == nil || c.Config.Backend == config.BackendLocal ||
		c.DB.Driver() == database.DriverPostgres {
		return
	}

	pcfg := outbox.DefaultProcessorConfig()
	if c.Config.OutboxPollInterval > 0 {
		pcfg.PollInterval = c.Config.OutboxPollInterval
	}
	repo := outbox.NewSQLRepository(c.DB)
	processor := outbox.NewProcessor(repo, c.EventPublisher, pcfg, c.Logger)
	if err := processor.Start(ctx); err != nil {
		c.Logger.Warn("outbox disabled", "error", err)
		return
	}

	c.Outbox = repo
	c.OutboxProcessor = processor
	c.Health.Register("outbox", observability.OutboxHealthChecker(func() time.Duration {
		return time.Duration(processor.GetStats().LagSeconds * float64(time.Second))
	}, time.Minute))
	c.goRun("outbox cleanup", func() error {
		n, err := processor.Cleanup(ctx, outboxRetention)
		if n > 0 {
			c.Logger.Debug("removed published outbox messages", "count", n)
		}
		return err
	})
}

func (c *Container) goRun(name string, run func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := run(); err != nil && !errors.Is(err, context.Canceled) {
			c.Logger.Warn("background worker stopped", "worker", name, "error", err)
		}
	}()
}

// NewStore creates a task store on the container's gateway.
func (c *Container) NewStore(opts ...tasksync.Option) *tasksync.Store {
	opts = append([]tasksync.Option{tasksync.WithAnonymousLimit(c.Config.AnonymousLimit)}, opts...)
	return tasksync.NewStore(c.Gateway, c.Ledger, c.Logger, opts...)
}

// StartStore creates a store, starts it with the current session's identity
// and keeps it following session changes. The returned stop function
// detaches from the auth service and closes the store.
func (c *Container) StartStore(ctx context.Context, opts ...tasksync.Option) (*tasksync.Store, func(), error) {
	store := c.NewStore(opts...)

	ownerID := ""
	if user, err := c.Auth.CurrentUser(ctx); err == nil && user != nil {
		ownerID = user.ID
	}

	cancel := c.Auth.OnSessionChange(func(change domain.SessionChange) {
		if err := store.SetIdentity(ctx, change.OwnerID()); err != nil && !errors.Is(err, tasksync.ErrStoreClosed) {
			c.Logger.Warn("failed to switch task identity", "change", change.Kind, "error", err)
		}
	})

	if err := store.Start(ctx, ownerID); err != nil {
		cancel()
		_ = store.Close()
		return nil, nil, err
	}

	stop := func() {
		cancel()
		_ = store.Close()
	}
	return store, stop, nil
}

// Close releases all resources. It is safe to call more than once.
func (c *Container) Close() {
	c.closeOnce.Do(c.close)
}

func (c *Container) close() {
	if c.cancel != nil {
		c.cancel()
	}

	if c.PostgresFeed != nil {
		if err := c.PostgresFeed.Close(); err != nil {
			c.Logger.Warn("error closing postgres feed", "error", err)
		}
	}

	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}

	if c.EventConsumer != nil {
		if err := c.EventConsumer.Close(); err != nil {
			c.Logger.Warn("error closing event consumer", "error", err)
		}
	}

	c.wg.Wait()

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		}
	}

	if c.CacheDB != nil {
		if err := c.CacheDB.Close(); err != nil {
			c.Logger.Warn("error closing device store", "error", err)
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("error closing datastore", "error", err)
		}
	}
}
