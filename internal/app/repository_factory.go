package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/felixgeelhaar/daytask/internal/identity/domain"
	"github.com/felixgeelhaar/daytask/internal/identity/infrastructure/oauth"
	identityPersistence "github.com/felixgeelhaar/daytask/internal/identity/infrastructure/persistence"
	"github.com/felixgeelhaar/daytask/internal/localcache"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/daytask/internal/shared/infrastructure/eventbus"
	taskDomain "github.com/felixgeelhaar/daytask/internal/tasks/domain"
	taskPersistence "github.com/felixgeelhaar/daytask/internal/tasks/infrastructure/persistence"
	"github.com/felixgeelhaar/daytask/internal/tasks/infrastructure/resilience"
	"github.com/felixgeelhaar/daytask/pkg/config"
)

// RepositoryFactory creates gateways and providers based on configuration
// and the datastore driver.
type RepositoryFactory struct {
	cfg    *config.Config
	conn   database.Connection
	logger *slog.Logger
}

// NewRepositoryFactory creates a new repository factory. conn may be nil
// when no datastore is open.
func NewRepositoryFactory(cfg *config.Config, conn database.Connection, logger *slog.Logger) *RepositoryFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepositoryFactory{cfg: cfg, conn: conn, logger: logger}
}

// TaskGateway creates the task gateway for the configured backend. The
// remote gateway is wrapped in a circuit breaker; opts apply to it only.
func (f *RepositoryFactory) TaskGateway(cache *localcache.Gateway, publisher eventbus.Publisher, changes taskPersistence.ChangeSource, opts ...taskPersistence.GatewayOption) (taskDomain.Gateway, error) {
	switch f.cfg.Backend {
	case config.BackendLocal:
		if cache == nil {
			return nil, fmt.Errorf("local backend requires the device store")
		}
		return taskPersistence.NewLocalGateway(cache, f.logger), nil

	case config.BackendRemote, "":
		if f.conn == nil {
			f.logger.Warn("no datastore available, tasks are read-only and unsynced")
			return taskPersistence.OfflineGateway{}, nil
		}
		sqlGateway := taskPersistence.NewSQLGateway(f.conn, publisher, changes, f.logger, opts...)
		return resilience.NewBreakerGateway(sqlGateway, f.breakerConfig(), f.logger), nil

	default:
		return nil, fmt.Errorf("unsupported backend: %s", f.cfg.Backend)
	}
}

func (f *RepositoryFactory) breakerConfig() resilience.BreakerConfig {
	cfg := resilience.DefaultBreakerConfig()
	if f.cfg.BreakerFailures > 0 {
		cfg.FailureThreshold = convert.IntToUint32Clamped(f.cfg.BreakerFailures)
	}
	if f.cfg.BreakerTimeout > 0 {
		cfg.Timeout = f.cfg.BreakerTimeout
	}
	return cfg
}

// IdentityProvider creates the configured identity provider. The second
// return value is set only for the local provider, which can also confirm
// password resets. Reset tokens issued locally are written to notices.
func (f *RepositoryFactory) IdentityProvider(notices io.Writer) (domain.Provider, *identityPersistence.LocalProvider, error) {
	switch f.cfg.AuthProvider {
	case config.AuthLocal, "":
		if f.conn == nil {
			f.logger.Warn("no datastore available, sign in is disabled")
			return domain.OfflineProvider{}, nil, nil
		}
		local := identityPersistence.NewLocalProvider(f.conn, identityPersistence.WriterNotifier{W: notices}, f.logger)
		return local, local, nil

	case config.AuthOAuth:
		p, err := oauth.NewProvider(oauth.Config{
			BaseURL:      f.cfg.AuthURL,
			TokenURL:     f.cfg.AuthTokenURL,
			ClientID:     f.cfg.AuthClientID,
			ClientSecret: f.cfg.AuthClientSecret,
		}, f.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create oauth provider: %w", err)
		}
		return p, nil, nil

	case config.AuthNone:
		return domain.OfflineProvider{}, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported auth provider: %s", f.cfg.AuthProvider)
	}
}
