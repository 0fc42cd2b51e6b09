// Package resilience protects remote task gateways with a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// MaxRequests is the number of requests allowed in half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state.
	Interval time.Duration

	// Timeout is the period of the open state.
	Timeout time.Duration

	// FailureThreshold trips the breaker after this many consecutive failures.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns the default configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerGateway wraps a Gateway so that a run of infrastructure failures
// short-circuits further calls with ErrUnavailable until the breaker's
// timeout elapses.
type BreakerGateway struct {
	next    domain.Gateway
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewBreakerGateway wraps next.
func NewBreakerGateway(next domain.Gateway, cfg BreakerConfig, logger *slog.Logger) *BreakerGateway {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultBreakerConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaults.MaxRequests
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	logger = logger.With("component", "gateway_breaker")

	settings := gobreaker.Settings{
		Name:        "task-gateway",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// Only infrastructure failures count against the breaker.
		IsSuccessful: func(err error) bool {
			switch domain.KindOf(err) {
			case domain.KindPersistence, domain.KindUnavailable:
				return false
			default:
				return true
			}
		},
	}

	return &BreakerGateway{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

// State reports the breaker state ("closed", "half-open" or "open").
func (g *BreakerGateway) State() string {
	return g.breaker.State().String()
}

func (g *BreakerGateway) execute(op string, fn func() (any, error)) (any, error) {
	result, err := g.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.logger.Debug("short-circuited gateway call", "op", op)
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrUnavailable, err)
	}
	return result, err
}

func (g *BreakerGateway) List(ctx context.Context, ownerID string) ([]domain.Task, error) {
	res, err := g.execute("list tasks", func() (any, error) {
		return g.next.List(ctx, ownerID)
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.Task), nil
}

func (g *BreakerGateway) Create(ctx context.Context, t domain.Task, ownerID string) (domain.Task, error) {
	res, err := g.execute("create task", func() (any, error) {
		return g.next.Create(ctx, t, ownerID)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return res.(domain.Task), nil
}

func (g *BreakerGateway) Update(ctx context.Context, id string, fields domain.Fields) (domain.Task, error) {
	res, err := g.execute("update task", func() (any, error) {
		return g.next.Update(ctx, id, fields)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return res.(domain.Task), nil
}

func (g *BreakerGateway) Delete(ctx context.Context, id string) error {
	_, err := g.execute("delete task", func() (any, error) {
		return nil, g.next.Delete(ctx, id)
	})
	return err
}

func (g *BreakerGateway) ReassignOwner(ctx context.Context, ids []string, ownerID string) (int, error) {
	res, err := g.execute("reassign owner", func() (any, error) {
		return g.next.ReassignOwner(ctx, ids, ownerID)
	})
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

// Subscribe is passed through; subscriptions are long-lived and do not
// count against the breaker.
func (g *BreakerGateway) Subscribe(ctx context.Context, ownerID string, fn func(domain.ChangeEvent)) (domain.Subscription, error) {
	return g.next.Subscribe(ctx, ownerID, fn)
}

var _ domain.Gateway = (*BreakerGateway)(nil)
