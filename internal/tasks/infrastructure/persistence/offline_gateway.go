package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/daytask/internal/tasks/domain"
)

// OfflineGateway stands in when no datastore is configured. Every call
// reports ErrNotConfigured, which the store treats as "keep the local copy".
type OfflineGateway struct{}

func notConfigured(op string) error {
	return fmt.Errorf("%s: %w", op, domain.ErrNotConfigured)
}

func (OfflineGateway) List(context.Context, string) ([]domain.Task, error) {
	return nil, notConfigured("list tasks")
}

func (OfflineGateway) Create(context.Context, domain.Task, string) (domain.Task, error) {
	return domain.Task{}, notConfigured("create task")
}

func (OfflineGateway) Update(context.Context, string, domain.Fields) (domain.Task, error) {
	return domain.Task{}, notConfigured("update task")
}

func (OfflineGateway) Delete(context.Context, string) error {
	return notConfigured("delete task")
}

func (OfflineGateway) ReassignOwner(context.Context, []string, string) (int, error) {
	return 0, notConfigured("reassign tasks")
}

func (OfflineGateway) Subscribe(context.Context, string, func(domain.ChangeEvent)) (domain.Subscription, error) {
	return nil, notConfigured("subscribe")
}

var (
	_ domain.Gateway = OfflineGateway{}
	_ domain.Gateway = (*LocalGateway)(nil)
	_ domain.Gateway = (*SQLGateway)(nil)
)
