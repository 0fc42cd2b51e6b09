package domain

import "context"

// Gateway is the remote task collection the synchronization core talks to.
//
// An empty ownerID scopes List and Subscribe to tasks without an owner.
// Implementations return errors wrapping the sentinels in this package so
// callers can classify them with KindOf.
type Gateway interface {
	List(ctx context.Context, ownerID string) ([]Task, error)
	// Create stores t and returns the canonical copy. The returned id may
	// differ from the client-generated one.
	Create(ctx context.Context, t Task, ownerID string) (Task, error)
	Update(ctx context.Context, id string, fields Fields) (Task, error)
	// Delete is idempotent: deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	// ReassignOwner moves tasks that currently have no owner to ownerID and
	// returns how many were moved. Tasks owned by anyone are left alone.
	ReassignOwner(ctx context.Context, ids []string, ownerID string) (int, error)
	Subscribe(ctx context.Context, ownerID string, fn func(ChangeEvent)) (Subscription, error)
}

// Subscription is a handle to an active real-time subscription.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}
