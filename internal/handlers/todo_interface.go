package handlers

import (
	"context"

	"todoTracker/internal/models/todo"
)

type Service interface {
	HealthCheck(ctx context.Context) error
	ListAll(ctx context.Context) ([]*todo.Todo, error)
	GetByID(ctx context.Context, id string) (*todo.Todo, error)
	Create(ctx context.Context, title, description, priority string) (*todo.Todo, error)
	UpdateByID(ctx context.Context, id string, patch todo.Patch, expectedVersion *int) (*todo.Todo, error)
	DeleteByID(ctx context.Context, id string) error
}

// ReadinessProbe reports the last known state of the store.
type ReadinessProbe interface {
	Ready() error
}
