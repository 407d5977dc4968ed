package service

import (
	"context"

	"todoTracker/internal/models/todo"
)

type TodoRepository interface {
	HealthCheck(ctx context.Context) error
	Create(ctx context.Context, t *todo.Todo) error
	GetByID(ctx context.Context, id string) (*todo.Todo, error)
	List(ctx context.Context) ([]*todo.Todo, error)
	Update(ctx context.Context, id string, patch todo.Patch, expectedVersion *int) (*todo.Todo, error)
	Delete(ctx context.Context, id string) error
}
