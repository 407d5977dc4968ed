package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"todoTracker/internal/logger"
	"todoTracker/internal/models/todo"
	repo "todoTracker/internal/repository"

	"go.uber.org/zap"
)

// TodoService owns the todo invariants: non-blank titles, known priorities,
// trimmed strings. Identifiers and timestamps come from the repository.
type TodoService struct {
	repo TodoRepository
}

func NewTodoService(repo TodoRepository) *TodoService {
	return &TodoService{
		repo: repo,
	}
}

func (s *TodoService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("repository health check: %w", err)
	}
	return nil
}

func (s *TodoService) ListAll(ctx context.Context) ([]*todo.Todo, error) {
	todos, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	if todos == nil {
		todos = []*todo.Todo{}
	}
	return todos, nil
}

func (s *TodoService) GetByID(ctx context.Context, id string) (*todo.Todo, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, nil)
	}
	return t, nil
}

func (s *TodoService) Create(ctx context.Context, title, description, priority string) (*todo.Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, NewValidationError("title", "Title is required")
	}

	p, ok := todo.ParsePriority(priority)
	if !ok {
		return nil, NewValidationError("priority", fmt.Sprintf("'%s' is not one of low, medium, high", priority))
	}

	t := &todo.Todo{
		Title:       title,
		Description: strings.TrimSpace(description),
		Completed:   false,
		Priority:    p,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}

	logger.Info("Service: todo created", zap.String("todo_id", t.ID))
	return t, nil
}

// UpdateByID merges the set fields of patch into the stored todo. An empty
// patch still refreshes updatedAt. expectedVersion, when non-nil, must match.
func (s *TodoService) UpdateByID(ctx context.Context, id string, patch todo.Patch, expectedVersion *int) (*todo.Todo, error) {
	patch = patch.Normalize()

	if title, ok := patch.Title.Get(); ok && title == "" {
		return nil, NewValidationError("title", "Title cannot be empty")
	}
	if p, ok := patch.Priority.Get(); ok && !p.Valid() {
		return nil, NewValidationError("priority", fmt.Sprintf("'%s' is not one of low, medium, high", p))
	}

	t, err := s.repo.Update(ctx, id, patch, expectedVersion)
	if err != nil {
		return nil, s.mapRepoError(err, id, expectedVersion)
	}

	logger.Info("Service: todo updated", zap.String("todo_id", id), zap.Int("version", t.Version))
	return t, nil
}

func (s *TodoService) DeleteByID(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapRepoError(err, id, nil)
	}
	logger.Info("Service: todo deleted", zap.String("todo_id", id))
	return nil
}

func (s *TodoService) mapRepoError(err error, id string, expectedVersion *int) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		logger.Info("Service: todo not found", zap.String("target_id", id))
		return NewNotFound(id, err)
	case errors.Is(err, repo.ErrVersionConflict):
		expected := 0
		if expectedVersion != nil {
			expected = *expectedVersion
		}
		return NewVersionConflict(id, expected, err)
	default:
		return fmt.Errorf("todo %s: %w", id, err)
	}
}
