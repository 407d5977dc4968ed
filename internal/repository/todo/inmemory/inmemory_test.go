package inmemory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"todoTracker/internal/models/todo"
	"todoTracker/internal/repository"
	"todoTracker/internal/repository/todo/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock advances by one second on every call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func TestTodoStorage_HealthCheck(t *testing.T) {
	storage := inmemory.NewTodoStorage()
	assert.NoError(t, storage.HealthCheck(context.Background()))
}

func TestTodoStorage_Create(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTodoStorage()

	item := &todo.Todo{Title: "Buy milk", Priority: todo.PriorityMedium}
	require.NoError(t, storage.Create(ctx, item))

	assert.NotEmpty(t, item.ID)
	assert.False(t, item.CreatedAt.IsZero())
	assert.Equal(t, item.CreatedAt, item.UpdatedAt)
	assert.Equal(t, 1, item.Version)

	stored, err := storage.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item, stored)
}

func TestTodoStorage_GetByID_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTodoStorage()

	item := &todo.Todo{Title: "original"}
	require.NoError(t, storage.Create(ctx, item))

	got, err := storage.GetByID(ctx, item.ID)
	require.NoError(t, err)
	got.Title = "mutated"

	again, err := storage.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
}

func TestTodoStorage_GetByID_NotFound(t *testing.T) {
	storage := inmemory.NewTodoStorage()

	_, err := storage.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTodoStorage_List_NewestFirst(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTodoStorage().WithClock(stepClock(time.Now()))

	a := &todo.Todo{Title: "A"}
	b := &todo.Todo{Title: "B"}
	require.NoError(t, storage.Create(ctx, a))
	require.NoError(t, storage.Create(ctx, b))

	todos, err := storage.List(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 2)
	assert.Equal(t, b.ID, todos[0].ID)
	assert.Equal(t, a.ID, todos[1].ID)
}

func TestTodoStorage_List_SameMillisecond(t *testing.T) {
	ctx := context.Background()
	fixed := time.Now()
	storage := inmemory.NewTodoStorage().WithClock(func() time.Time { return fixed })

	a := &todo.Todo{Title: "A"}
	b := &todo.Todo{Title: "B"}
	require.NoError(t, storage.Create(ctx, a))
	require.NoError(t, storage.Create(ctx, b))

	todos, err := storage.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, []string{todos[0].ID, todos[1].ID})
}

func TestTodoStorage_List_Empty(t *testing.T) {
	todos, err := inmemory.NewTodoStorage().List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, todos)
	assert.Empty(t, todos)
}

func TestTodoStorage_Update(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTodoStorage().WithClock(stepClock(time.Now()))

	item := &todo.Todo{Title: "Title", Description: "desc", Priority: todo.PriorityLow}
	require.NoError(t, storage.Create(ctx, item))

	updated, err := storage.Update(ctx, item.ID, todo.Patch{Completed: todo.Some(true)}, nil)
	require.NoError(t, err)

	assert.True(t, updated.Completed)
	assert.Equal(t, "Title", updated.Title)
	assert.Equal(t, "desc", updated.Description)
	assert.Equal(t, todo.PriorityLow, updated.Priority)
	assert.Equal(t, item.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(item.UpdatedAt))
	assert.Equal(t, 2, updated.Version)
}

func TestTodoStorage_Update_StrictlyIncreasingWithFrozenClock(t *testing.T) {
	ctx := context.Background()
	fixed := time.Now()
	storage := inmemory.NewTodoStorage().WithClock(func() time.Time { return fixed })

	item := &todo.Todo{Title: "Title"}
	require.NoError(t, storage.Create(ctx, item))

	first, err := storage.Update(ctx, item.ID, todo.Patch{Completed: todo.Some(true)}, nil)
	require.NoError(t, err)
	second, err := storage.Update(ctx, item.ID, todo.Patch{Completed: todo.Some(false)}, nil)
	require.NoError(t, err)

	assert.True(t, first.UpdatedAt.After(item.UpdatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestTodoStorage_Update_Versioning(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTodoStorage()

	item := &todo.Todo{Title: "Title"}
	require.NoError(t, storage.Create(ctx, item))

	stale := 5
	_, err := storage.Update(ctx, item.ID, todo.Patch{Title: todo.Some("x")}, &stale)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	current := 1
	updated, err := storage.Update(ctx, item.ID, todo.Patch{Title: todo.Some("x")}, &current)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
}

func TestTodoStorage_Update_NonExistent(t *testing.T) {
	_, err := inmemory.NewTodoStorage().Update(context.Background(), "missing", todo.Patch{Completed: todo.Some(true)}, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTodoStorage_Delete(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTodoStorage()

	item := &todo.Todo{Title: "Title"}
	require.NoError(t, storage.Create(ctx, item))

	require.NoError(t, storage.Delete(ctx, item.ID))
	assert.Equal(t, 0, storage.Len())

	assert.ErrorIs(t, storage.Delete(ctx, item.ID), repository.ErrNotFound)
	_, err := storage.GetByID(ctx, item.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTodoStorage_Delete_NotFoundKeepsSize(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTodoStorage()
	require.NoError(t, storage.Create(ctx, &todo.Todo{Title: "Title"}))

	assert.ErrorIs(t, storage.Delete(ctx, "missing"), repository.ErrNotFound)
	assert.Equal(t, 1, storage.Len())
}

func TestTodoStorage_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewTodoStorage()
	todoCount := 100
	goroutines := 10

	var wg sync.WaitGroup
	errs := make(chan error, todoCount)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := 0; j < todoCount/goroutines; j++ {
				item := &todo.Todo{Title: fmt.Sprintf("Todo %d-%d", workerID, j)}
				if err := storage.Create(ctx, item); err != nil {
					errs <- err
					continue
				}
				if _, err := storage.Update(ctx, item.ID, todo.Patch{Completed: todo.Some(true)}, nil); err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	todos, err := storage.List(ctx)
	require.NoError(t, err)
	assert.Len(t, todos, todoCount)
	for _, item := range todos {
		assert.True(t, item.Completed)
		assert.Equal(t, 2, item.Version)
	}
}
