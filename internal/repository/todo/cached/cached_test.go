package cached_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"todoTracker/internal/models/todo"
	"todoTracker/internal/repository"
	"todoTracker/internal/repository/todo/cached"
	"todoTracker/internal/repository/todo/inmemory"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis integration tests in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestStorage_CacheAside(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	backend := inmemory.NewTodoStorage()
	storage := cached.New(backend, client, "test:", time.Minute)
	t.Cleanup(func() { _ = storage.Close() })

	item := &todo.Todo{Title: "Buy milk", Priority: todo.PriorityMedium}
	require.NoError(t, storage.Create(ctx, item))

	t.Run("get by id fills then hits", func(t *testing.T) {
		first, err := storage.GetByID(ctx, item.ID)
		require.NoError(t, err)
		second, err := storage.GetByID(ctx, item.ID)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, item, second)
		stats := storage.Stats()
		assert.Equal(t, uint64(1), stats.Misses)
		assert.Equal(t, uint64(1), stats.Hits)
	})

	t.Run("update invalidates", func(t *testing.T) {
		updated, err := storage.Update(ctx, item.ID, todo.Patch{Completed: todo.Some(true)}, nil)
		require.NoError(t, err)

		got, err := storage.GetByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
		assert.True(t, got.Completed)
	})

	t.Run("list reflects creates and deletes", func(t *testing.T) {
		todos, err := storage.List(ctx)
		require.NoError(t, err)
		require.Len(t, todos, 1)

		other := &todo.Todo{Title: "Second"}
		require.NoError(t, storage.Create(ctx, other))
		todos, err = storage.List(ctx)
		require.NoError(t, err)
		assert.Len(t, todos, 2)

		require.NoError(t, storage.Delete(ctx, other.ID))
		todos, err = storage.List(ctx)
		require.NoError(t, err)
		assert.Len(t, todos, 1)
	})

	t.Run("not found is not cached", func(t *testing.T) {
		require.NoError(t, storage.Delete(ctx, item.ID))
		_, err := storage.GetByID(ctx, item.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

// slowStore holds a read after it has hit the store, so a write can land
// before the read result reaches the cache.
type slowStore struct {
	*inmemory.TodoStorage
	hold   atomic.Bool
	read   chan struct{}
	resume chan struct{}
}

func newSlowStore() *slowStore {
	return &slowStore{
		TodoStorage: inmemory.NewTodoStorage(),
		read:        make(chan struct{}),
		resume:      make(chan struct{}),
	}
}

func (s *slowStore) pause() {
	if s.hold.CompareAndSwap(true, false) {
		s.read <- struct{}{}
		<-s.resume
	}
}

func (s *slowStore) List(ctx context.Context) ([]*todo.Todo, error) {
	todos, err := s.TodoStorage.List(ctx)
	s.pause()
	return todos, err
}

func (s *slowStore) GetByID(ctx context.Context, id string) (*todo.Todo, error) {
	t, err := s.TodoStorage.GetByID(ctx, id)
	s.pause()
	return t, err
}

func TestStorage_SlowFillDoesNotOverwriteMutation(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		backend := newSlowStore()
		storage := cached.New(backend, client, "slow-list:", time.Minute)

		backend.hold.Store(true)
		done := make(chan []*todo.Todo, 1)
		go func() {
			todos, err := storage.List(ctx)
			assert.NoError(t, err)
			done <- todos
		}()

		<-backend.read
		require.NoError(t, storage.Create(ctx, &todo.Todo{Title: "Buy milk"}))
		close(backend.resume)
		assert.Empty(t, <-done)

		todos, err := storage.List(ctx)
		require.NoError(t, err)
		assert.Len(t, todos, 1)
		assert.Equal(t, uint64(1), storage.Stats().Skipped)
	})

	t.Run("get by id", func(t *testing.T) {
		backend := newSlowStore()
		storage := cached.New(backend, client, "slow-get:", time.Minute)

		item := &todo.Todo{Title: "Buy milk"}
		require.NoError(t, storage.Create(ctx, item))

		backend.hold.Store(true)
		done := make(chan *todo.Todo, 1)
		go func() {
			got, err := storage.GetByID(ctx, item.ID)
			assert.NoError(t, err)
			done <- got
		}()

		<-backend.read
		_, err := storage.Update(ctx, item.ID, todo.Patch{Completed: todo.Some(true)}, nil)
		require.NoError(t, err)
		close(backend.resume)
		assert.False(t, (<-done).Completed)

		got, err := storage.GetByID(ctx, item.ID)
		require.NoError(t, err)
		assert.True(t, got.Completed)
	})
}

func TestStorage_RedisDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})

	backend := inmemory.NewTodoStorage()
	storage := cached.New(backend, client, "test:", time.Minute)
	t.Cleanup(func() { _ = storage.Close() })

	item := &todo.Todo{Title: "Buy milk"}
	require.NoError(t, storage.Create(ctx, item))

	got, err := storage.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	todos, err := storage.List(ctx)
	require.NoError(t, err)
	assert.Len(t, todos, 1)

	assert.NoError(t, storage.HealthCheck(ctx))
	assert.Greater(t, storage.Stats().Errors, uint64(0))
}
