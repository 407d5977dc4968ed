package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"todoTracker/internal/logger"
	"todoTracker/internal/models/todo"
	repo "todoTracker/internal/repository"

	"github.com/google/uuid"
)

type TodoStorage struct {
	storage map[string]*todo.Todo
	mtx     *sync.RWMutex
	ids     []string
	now     func() time.Time
}

func NewTodoStorage() *TodoStorage {
	return &TodoStorage{
		storage: make(map[string]*todo.Todo),
		mtx:     &sync.RWMutex{},
		ids:     []string{},
		now:     time.Now,
	}
}

// WithClock replaces the time source; tests use it to pin timestamps.
func (s *TodoStorage) WithClock(now func() time.Time) *TodoStorage {
	s.now = now
	return s
}

func (s *TodoStorage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: in-memory storage is always available")
	return nil
}

func (s *TodoStorage) Create(ctx context.Context, todoToCreate *todo.Todo) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	now := todo.Timestamp(s.now())
	todoToCreate.ID = uuid.New().String()
	todoToCreate.CreatedAt = now
	todoToCreate.UpdatedAt = now
	todoToCreate.Version = 1

	s.storage[todoToCreate.ID] = todoToCreate.Clone()
	s.ids = append(s.ids, todoToCreate.ID)
	return nil
}

func (s *TodoStorage) GetByID(ctx context.Context, id string) (*todo.Todo, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	todoToGet, ok := s.storage[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return todoToGet.Clone(), nil
}

// List returns every todo, newest first. Todos created within the same
// millisecond keep reverse insertion order.
func (s *TodoStorage) List(ctx context.Context) ([]*todo.Todo, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]*todo.Todo, 0, len(s.ids))
	for i := len(s.ids) - 1; i >= 0; i-- {
		res = append(res, s.storage[s.ids[i]].Clone())
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (s *TodoStorage) Update(ctx context.Context, id string, patch todo.Patch, expectedVersion *int) (*todo.Todo, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if expectedVersion != nil && *expectedVersion != existing.Version {
		return nil, repo.ErrVersionConflict
	}

	updated := existing.Clone()
	patch.Apply(updated)
	updated.UpdatedAt = todo.NextUpdatedAt(existing.UpdatedAt, s.now())
	updated.Version++

	s.storage[id] = updated
	return updated.Clone(), nil
}

func (s *TodoStorage) Delete(ctx context.Context, id string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[id]; !ok {
		return repo.ErrNotFound
	}

	delete(s.storage, id)
	for ind, val := range s.ids {
		if val == id {
			s.ids = append(s.ids[:ind], s.ids[ind+1:]...)
			break
		}
	}
	return nil
}

func (s *TodoStorage) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.storage)
}
