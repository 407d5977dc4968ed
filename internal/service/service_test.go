package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"todoTracker/internal/models/todo"
	"todoTracker/internal/repository"
	"todoTracker/internal/repository/todo/inmemory"
	"todoTracker/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTodoRepository struct {
	mock.Mock
}

func (m *MockTodoRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTodoRepository) Create(ctx context.Context, t *todo.Todo) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTodoRepository) GetByID(ctx context.Context, id string) (*todo.Todo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*todo.Todo), args.Error(1)
}

func (m *MockTodoRepository) List(ctx context.Context) ([]*todo.Todo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*todo.Todo), args.Error(1)
}

func (m *MockTodoRepository) Update(ctx context.Context, id string, patch todo.Patch, expectedVersion *int) (*todo.Todo, error) {
	args := m.Called(ctx, id, patch, expectedVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*todo.Todo), args.Error(1)
}

func (m *MockTodoRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ service.TodoRepository = (*MockTodoRepository)(nil)

func TestTodoService_HealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		repoErr     error
		expectError bool
	}{
		{name: "success - healthy", repoErr: nil},
		{name: "error - repository down", repoErr: errors.New("connection refused"), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTodoRepository)
			mockRepo.On("HealthCheck", mock.Anything).Return(tt.repoErr)

			err := service.NewTodoService(mockRepo).HealthCheck(context.Background())
			if tt.expectError {
				assert.ErrorContains(t, err, "repository health check")
			} else {
				assert.NoError(t, err)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestTodoService_Create(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		priority    string
		setupMock   func(*MockTodoRepository)
		wantCode    string
		wantErr     bool
		check       func(*testing.T, *todo.Todo)
	}{
		{
			name:  "success - defaults applied",
			title: "  Buy milk  ",
			setupMock: func(m *MockTodoRepository) {
				m.On("Create", mock.Anything, mock.MatchedBy(func(t *todo.Todo) bool {
					return t.Title == "Buy milk" && t.Priority == todo.PriorityMedium && !t.Completed && t.Description == ""
				})).Return(nil)
			},
			check: func(t *testing.T, got *todo.Todo) {
				assert.Equal(t, "Buy milk", got.Title)
				assert.Equal(t, todo.PriorityMedium, got.Priority)
			},
		},
		{
			name:        "success - explicit priority and trimmed description",
			title:       "Ship",
			description: "  today ",
			priority:    "high",
			setupMock: func(m *MockTodoRepository) {
				m.On("Create", mock.Anything, mock.MatchedBy(func(t *todo.Todo) bool {
					return t.Priority == todo.PriorityHigh && t.Description == "today"
				})).Return(nil)
			},
		},
		{
			name:      "error - blank title never reaches repository",
			title:     "   ",
			setupMock: func(m *MockTodoRepository) {},
			wantErr:   true,
			wantCode:  service.CodeValidation,
		},
		{
			name:      "error - unknown priority",
			title:     "Task",
			priority:  "urgent",
			setupMock: func(m *MockTodoRepository) {},
			wantErr:   true,
			wantCode:  service.CodeValidation,
		},
		{
			name:  "error - store failure",
			title: "Task",
			setupMock: func(m *MockTodoRepository) {
				m.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))
			},
			wantErr:  true,
			wantCode: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTodoRepository)
			tt.setupMock(mockRepo)

			got, err := service.NewTodoService(mockRepo).Create(context.Background(), tt.title, tt.description, tt.priority)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, service.CodeOf(err))
			} else {
				require.NoError(t, err)
				if tt.check != nil {
					tt.check(t, got)
				}
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestTodoService_UpdateByID(t *testing.T) {
	updated := &todo.Todo{ID: "id-1", Title: "New", Version: 2}

	tests := []struct {
		name      string
		patch     todo.Patch
		setupMock func(*MockTodoRepository)
		wantCode  string
		wantErr   bool
	}{
		{
			name:  "success - trimmed title forwarded",
			patch: todo.Patch{Title: todo.Some("  New ")},
			setupMock: func(m *MockTodoRepository) {
				m.On("Update", mock.Anything, "id-1", todo.Patch{Title: todo.Some("New")}, (*int)(nil)).Return(updated, nil)
			},
		},
		{
			name:  "success - priority lowercased",
			patch: todo.Patch{Priority: todo.Some(todo.Priority(" High"))},
			setupMock: func(m *MockTodoRepository) {
				m.On("Update", mock.Anything, "id-1", todo.Patch{Priority: todo.Some(todo.PriorityHigh)}, (*int)(nil)).Return(updated, nil)
			},
		},
		{
			name:      "error - blank title",
			patch:     todo.Patch{Title: todo.Some("   ")},
			setupMock: func(m *MockTodoRepository) {},
			wantErr:   true,
			wantCode:  service.CodeValidation,
		},
		{
			name:      "error - invalid priority",
			patch:     todo.Patch{Priority: todo.Some(todo.Priority("asap"))},
			setupMock: func(m *MockTodoRepository) {},
			wantErr:   true,
			wantCode:  service.CodeValidation,
		},
		{
			name:  "error - not found",
			patch: todo.Patch{Completed: todo.Some(true)},
			setupMock: func(m *MockTodoRepository) {
				m.On("Update", mock.Anything, "id-1", mock.Anything, mock.Anything).Return(nil, repository.ErrNotFound)
			},
			wantErr:  true,
			wantCode: service.CodeNotFound,
		},
		{
			name:  "error - version conflict",
			patch: todo.Patch{Completed: todo.Some(true)},
			setupMock: func(m *MockTodoRepository) {
				m.On("Update", mock.Anything, "id-1", mock.Anything, mock.Anything).Return(nil, repository.ErrVersionConflict)
			},
			wantErr:  true,
			wantCode: service.CodeVersionConflict,
		},
		{
			name:  "error - store failure",
			patch: todo.Patch{Completed: todo.Some(true)},
			setupMock: func(m *MockTodoRepository) {
				m.On("Update", mock.Anything, "id-1", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTodoRepository)
			tt.setupMock(mockRepo)

			got, err := service.NewTodoService(mockRepo).UpdateByID(context.Background(), "id-1", tt.patch, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, service.CodeOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, updated, got)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestTodoService_NotFoundWrapsRepositoryError(t *testing.T) {
	mockRepo := new(MockTodoRepository)
	mockRepo.On("GetByID", mock.Anything, "x").Return(nil, repository.ErrNotFound)
	mockRepo.On("Delete", mock.Anything, "x").Return(repository.ErrNotFound)

	svc := service.NewTodoService(mockRepo)

	_, err := svc.GetByID(context.Background(), "x")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, service.CodeNotFound, service.CodeOf(err))

	err = svc.DeleteByID(context.Background(), "x")
	assert.Equal(t, service.CodeNotFound, service.CodeOf(err))
}

func TestTodoService_ListAll_NeverNil(t *testing.T) {
	mockRepo := new(MockTodoRepository)
	mockRepo.On("List", mock.Anything).Return([]*todo.Todo(nil), nil)

	todos, err := service.NewTodoService(mockRepo).ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, todos)
	assert.Empty(t, todos)
}

// The following run against the in-memory repository to check the
// lifecycle properties end to end.

func newInMemoryService() *service.TodoService {
	var tick time.Duration
	start := time.Now()
	clock := func() time.Time {
		tick += time.Second
		return start.Add(tick)
	}
	return service.NewTodoService(inmemory.NewTodoStorage().WithClock(clock))
}

func TestTodoService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newInMemoryService()

	created, err := svc.Create(ctx, "Buy milk", "", "")
	require.NoError(t, err)
	assert.False(t, created.Completed)
	assert.Equal(t, todo.PriorityMedium, created.Priority)

	fetched, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, fetched)

	toggled, err := svc.UpdateByID(ctx, created.ID, todo.Patch{Completed: todo.Some(true)}, nil)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)
	assert.True(t, toggled.UpdatedAt.After(created.UpdatedAt))

	back, err := svc.UpdateByID(ctx, created.ID, todo.Patch{Completed: todo.Some(false)}, nil)
	require.NoError(t, err)
	assert.Equal(t, created.Completed, back.Completed)
	assert.True(t, back.UpdatedAt.After(toggled.UpdatedAt))
	assert.Equal(t, created.ID, back.ID)
	assert.Equal(t, created.CreatedAt, back.CreatedAt)
	assert.Equal(t, created.Title, back.Title)
}

func TestTodoService_BlankTitleDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	svc := newInMemoryService()

	_, err := svc.Create(ctx, " \t ", "", "")
	require.Error(t, err)

	todos, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, todos)
}

func TestTodoService_ListAfterCreatesAndDeletes(t *testing.T) {
	ctx := context.Background()
	svc := newInMemoryService()

	var ids []string
	for _, title := range []string{"one", "two", "three", "four"} {
		created, err := svc.Create(ctx, title, "", "")
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	require.NoError(t, svc.DeleteByID(ctx, ids[1]))

	err := svc.DeleteByID(ctx, ids[1])
	assert.Equal(t, service.CodeNotFound, service.CodeOf(err))

	todos, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 3)
	for i := 1; i < len(todos); i++ {
		assert.True(t, todos[i-1].CreatedAt.After(todos[i].CreatedAt))
	}
	assert.Equal(t, ids[3], todos[0].ID)
	assert.Equal(t, ids[0], todos[2].ID)
}
