package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"todoTracker/internal/logger"
	"todoTracker/internal/models/todo"
	repo "todoTracker/internal/repository"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

const columns = `id, title, description, completed, priority, created_at, updated_at, version`

type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

type Storage struct {
	pool       *pgxpool.Pool
	connString string
	now        func() time.Time
}

func New(ctx context.Context, connString string, poolCfg PoolConfig) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: failed to parse postgres config", err)
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	if poolCfg.MaxConns > 0 {
		config.MaxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		config.MinConns = poolCfg.MinConns
	}
	if poolCfg.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = poolCfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: failed to create pool", err)
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger.Info("Repository: connected to PostgreSQL")
	return &Storage{pool: pool, connString: connString, now: time.Now}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: closed all PostgreSQL connections")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Migrate applies the embedded migrations. connString must be a postgres:// URL.
func (s *Storage) Migrate(ctx context.Context) error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: migrations failed", err)
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("Repository: migrations applied")
	return nil
}

func (s *Storage) Down(ctx context.Context) error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: rollback failed", err)
		return fmt.Errorf("rollback migrations: %w", err)
	}
	logger.Info("Repository: migrations rolled back")
	return nil
}

func (s *Storage) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, s.connString)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

// Truncate removes every row. Only integration tests call it.
func (s *Storage) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM todos`)
	return err
}

type row struct {
	id          string
	title       string
	description string
	completed   bool
	priority    string
	createdAt   time.Time
	updatedAt   time.Time
	version     int
}

func (r *row) dest() []any {
	return []any{&r.id, &r.title, &r.description, &r.completed, &r.priority, &r.createdAt, &r.updatedAt, &r.version}
}

func (r *row) toModel() *todo.Todo {
	return &todo.Todo{
		ID:          r.id,
		Title:       r.title,
		Description: r.description,
		Completed:   r.completed,
		Priority:    todo.Priority(r.priority),
		CreatedAt:   todo.Timestamp(r.createdAt),
		UpdatedAt:   todo.Timestamp(r.updatedAt),
		Version:     r.version,
	}
}

func (s *Storage) Create(ctx context.Context, todoToCreate *todo.Todo) error {
	start := time.Now()

	query := `INSERT INTO todos
				(id, title, description, completed, priority, created_at, updated_at, version)
				VALUES ($1, $2, $3, $4, $5, $6, $6, 1)
				RETURNING ` + columns

	var r row
	err := s.pool.QueryRow(ctx, query,
		uuid.New().String(),
		todoToCreate.Title,
		todoToCreate.Description,
		todoToCreate.Completed,
		string(todoToCreate.Priority),
		todo.Timestamp(s.now()),
	).Scan(r.dest()...)
	if err != nil {
		logger.Error("Repository: failed to insert todo", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("insert todo: %w", err)
	}

	*todoToCreate = *r.toModel()
	warnIfSlow(start)
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id string) (*todo.Todo, error) {
	start := time.Now()

	if !canonicalID(id) {
		return nil, repo.ErrNotFound
	}

	var r row
	err := s.pool.QueryRow(ctx, `SELECT `+columns+` FROM todos WHERE id = $1::uuid`, id).Scan(r.dest()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get todo", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("get todo: %w", err)
	}

	warnIfSlow(start)
	return r.toModel(), nil
}

func (s *Storage) List(ctx context.Context) ([]*todo.Todo, error) {
	start := time.Now()

	rows, err := s.pool.Query(ctx, `SELECT `+columns+` FROM todos ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		logger.Error("Repository: failed to list todos", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := []*todo.Todo{}
	for rows.Next() {
		var r row
		if err := rows.Scan(r.dest()...); err != nil {
			logger.Error("Repository: failed to scan todo", err)
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, r.toModel())
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: row iteration failed", err)
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	warnIfSlow(start)
	return todos, nil
}

func (s *Storage) Update(ctx context.Context, id string, patch todo.Patch, expectedVersion *int) (*todo.Todo, error) {
	start := time.Now()

	if !canonicalID(id) {
		return nil, repo.ErrNotFound
	}

	query := `UPDATE todos
			SET title = COALESCE($2, title),
				description = COALESCE($3, description),
				completed = COALESCE($4, completed),
				priority = COALESCE($5, priority),
				updated_at = GREATEST($6, updated_at + INTERVAL '1 millisecond'),
				version = version + 1
			WHERE id = $1::uuid AND ($7::int IS NULL OR version = $7::int)
			RETURNING ` + columns

	var priority *string
	if p, ok := patch.Priority.Get(); ok {
		v := string(p)
		priority = &v
	}

	var r row
	err := s.pool.QueryRow(ctx, query,
		id,
		patch.Title.Ptr(),
		patch.Description.Ptr(),
		patch.Completed.Ptr(),
		priority,
		todo.Timestamp(s.now()),
		expectedVersion,
	).Scan(r.dest()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.missOrConflict(ctx, id, expectedVersion)
		}
		logger.Error("Repository: failed to update todo", err, zap.String("todo_id", id))
		return nil, fmt.Errorf("update todo: %w", err)
	}

	warnIfSlow(start)
	return r.toModel(), nil
}

func (s *Storage) missOrConflict(ctx context.Context, id string, expectedVersion *int) error {
	if expectedVersion == nil {
		return repo.ErrNotFound
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM todos WHERE id = $1::uuid)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check todo: %w", err)
	}
	if !exists {
		return repo.ErrNotFound
	}
	logger.Warn("Repository: version conflict on update",
		zap.String("todo_id", id),
		zap.Int("expected_version", *expectedVersion))
	return repo.ErrVersionConflict
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	start := time.Now()

	if !canonicalID(id) {
		return repo.ErrNotFound
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM todos WHERE id = $1::uuid`, id)
	if err != nil {
		logger.Error("Repository: failed to delete todo", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("delete todo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	warnIfSlow(start)
	return nil
}

// canonicalID reports whether id is a UUID in the 36 character hyphenated
// form. uuid.Parse also takes urn:uuid: and 32 digit forms, some of which
// the ::uuid cast rejects.
func canonicalID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func warnIfSlow(start time.Time) {
	if elapsed := time.Since(start); elapsed > time.Millisecond*100 {
		logger.Warn("Repository: slow query", zap.Duration("ms", elapsed))
	}
}
