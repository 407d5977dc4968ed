// Package cached wraps a todo repository with a Redis cache-aside layer.
// The backing store stays the source of truth: cache failures are logged
// and counted but never fail an operation.
package cached

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"todoTracker/internal/logger"
	"todoTracker/internal/models/todo"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Backend interface {
	HealthCheck(ctx context.Context) error
	Create(ctx context.Context, t *todo.Todo) error
	GetByID(ctx context.Context, id string) (*todo.Todo, error)
	List(ctx context.Context) ([]*todo.Todo, error)
	Update(ctx context.Context, id string, patch todo.Patch, expectedVersion *int) (*todo.Todo, error)
	Delete(ctx context.Context, id string) error
}

type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Sets    uint64 `json:"sets"`
	Deletes uint64 `json:"deletes"`
	Skipped uint64 `json:"skipped"`
	Errors  uint64 `json:"errors"`
}

type Storage struct {
	next   Backend
	client *redis.Client
	prefix string
	ttl    time.Duration
	group  singleflight.Group
	stats  Stats
}

func New(next Backend, client *redis.Client, prefix string, ttl time.Duration) *Storage {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Storage{
		next:   next,
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Storage) todoKey(id string) string {
	return s.prefix + "todo:" + id
}

func (s *Storage) listKey() string {
	return s.prefix + "list"
}

// genKey holds a counter bumped by every mutation. A fill only writes when
// the counter still has the value it read before going to the store.
func (s *Storage) genKey() string {
	return s.prefix + "gen"
}

// HealthCheck reports the backing store only; a down cache degrades to pass-through.
func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		logger.Warn("Cache: redis unavailable, serving from store", zap.Error(err))
	}
	return s.next.HealthCheck(ctx)
}

func (s *Storage) Create(ctx context.Context, t *todo.Todo) error {
	if err := s.next.Create(ctx, t); err != nil {
		return err
	}
	s.invalidate(ctx, s.listKey())
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id string) (*todo.Todo, error) {
	key := s.todoKey(id)

	var cached todo.Todo
	if s.get(ctx, key, &cached) {
		return &cached, nil
	}

	val, err, _ := s.group.Do(key, func() (any, error) {
		gen, ok := s.generation(ctx)
		t, err := s.next.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			s.fill(ctx, key, t, gen)
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*todo.Todo).Clone(), nil
}

func (s *Storage) List(ctx context.Context) ([]*todo.Todo, error) {
	key := s.listKey()

	var cached []*todo.Todo
	if s.get(ctx, key, &cached) {
		if cached == nil {
			cached = []*todo.Todo{}
		}
		return cached, nil
	}

	val, err, _ := s.group.Do(key, func() (any, error) {
		gen, ok := s.generation(ctx)
		todos, err := s.next.List(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			s.fill(ctx, key, todos, gen)
		}
		return todos, nil
	})
	if err != nil {
		return nil, err
	}

	shared := val.([]*todo.Todo)
	todos := make([]*todo.Todo, 0, len(shared))
	for _, t := range shared {
		todos = append(todos, t.Clone())
	}
	return todos, nil
}

func (s *Storage) Update(ctx context.Context, id string, patch todo.Patch, expectedVersion *int) (*todo.Todo, error) {
	updated, err := s.next.Update(ctx, id, patch, expectedVersion)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, s.todoKey(id), s.listKey())
	return updated, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, s.todoKey(id), s.listKey())
	return nil
}

func (s *Storage) Stats() Stats {
	return Stats{
		Hits:    atomic.LoadUint64(&s.stats.Hits),
		Misses:  atomic.LoadUint64(&s.stats.Misses),
		Sets:    atomic.LoadUint64(&s.stats.Sets),
		Deletes: atomic.LoadUint64(&s.stats.Deletes),
		Skipped: atomic.LoadUint64(&s.stats.Skipped),
		Errors:  atomic.LoadUint64(&s.stats.Errors),
	}
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) get(ctx context.Context, key string, dest any) bool {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddUint64(&s.stats.Misses, 1)
			return false
		}
		s.fail("get", key, err)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.fail("unmarshal", key, err)
		return false
	}
	atomic.AddUint64(&s.stats.Hits, 1)
	return true
}

// generation reads the mutation counter. A missing counter reads as zero.
// ok is false when Redis cannot be reached and the fill should be skipped.
func (s *Storage) generation(ctx context.Context) (int64, bool) {
	gen, err := s.client.Get(ctx, s.genKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.fail("generation", s.genKey(), err)
		return 0, false
	}
	return gen, true
}

// fill writes value under key if no mutation has happened since gen was
// read. WATCH aborts the write when a mutation lands between the check and
// the SET.
func (s *Storage) fill(ctx context.Context, key string, value any, gen int64) {
	data, err := json.Marshal(value)
	if err != nil {
		s.fail("marshal", key, err)
		return
	}

	stale := false
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, s.genKey()).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			stale = true
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, s.genKey())

	switch {
	case errors.Is(err, redis.TxFailedErr):
		stale = true
	case err != nil:
		s.fail("set", key, err)
		return
	}
	if stale {
		atomic.AddUint64(&s.stats.Skipped, 1)
		logger.Debug("Cache: skipped stale fill", zap.String("key", key), zap.Int64("generation", gen))
		return
	}
	atomic.AddUint64(&s.stats.Sets, 1)
}

// invalidate bumps the generation and drops keys in one transaction, so a
// fill that read before the mutation can no longer land.
func (s *Storage) invalidate(ctx context.Context, keys ...string) {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, s.genKey())
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		s.fail("delete", fmt.Sprint(keys), err)
		return
	}
	atomic.AddUint64(&s.stats.Deletes, uint64(len(keys)))
}

func (s *Storage) fail(op, key string, err error) {
	atomic.AddUint64(&s.stats.Errors, 1)
	logger.Warn("Cache: operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err))
}
