package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"todoTracker/internal/handlers/dto"
	"todoTracker/internal/logger"
	"todoTracker/internal/models/todo"

	"go.uber.org/zap"
)

var (
	// ErrStale is returned when a newer request for the same todo (or a newer
	// load) replaced this one. Its result was not applied to the cache.
	ErrStale       = errors.New("request superseded by a newer one")
	ErrClosed      = errors.New("controller closed")
	ErrUnknownTodo = errors.New("todo is not in the cache")
)

const DefaultErrorTTL = 5 * time.Second

const (
	MsgLoadFailed   = "Failed to connect to server. Please check your connection."
	MsgCreateFailed = "Failed to create todo. Please try again."
	MsgUpdateFailed = "Failed to update todo. Please try again."
	MsgDeleteFailed = "Failed to delete todo. Please try again."
)

const loadKey = "load"

type Backend interface {
	List(ctx context.Context) ([]todo.Todo, error)
	Create(ctx context.Context, req dto.CreateTodoRequest) (todo.Todo, error)
	Update(ctx context.Context, id string, patch todo.Patch, version *int) (todo.Todo, error)
	Delete(ctx context.Context, id string) error
}

type unit struct {
	seq    uint64
	cancel context.CancelFunc
}

// Controller issues API calls for user actions and applies confirmed results
// to the Cache. Failed calls leave the Cache untouched and raise a single
// error message that clears itself after the error TTL.
type Controller struct {
	api          Backend
	cache        *Cache
	errTTL       time.Duration
	checkVersion bool

	mu       sync.Mutex
	closed   bool
	seq      uint64
	inflight map[string]unit
	loading  bool
	errMsg   string
	errSeq   uint64
	errTimer *time.Timer
	subs     map[int]func()
	nextSub  int
}

type Option func(*Controller)

func WithErrorTTL(d time.Duration) Option {
	return func(c *Controller) { c.errTTL = d }
}

// WithVersionCheck sends the cached version with every update so the server
// rejects edits made against an outdated copy.
func WithVersionCheck() Option {
	return func(c *Controller) { c.checkVersion = true }
}

func NewController(api Backend, cache *Cache, opts ...Option) *Controller {
	if cache == nil {
		cache = NewCache()
	}
	c := &Controller{
		api:      api,
		cache:    cache,
		errTTL:   DefaultErrorTTL,
		inflight: make(map[string]unit),
		subs:     make(map[int]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Cache() *Cache {
	return c.cache
}

// Subscribe registers fn to run after every cache, loading or error change.
// fn runs on the goroutine that made the change and must not block.
func (c *Controller) Subscribe(fn func()) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Controller) ClearError() {
	c.mu.Lock()
	changed := c.clearErrorLocked()
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// Load replaces the cache with the server's list.
func (c *Controller) Load(ctx context.Context) error {
	callCtx, seq, err := c.begin(ctx, loadKey)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.loading = true
	c.clearErrorLocked()
	c.mu.Unlock()
	c.notify()

	todos, err := c.api.List(callCtx)
	if err != nil {
		return c.fail(ctx, loadKey, seq, MsgLoadFailed, "load", err, func() { c.loading = false })
	}

	return c.finish(loadKey, seq, func() {
		c.loading = false
		c.cache.ReplaceAll(todos)
	})
}

// Retry re-runs Load. It is the only recovery path; nothing retries on its own.
func (c *Controller) Retry(ctx context.Context) error {
	return c.Load(ctx)
}

func (c *Controller) Create(ctx context.Context, title, description string, priority todo.Priority) (todo.Todo, error) {
	callCtx, key, seq, err := c.beginUnique(ctx, "create")
	if err != nil {
		return todo.Todo{}, err
	}

	created, err := c.api.Create(callCtx, dto.CreateTodoRequest{
		Title:       title,
		Description: description,
		Priority:    string(priority),
	})
	if err != nil {
		return todo.Todo{}, c.fail(ctx, key, seq, MsgCreateFailed, "create", err, nil)
	}

	if err := c.finish(key, seq, func() { c.cache.Prepend(created) }); err != nil {
		return todo.Todo{}, err
	}
	return created, nil
}

func (c *Controller) Toggle(ctx context.Context, id string) (todo.Todo, error) {
	current, ok := c.cache.Get(id)
	if !ok {
		return todo.Todo{}, ErrUnknownTodo
	}
	return c.Update(ctx, id, todo.Patch{Completed: todo.Some(!current.Completed)})
}

func (c *Controller) Update(ctx context.Context, id string, patch todo.Patch) (todo.Todo, error) {
	var version *int
	if c.checkVersion {
		if current, ok := c.cache.Get(id); ok {
			v := current.Version
			version = &v
		}
	}

	key := todoKey(id)
	callCtx, seq, err := c.begin(ctx, key)
	if err != nil {
		return todo.Todo{}, err
	}

	updated, err := c.api.Update(callCtx, id, patch, version)
	if err != nil {
		return todo.Todo{}, c.fail(ctx, key, seq, MsgUpdateFailed, "update", err, nil)
	}

	if err := c.finish(key, seq, func() { c.cache.ReplaceByID(updated) }); err != nil {
		return todo.Todo{}, err
	}
	return updated, nil
}

// Delete runs under a key of its own. A later Toggle or Update of the same
// todo must not cancel it, or the removal would be lost from the cache.
func (c *Controller) Delete(ctx context.Context, id string) error {
	callCtx, key, seq, err := c.beginUnique(ctx, "delete")
	if err != nil {
		return err
	}

	if err := c.api.Delete(callCtx, id); err != nil {
		return c.fail(ctx, key, seq, MsgDeleteFailed, "delete", err, nil)
	}

	return c.finish(key, seq, func() { c.cache.RemoveByID(id) })
}

// Close cancels every in-flight request. Results that arrive afterwards are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for key, u := range c.inflight {
		u.cancel()
		delete(c.inflight, key)
	}
	if c.errTimer != nil {
		c.errTimer.Stop()
	}
}

func todoKey(id string) string {
	return "todo:" + id
}

// begin registers a unit of work under key, cancelling whatever was running
// under the same key.
func (c *Controller) begin(ctx context.Context, key string) (context.Context, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, 0, ErrClosed
	}
	if prev, ok := c.inflight[key]; ok {
		prev.cancel()
	}

	c.seq++
	callCtx, cancel := context.WithCancel(ctx)
	c.inflight[key] = unit{seq: c.seq, cancel: cancel}
	return callCtx, c.seq, nil
}

// release drops the unit if it is still the current one for key.
// Caller holds the lock.
func (c *Controller) release(key string, seq uint64) error {
	if c.closed {
		return ErrClosed
	}
	u, ok := c.inflight[key]
	if !ok || u.seq != seq {
		return ErrStale
	}
	u.cancel()
	delete(c.inflight, key)
	return nil
}

// beginUnique registers a unit under a fresh key so nothing supersedes it.
// Creates and deletes go through here.
func (c *Controller) beginUnique(ctx context.Context, kind string) (context.Context, string, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, "", 0, ErrClosed
	}
	c.seq++
	key := fmt.Sprintf("%s:%d", kind, c.seq)
	callCtx, cancel := context.WithCancel(ctx)
	c.inflight[key] = unit{seq: c.seq, cancel: cancel}
	return callCtx, key, c.seq, nil
}

func (c *Controller) finish(key string, seq uint64, apply func()) error {
	c.mu.Lock()
	if err := c.release(key, seq); err != nil {
		c.mu.Unlock()
		logger.Debug("Client: dropped late result", zap.String("key", key), zap.Error(err))
		return err
	}
	apply()
	c.mu.Unlock()

	c.notify()
	return nil
}

func (c *Controller) fail(ctx context.Context, key string, seq uint64, msg, op string, cause error, cleanup func()) error {
	c.mu.Lock()
	if err := c.release(key, seq); err != nil {
		c.mu.Unlock()
		return err
	}
	if cleanup != nil {
		cleanup()
	}

	// A caller that cancelled its own request does not need a banner.
	if ctx.Err() != nil {
		c.mu.Unlock()
		c.notify()
		return cause
	}

	c.setErrorLocked(msg)
	c.mu.Unlock()

	logger.Warn("Client: request failed", zap.String("op", op), zap.Error(cause))
	c.notify()
	return cause
}

// setErrorLocked replaces the active error and restarts its expiry.
func (c *Controller) setErrorLocked(msg string) {
	c.errSeq++
	c.errMsg = msg
	if c.errTimer != nil {
		c.errTimer.Stop()
	}

	seq := c.errSeq
	c.errTimer = time.AfterFunc(c.errTTL, func() {
		c.mu.Lock()
		if c.errSeq != seq || c.errMsg == "" {
			c.mu.Unlock()
			return
		}
		c.errMsg = ""
		c.mu.Unlock()
		c.notify()
	})
}

func (c *Controller) clearErrorLocked() bool {
	if c.errMsg == "" {
		return false
	}
	c.errSeq++
	c.errMsg = ""
	if c.errTimer != nil {
		c.errTimer.Stop()
	}
	return true
}

func (c *Controller) notify() {
	c.mu.Lock()
	subs := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
