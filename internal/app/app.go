package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"todoTracker/internal/config"
	"todoTracker/internal/handlers"
	"todoTracker/internal/logger"
	"todoTracker/internal/repository/todo/cached"
	"todoTracker/internal/repository/todo/inmemory"
	"todoTracker/internal/repository/todo/mongodb"
	"todoTracker/internal/repository/todo/postgres"
	"todoTracker/internal/service"
	"todoTracker/internal/worker"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	config     *config.Config
	server     *http.Server
	repository service.TodoRepository
	service    *service.TodoService
	probe      *worker.StoreProbe
	shutdowns  map[string]gfshutdown.Operation
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make(map[string]gfshutdown.Operation),
	}
}

// Init builds the repository chain, service and HTTP server. The logger must
// already be initialised by the caller.
func (a *App) Init(ctx context.Context) error {
	repo, err := a.buildRepository(ctx)
	if err != nil {
		a.closeAll(ctx)
		return fmt.Errorf("init repository: %w", err)
	}
	a.repository = repo
	a.service = service.NewTodoService(repo)
	a.probe = worker.NewStoreProbe(a.service, &a.config.Worker.ProbeInterval)

	handler := handlers.NewTodoHandler(a.service).WithProbe(a.probe)
	router := handlers.NewRouter(handler, handlers.RouterConfig{
		AllowedOrigins: a.config.CORS.AllowedOrigins,
		RequestTimeout: a.config.Server.RequestTimeout,
		RateLimit:      a.config.Server.RateLimit,
	})

	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.shutdowns["http-server"] = func(ctx context.Context) error {
		logger.Info("HTTP: shutting down server")
		return a.server.Shutdown(ctx)
	}

	logger.Info("App: initialised",
		zap.String("repository", a.config.Repository.Type),
		zap.Bool("cache", a.config.Redis.Addr != ""),
		zap.String("addr", a.server.Addr))
	return nil
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) buildRepository(ctx context.Context) (service.TodoRepository, error) {
	var repo cached.Backend

	switch a.config.Repository.Type {
	case config.RepositoryMongoDB:
		m := a.config.MongoDB
		store, err := mongodb.New(ctx, m.URI, m.Database, m.Collection)
		if err != nil {
			return nil, err
		}
		a.shutdowns["mongodb"] = store.Close
		repo = store

	case config.RepositoryPostgres:
		db := a.config.Database
		store, err := postgres.New(ctx, db.URL, postgres.PoolConfig{
			MaxConns:        int32(db.MaxConnections),
			MinConns:        int32(db.MinConnections),
			MaxConnIdleTime: db.IdleTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.shutdowns["postgres"] = func(context.Context) error {
			store.Close()
			return nil
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		repo = store

	case config.RepositoryInMemory:
		repo = inmemory.NewTodoStorage()

	default:
		return nil, fmt.Errorf("unknown repository type %q", a.config.Repository.Type)
	}

	if a.config.Redis.Addr == "" {
		return repo, nil
	}

	r := a.config.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("App: redis unreachable, reads go to the store until it recovers",
			zap.String("addr", r.Addr), zap.Error(err))
	}
	store := cached.New(repo, client, r.Prefix, r.TTL)
	a.shutdowns["redis"] = func(context.Context) error {
		return store.Close()
	}
	return store, nil
}

// Run serves HTTP until SIGINT/SIGTERM and returns the process exit code.
func (a *App) Run(ctx context.Context) int {
	workerCtx, cancel := context.WithCancel(ctx)
	a.shutdowns["store-probe"] = func(context.Context) error {
		cancel()
		return nil
	}
	go a.probe.Start(workerCtx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP: server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, a.shutdowns)

	select {
	case code := <-wait:
		logger.Info("App: stopped", zap.Int("exit_code", code))
		return code
	case err := <-serverErr:
		logger.Error("HTTP: server failed", err)
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		a.closeAll(shutdownCtx)
		return 1
	}
}

func (a *App) closeAll(ctx context.Context) {
	for name, op := range a.shutdowns {
		if err := op(ctx); err != nil {
			logger.Warn("App: shutdown step failed", zap.String("step", name), zap.Error(err))
		}
	}
}
