package handlers

import (
	"net/http"
	"time"

	"todoTracker/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	RateLimit      int
}

func NewRouter(h *TodoHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "If-Match", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	if cfg.RateLimit > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimit))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthCheck) // GET /api/health
		r.Get("/ready", h.Ready)        // GET /api/ready

		r.Route("/todos", func(r chi.Router) {
			r.Get("/", h.ListTodos)   // GET /api/todos
			r.Post("/", h.CreateTodo) // POST /api/todos

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetTodoByID)   // GET /api/todos/{id}
				r.Put("/", h.UpdateTodo)    // PUT /api/todos/{id}
				r.Delete("/", h.DeleteTodo) // DELETE /api/todos/{id}
			})
		})
	})

	return r
}
