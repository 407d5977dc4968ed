package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"todoTracker/internal/handlers/dto"
	"todoTracker/internal/logger"
	"todoTracker/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TodoHandler struct {
	TodoService Service
	probe       ReadinessProbe
	now         func() time.Time
}

func NewTodoHandler(todoService Service) *TodoHandler {
	return &TodoHandler{
		TodoService: todoService,
		now:         time.Now,
	}
}

// WithProbe makes /ready answer from the probe instead of pinging the store per request.
func (h *TodoHandler) WithProbe(probe ReadinessProbe) *TodoHandler {
	h.probe = probe
	return h
}

func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	todos, err := h.TodoService.ListAll(r.Context())
	if err != nil {
		logger.Error("HTTP: Service error", err,
			zap.String("operation", "list_todos"),
			zap.String("request_id", middleware.GetRequestID(r.Context())))
		responseWithError(w, http.StatusInternalServerError, "Error fetching todos", err)
		return
	}

	logger.Info("HTTP_OUT: todos listed",
		zap.Int("count", len(todos)),
		zap.Duration("ms", time.Since(start)))

	responseWithData(w, http.StatusOK, "Todos retrieved successfully", todos)
}

func (h *TodoHandler) GetTodoByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	t, err := h.TodoService.GetByID(r.Context(), id)
	if err != nil {
		status := statusFor(err, http.StatusInternalServerError)
		if status == http.StatusNotFound {
			logger.Warn("HTTP: todo not found", zap.String("todo_id", id))
			responseWithError(w, status, msgNotFound, nil)
			return
		}
		logger.Error("HTTP: Service error", err,
			zap.String("operation", "get_todo"),
			zap.String("todo_id", id))
		responseWithError(w, status, "Error fetching todo", err)
		return
	}

	logger.Info("HTTP_OUT: todo fetched",
		zap.String("todo_id", t.ID),
		zap.Duration("ms", time.Since(start)))

	responseWithData(w, http.StatusOK, "Todo retrieved successfully", t)
}

func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !acceptsJSON(r) {
		logger.Warn("HTTP: unsupported content type",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	var request dto.CreateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: failed to decode JSON", zap.Error(err))
		responseWithError(w, http.StatusBadRequest, "Error creating todo", errors.New("invalid request body: "+err.Error()))
		return
	}

	if strings.TrimSpace(request.Title) == "" {
		logger.Warn("HTTP: validation failed",
			zap.String("field", "title"),
			zap.String("error", "empty_field"))
		responseWithError(w, http.StatusBadRequest, "Title is required", nil)
		return
	}

	t, err := h.TodoService.Create(r.Context(), request.Title, request.Description, request.Priority)
	if err != nil {
		logger.Warn("HTTP: failed to create todo",
			zap.Error(err),
			zap.Duration("ms", time.Since(start)))
		responseWithError(w, http.StatusBadRequest, "Error creating todo", err)
		return
	}

	logger.Info("HTTP_OUT: todo created",
		zap.String("todo_id", t.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithData(w, http.StatusCreated, "Todo created successfully", t)
}

// UpdateTodo applies whichever fields the body carries. A toggle is an
// update with only "completed" set.
func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	if !acceptsJSON(r) {
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	version, err := expectedVersion(r)
	if err != nil {
		logger.Warn("HTTP: invalid If-Match header", zap.String("if_match", r.Header.Get("If-Match")))
		responseWithError(w, http.StatusBadRequest, "Error updating todo", errors.New("If-Match must carry a numeric version"))
		return
	}

	var request dto.UpdateTodoRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: failed to decode JSON", zap.Error(err))
		responseWithError(w, http.StatusBadRequest, "Error updating todo", errors.New("invalid request body: "+err.Error()))
		return
	}

	t, err := h.TodoService.UpdateByID(r.Context(), id, request.ToPatch(), version)
	if err != nil {
		status := statusFor(err, http.StatusBadRequest)
		logger.Warn("HTTP: failed to update todo",
			zap.String("todo_id", id),
			zap.Int("http_status", status),
			zap.Error(err))
		if status == http.StatusNotFound {
			responseWithError(w, status, msgNotFound, nil)
			return
		}
		responseWithError(w, status, messageFor(status, "Error updating todo"), err)
		return
	}

	logger.Info("HTTP_OUT: todo updated",
		zap.String("todo_id", id),
		zap.Duration("ms", time.Since(start)))

	responseWithData(w, http.StatusOK, "Todo updated successfully", t)
}

func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	if err := h.TodoService.DeleteByID(r.Context(), id); err != nil {
		status := statusFor(err, http.StatusInternalServerError)
		if status == http.StatusNotFound {
			logger.Warn("HTTP: todo not found", zap.String("todo_id", id))
			responseWithError(w, status, msgNotFound, nil)
			return
		}
		logger.Error("HTTP: Service error", err,
			zap.String("operation", "delete_todo"),
			zap.String("todo_id", id))
		responseWithError(w, status, "Error deleting todo", err)
		return
	}

	logger.Info("HTTP_OUT: todo deleted",
		zap.String("todo_id", id),
		zap.Duration("ms", time.Since(start)))

	responseWithMessage(w, http.StatusOK, "Todo deleted successfully")
}

func (h *TodoHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	responseWithJSON(w, http.StatusOK, dto.HealthResponse{
		Message:   "Server is running successfully!",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *TodoHandler) Ready(w http.ResponseWriter, r *http.Request) {
	var err error
	if h.probe != nil {
		err = h.probe.Ready()
	} else {
		err = h.TodoService.HealthCheck(r.Context())
	}

	if err != nil {
		logger.Warn("HTTP: not ready", zap.Error(err))
		responseWithError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	responseWithMessage(w, http.StatusOK, "Ready")
}
