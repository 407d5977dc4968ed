package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"todoTracker/internal/handlers/dto"
	"todoTracker/internal/logger"
	"todoTracker/internal/models/todo"

	"go.uber.org/zap"
)

const DefaultTimeout = 10 * time.Second

// ErrNetwork covers transport failures and timeouts: the server never answered.
var ErrNetwork = errors.New("network error")

// APIError is a response the server did answer, with a non-2xx status or
// success=false in the envelope.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type API struct {
	baseURL string
	http    *http.Client
}

type APIOption func(*API)

func WithHTTPClient(c *http.Client) APIOption {
	return func(a *API) { a.http = c }
}

func WithTimeout(d time.Duration) APIOption {
	return func(a *API) { a.http.Timeout = d }
}

// NewAPI talks to the Task API mounted at baseURL, e.g. http://localhost:5000/api.
func NewAPI(baseURL string, opts ...APIOption) (*API, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url must be http or https, got %q", baseURL)
	}

	a := &API{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *API) List(ctx context.Context) ([]todo.Todo, error) {
	var todos []todo.Todo
	if err := a.do(ctx, http.MethodGet, "/todos", nil, nil, &todos); err != nil {
		return nil, err
	}
	if todos == nil {
		todos = []todo.Todo{}
	}
	return todos, nil
}

func (a *API) Get(ctx context.Context, id string) (todo.Todo, error) {
	var t todo.Todo
	err := a.do(ctx, http.MethodGet, "/todos/"+url.PathEscape(id), nil, nil, &t)
	return t, err
}

func (a *API) Create(ctx context.Context, req dto.CreateTodoRequest) (todo.Todo, error) {
	var t todo.Todo
	err := a.do(ctx, http.MethodPost, "/todos", req, nil, &t)
	return t, err
}

// Update sends only the fields set in patch. A non-nil version is sent as
// If-Match and the server answers 409 when the stored version differs.
func (a *API) Update(ctx context.Context, id string, patch todo.Patch, version *int) (todo.Todo, error) {
	var headers map[string]string
	if version != nil {
		headers = map[string]string{"If-Match": strconv.Itoa(*version)}
	}

	var t todo.Todo
	err := a.do(ctx, http.MethodPut, "/todos/"+url.PathEscape(id), dto.NewUpdateTodoRequest(patch), headers, &t)
	return t, err
}

func (a *API) Delete(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/todos/"+url.PathEscape(id), nil, nil, nil)
}

func (a *API) Health(ctx context.Context) (dto.HealthResponse, error) {
	var health dto.HealthResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return health, err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return health, transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return health, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return health, fmt.Errorf("decode health: %w", err)
	}
	return health, nil
}

func (a *API) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		err = transportError(ctx, err)
		logger.Warn("Client: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{
			Status:  resp.StatusCode,
			Message: http.StatusText(resp.StatusCode),
			Detail:  "malformed response: " + err.Error(),
		}
	}

	logger.Debug("Client: response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("ms", time.Since(start)))

	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message, Detail: env.Error}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// transportError keeps caller cancellation distinguishable from a dead server.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
