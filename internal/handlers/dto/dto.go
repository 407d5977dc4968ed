package dto

import (
	"todoTracker/internal/models/todo"
)

type CreateTodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// UpdateTodoRequest uses pointers so that an omitted field and a field
// explicitly set to its zero value decode differently.
type UpdateTodoRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	Priority    *string `json:"priority,omitempty"`
}

func (r UpdateTodoRequest) ToPatch() todo.Patch {
	patch := todo.Patch{
		Title:       todo.FromPtr(r.Title),
		Description: todo.FromPtr(r.Description),
		Completed:   todo.FromPtr(r.Completed),
	}
	if r.Priority != nil {
		patch.Priority = todo.Some(todo.Priority(*r.Priority))
	}
	return patch
}

type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type HealthResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func NewUpdateTodoRequest(p todo.Patch) UpdateTodoRequest {
	r := UpdateTodoRequest{
		Title:       p.Title.Ptr(),
		Description: p.Description.Ptr(),
		Completed:   p.Completed.Ptr(),
	}
	if v, ok := p.Priority.Get(); ok {
		s := string(v)
		r.Priority = &s
	}
	return r
}
