package client

import (
	"sync"

	"todoTracker/internal/models/todo"
)

// Cache mirrors server-confirmed todos in display order. Ids are unique.
// It only changes through the mutation methods below; reads are copies.
type Cache struct {
	mu    sync.RWMutex
	todos []todo.Todo
}

func NewCache() *Cache {
	return &Cache{todos: []todo.Todo{}}
}

func (c *Cache) ReplaceAll(todos []todo.Todo) {
	seen := make(map[string]struct{}, len(todos))
	next := make([]todo.Todo, 0, len(todos))
	for _, t := range todos {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		next = append(next, t)
	}

	c.mu.Lock()
	c.todos = next
	c.mu.Unlock()
}

// Prepend puts t first. An entry with the same id is replaced rather than duplicated.
func (c *Cache) Prepend(t todo.Todo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]todo.Todo, 0, len(c.todos)+1)
	next = append(next, t)
	for _, existing := range c.todos {
		if existing.ID != t.ID {
			next = append(next, existing)
		}
	}
	c.todos = next
}

// ReplaceByID swaps in t at its current position and reports whether it was present.
func (c *Cache) ReplaceByID(t todo.Todo) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.todos {
		if c.todos[i].ID == t.ID {
			c.todos[i] = t
			return true
		}
	}
	return false
}

func (c *Cache) RemoveByID(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.todos {
		if c.todos[i].ID == id {
			c.todos = append(c.todos[:i:i], c.todos[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Cache) Get(id string) (todo.Todo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.todos {
		if t.ID == id {
			return t, true
		}
	}
	return todo.Todo{}, false
}

func (c *Cache) Snapshot() []todo.Todo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]todo.Todo, len(c.todos))
	copy(out, c.todos)
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.todos)
}

func (c *Cache) Partition() (pending, completed []todo.Todo) {
	return todo.Partition(c.Snapshot())
}

func (c *Cache) Stats() todo.Stats {
	return todo.StatsOf(c.Snapshot())
}
