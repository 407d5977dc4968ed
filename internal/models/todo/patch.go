package todo

import "strings"

// Optional marks whether a field was present in an update request, so that
// "omitted" and "explicitly set to the zero value" stay distinguishable.
type Optional[T any] struct {
	value T
	set   bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

func (o Optional[T]) IsSet() bool {
	return o.set
}

// Ptr returns nil when the field is absent.
func (o Optional[T]) Ptr() *T {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

func FromPtr[T any](p *T) Optional[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Patch is a partial update: only set fields overwrite the stored record.
type Patch struct {
	Title       Optional[string]
	Description Optional[string]
	Completed   Optional[bool]
	Priority    Optional[Priority]
}

func (p Patch) IsEmpty() bool {
	return !p.Title.IsSet() && !p.Description.IsSet() && !p.Completed.IsSet() && !p.Priority.IsSet()
}

// Normalize returns a copy with string fields trimmed and the priority
// lowercased, matching what ParsePriority accepts on create.
func (p Patch) Normalize() Patch {
	if v, ok := p.Title.Get(); ok {
		p.Title = Some(strings.TrimSpace(v))
	}
	if v, ok := p.Description.Get(); ok {
		p.Description = Some(strings.TrimSpace(v))
	}
	if v, ok := p.Priority.Get(); ok {
		p.Priority = Some(Priority(strings.ToLower(strings.TrimSpace(string(v)))))
	}
	return p
}

// Apply merges the set fields into t. Timestamps and version are left to the store.
func (p Patch) Apply(t *Todo) {
	if v, ok := p.Title.Get(); ok {
		t.Title = v
	}
	if v, ok := p.Description.Get(); ok {
		t.Description = v
	}
	if v, ok := p.Completed.Get(); ok {
		t.Completed = v
	}
	if v, ok := p.Priority.Get(); ok {
		t.Priority = v
	}
}
