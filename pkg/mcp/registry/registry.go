// Package registry implements the tool/prompt/resource registries of
// spec.md §4.6: name-keyed collections supporting schema-validated
// invocation, enable/disable, and list-changed notification.
package registry

import (
	"sort"
	"sync"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Validator validates a value against a JSON Schema. The default
// implementation is backed by jsonschema-go; applications may supply their
// own, per spec.md's "consumed through an abstract validator interface"
// Non-goal.
type Validator interface {
	Validate(schema *mcp.Value, input *mcp.Value) error
}

// entry is one named registration shared by all three registries. T is the
// handler type: ToolHandler, PromptHandler, or ResourceHandler.
type entry[T any] struct {
	name    string
	enabled bool
	def     *mcp.Value
	handler T
}

// Registry is a concurrent name-keyed collection of entries. It is
// generalized from the teacher's Toolkit (pkg/tool/tool.go) to cover tools,
// prompts, and resources with one implementation.
type Registry[T any] struct {
	mu          sync.RWMutex
	entries     map[string]*entry[T]
	order       []string
	validator   Validator
	onListChanged func()
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates an empty registry. validator may be nil if entries never
// declare a schema; onListChanged is invoked (outside the lock) after any
// mutation that changes the enabled set, so the session engine can translate
// it into a notifications/*/list_changed.
func New[T any](validator Validator, onListChanged func()) *Registry[T] {
	return &Registry[T]{
		entries:       make(map[string]*entry[T]),
		validator:     validator,
		onListChanged: onListChanged,
	}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Register adds a new entry, enabled by default. Returns invalid-params if
// the name is already registered, per spec.md §4.6.
func (r *Registry[T]) Register(name string, def *mcp.Value, handler T) error {
	r.mu.Lock()
	if _, exists := r.entries[name]; exists {
		r.mu.Unlock()
		return mcp.ErrInvalidParams.Withf("duplicate registration: %q", name)
	}
	r.entries[name] = &entry[T]{name: name, enabled: true, def: def, handler: handler}
	r.order = append(r.order, name)
	r.mu.Unlock()
	r.notifyChanged()
	return nil
}

// Has reports whether name is registered (enabled or not).
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// ListEnabled returns the definitions of every enabled entry, in
// registration order. Disabled entries are excluded per spec.md §8
// invariant 4.
func (r *Registry[T]) ListEnabled() []*mcp.Value {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*mcp.Value, 0, len(r.order))
	for _, name := range r.order {
		if e := r.entries[name]; e.enabled {
			out = append(out, e.def)
		}
	}
	return out
}

// ListEnabledPage returns a cursor-paginated slice of enabled definitions,
// generalizing the teacher's pkg/store/session.go paginate helper from
// session metadata to registry listings.
func (r *Registry[T]) ListEnabledPage(cursor string, limit int) (page []*mcp.Value, nextCursor string) {
	all := r.ListEnabled()
	sort.SliceStable(all, func(i, j int) bool { return false }) // registration order is already stable
	start := 0
	if cursor != "" {
		for i, v := range all {
			if name, _ := v.Get("name").String(); name == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 || limit > len(all)-start {
		limit = len(all) - start
	}
	if start >= len(all) {
		return nil, ""
	}
	page = all[start : start+limit]
	if start+limit < len(all) {
		if name, ok := page[len(page)-1].Get("name").String(); ok {
			nextCursor = name
		}
	}
	return page, nextCursor
}

// Enable/Disable flip an entry's enabled flag, firing onListChanged.
func (r *Registry[T]) Enable(name string) error  { return r.setEnabled(name, true) }
func (r *Registry[T]) Disable(name string) error { return r.setEnabled(name, false) }

func (r *Registry[T]) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return mcp.ErrInvalidParams.Withf("not registered: %q", name)
	}
	changed := e.enabled != enabled
	e.enabled = enabled
	r.mu.Unlock()
	if changed {
		r.notifyChanged()
	}
	return nil
}

// Remove deletes an entry entirely.
func (r *Registry[T]) Remove(name string) error {
	r.mu.Lock()
	if _, ok := r.entries[name]; !ok {
		r.mu.Unlock()
		return mcp.ErrInvalidParams.Withf("not registered: %q", name)
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	r.notifyChanged()
	return nil
}

// Lookup returns an entry's handler, definition, and enabled flag.
func (r *Registry[T]) Lookup(name string) (handler T, def *mcp.Value, enabled bool, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, exists := r.entries[name]
	if !exists {
		return handler, nil, false, false
	}
	return e.handler, e.def, e.enabled, true
}

// Validator returns the schema validator the registry was created with
// (nil if none was given to New).
func (r *Registry[T]) Validator() Validator { return r.validator }

func (r *Registry[T]) notifyChanged() {
	if r.onListChanged != nil {
		r.onListChanged()
	}
}
