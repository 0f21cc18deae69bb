package object

import (
	"context"
	"fmt"
	"sort"
	"sync"

	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
)

// Module is a plain, eagerly-populated attribute record. Loaders return
// one to describe an implementation unit, and it is what a package looks
// like in the registry before it is initialized lazily.
type Module struct {
	name  string
	mu    sync.RWMutex
	attrs map[string]any
	order []string
}

// NewModule creates a module named name holding attrs.
func NewModule(name string, attrs map[string]any) *Module {
	m := &Module{
		name:  name,
		attrs: make(map[string]any, len(attrs)),
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.set(k, attrs[k])
	}
	return m
}

// Name returns the fully-qualified module name
func (m *Module) Name() string {
	return m.name
}

// Lookup returns the attribute without error reporting.
func (m *Module) Lookup(name string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.attrs[name]
	return v, ok
}

// GetAttr implements Getter
func (m *Module) GetAttr(_ context.Context, name string) (any, error) {
	if v, ok := m.Lookup(name); ok {
		return v, nil
	}
	return nil, lnerrors.NewAttributeError(m.name, name)
}

// SetAttr implements Setter
func (m *Module) SetAttr(_ context.Context, name string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(name, value)
	return nil
}

// Set is SetAttr without a context, for building units by hand.
func (m *Module) Set(name string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(name, value)
}

// DelAttr implements Deleter
func (m *Module) DelAttr(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attrs[name]; !ok {
		return lnerrors.NewAttributeError(m.name, name)
	}
	delete(m.attrs, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Dir implements Lister; names come back in assignment order.
func (m *Module) Dir() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Snapshot returns a copy of all attributes.
func (m *Module) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.attrs))
	for k, v := range m.attrs {
		out[k] = v
	}
	return out
}

// String renders the module for diagnostics.
func (m *Module) String() string {
	return fmt.Sprintf("Module(%q)", m.name)
}

func (m *Module) set(name string, value any) {
	if _, exists := m.attrs[name]; !exists {
		m.order = append(m.order, name)
	}
	m.attrs[name] = value
}
