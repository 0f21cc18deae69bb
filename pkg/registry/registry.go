// Package registry provides the process-wide module registry.
//
// The registry maps fully-qualified dotted names to cells. A cell is a
// stable handle: replacing the entity registered under a name re-points
// the existing cell instead of installing a new one, so every holder of
// the cell observes the replacement. Callers that need to see in-place
// re-initialization keep the *Cell (or look the name up again) rather than
// caching the entity itself.
package registry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
)

// Registry manages all registered entities
type Registry struct {
	cells    map[string]*Cell
	mutex    sync.RWMutex
	watchers []chan Event
}

// Cell is a reference cell holding the entity registered under a name.
type Cell struct {
	name string
	v    atomic.Pointer[entry]
}

type entry struct {
	value any
}

// Event represents a change in the registry
type Event struct {
	Type      EventType
	Name      string
	Value     any
	Timestamp time.Time
}

// EventType represents the type of registry event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeReplaced
	EventTypeRemoved
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeAdded:
		return "added"
	case EventTypeReplaced:
		return "replaced"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Default is the registry shared by the whole process.
var Default = New()

// New creates a new, empty registry
func New() *Registry {
	return &Registry{
		cells:    make(map[string]*Cell),
		watchers: make([]chan Event, 0),
	}
}

// Name returns the name the cell is registered under
func (c *Cell) Name() string {
	return c.name
}

// Load returns the entity the cell currently points at.
func (c *Cell) Load() any {
	if e := c.v.Load(); e != nil {
		return e.value
	}
	return nil
}

// Set registers value under name, re-pointing the existing cell if there
// is one. It returns the cell.
func (r *Registry) Set(name string, value any) *Cell {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := EventTypeReplaced
	cell, exists := r.cells[name]
	if !exists {
		cell = &Cell{name: name}
		r.cells[name] = cell
		eventType = EventTypeAdded
	}
	cell.v.Store(&entry{value: value})

	r.notify(Event{Type: eventType, Name: name, Value: value, Timestamp: time.Now()})
	return cell
}

// Register registers value under name and fails if name is taken.
func (r *Registry) Register(name string, value any) (*Cell, error) {
	if name == "" {
		return nil, lnerrors.NewRegistryError("EMPTY_NAME", name, "empty module name")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.cells[name]; exists {
		return nil, lnerrors.NewRegistryError("DUPLICATE", name, "module "+name+" is already registered")
	}
	cell := &Cell{name: name}
	cell.v.Store(&entry{value: value})
	r.cells[name] = cell

	r.notify(Event{Type: EventTypeAdded, Name: name, Value: value, Timestamp: time.Now()})
	return cell, nil
}

// Lookup returns the entity registered under name
func (r *Registry) Lookup(name string) (any, bool) {
	r.mutex.RLock()
	cell, exists := r.cells[name]
	r.mutex.RUnlock()

	if !exists {
		return nil, false
	}
	return cell.Load(), true
}

// Cell returns the cell registered under name
func (r *Registry) Cell(name string) (*Cell, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	cell, exists := r.cells[name]
	return cell, exists
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, exists := r.cells[name]
	return exists
}

// Remove removes name from the registry. The cell is detached; holders
// keep seeing the last entity it pointed at.
func (r *Registry) Remove(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cell, exists := r.cells[name]
	if !exists {
		return
	}

	delete(r.cells, name)

	r.notify(Event{Type: EventTypeRemoved, Name: name, Value: cell.Load(), Timestamp: time.Now()})
}

// Names returns all registered names, sorted
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.cells))
	for name := range r.cells {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Range calls fn for every entry in name order until fn returns false.
// The registry is not locked while fn runs, so fn may register entities.
func (r *Registry) Range(fn func(name string, value any) bool) {
	for _, name := range r.Names() {
		value, ok := r.Lookup(name)
		if !ok {
			continue
		}
		if !fn(name, value) {
			return
		}
	}
}

// Watch returns a channel that receives registry events
func (r *Registry) Watch() <-chan Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan Event, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *Registry) UnWatch(ch <-chan Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// Count returns the number of registered entities
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.cells)
}

// notify must be called with the write lock held.
func (r *Registry) notify(event Event) {
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}
