package lazyns

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/lazyns/internal/logging"
	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
)

// Module is a lazy namespace. Every declared name starts out pending and
// is resolved through the runtime's resolver on first access; the result
// is stored and the name is never resolved again.
//
// Module implements object.Getter, object.Setter, object.Deleter and
// object.Lister, so namespaces nest and can be traversed like any other
// unit.
type Module struct {
	rt         *Runtime
	name       string
	implPrefix string

	mu      sync.RWMutex
	attrs   map[string]any
	pending map[string]Location
	order   []string
	hook    *Location

	// children are the registry entries this namespace installed.
	children []registryEntry
}

type registryEntry struct {
	name  string
	value any
}

// newModule builds the namespace tree for decls. Child namespaces and
// aliases are installed in the registry right away so they can be found
// by dotted name before anything is resolved.
func newModule(rt *Runtime, name string, decls []Declaration, implPrefix string, attrs map[string]any) *Module {
	m := &Module{
		rt:         rt,
		name:       name,
		implPrefix: implPrefix,
		attrs:      make(map[string]any),
		pending:    make(map[string]Location),
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.store(k, attrs[k])
	}

	for _, d := range decls {
		if d.Kind != KindHook {
			m.order = append(m.order, d.Name)
		}
		child := name + "." + d.Name

		switch d.Kind {
		case KindNamespace:
			sub := newModule(rt, child, d.Children, implPrefix, nil)
			rt.registry.Set(child, sub)
			m.children = append(m.children, registryEntry{child, sub})
			m.store(d.Name, sub)
		case KindAlias:
			alias := newAlias(rt, child, d.Location.Abs(implPrefix))
			rt.registry.Set(child, alias)
			m.children = append(m.children, registryEntry{child, alias})
			if !strings.Contains(d.Name, ".") {
				m.store(d.Name, alias)
			}
		case KindHook:
			loc := d.Location.Abs(implPrefix)
			m.hook = &loc
		case KindAttr, KindDoc:
			// Attributes given up front shadow the declaration.
			if _, ok := m.attrs[d.Name]; !ok {
				m.pending[d.Name] = d.Location.Abs(implPrefix)
			}
		}
	}
	return m
}

// Name returns the fully-qualified module name
func (m *Module) Name() string {
	return m.name
}

// ImplPrefix returns the prefix relative locations were resolved against.
func (m *Module) ImplPrefix() string {
	return m.implPrefix
}

// Lookup returns a resolved attribute. It never resolves.
func (m *Module) Lookup(name string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.attrs[name]
	return v, ok
}

// GetAttr returns name, resolving it on first access.
func (m *Module) GetAttr(ctx context.Context, name string) (any, error) {
	if v, ok := m.Lookup(name); ok {
		return v, nil
	}
	return m.Resolve(ctx, name)
}

// Resolve performs the pending -> resolved transition for name under the
// runtime lock. The on-first-access hook, if still pending, runs first;
// a value it (or a re-entrant call) sets is returned as is. Failures leave
// name pending so a later access retries.
func (m *Module) Resolve(ctx context.Context, name string) (any, error) {
	ctx, unlock, err := m.rt.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := m.runHook(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	loc, pending := m.pending[name]
	v, set := m.attrs[name]
	m.mu.RUnlock()
	if !pending {
		if set {
			return v, nil
		}
		return nil, lnerrors.NewAttributeError(m.name, name)
	}

	if resolving(ctx, m, name) {
		return nil, lnerrors.NewCircularImportError(m.name + "." + name)
	}
	v, err = m.rt.resolver.Resolve(withResolving(ctx, m, name), loc)
	if err != nil {
		m.rt.logger.Debug(ctx, "Resolution failed",
			"module", m.name, "name", name, "location", loc.String(), "error", err)
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, still := m.pending[name]; !still {
		// Set while we were resolving; the first stored value wins.
		if existing, ok := m.attrs[name]; ok {
			return existing, nil
		}
	}
	delete(m.pending, name)
	m.storeLocked(name, v)
	return v, nil
}

// runHook pops the on-first-access hook and calls it. The hook is gone
// before it runs, whether it succeeds or not. ctx must own the lock.
func (m *Module) runHook(ctx context.Context) error {
	m.mu.Lock()
	hook := m.hook
	m.hook = nil
	m.mu.Unlock()
	if hook == nil {
		return nil
	}

	op := logging.StartOperation(m.rt.logger.With("module", m.name), "onfirstaccess")
	fn, err := m.rt.resolver.Resolve(ctx, *hook)
	if err != nil {
		op.EndWithError(ctx, err)
		return err
	}

	switch f := fn.(type) {
	case func():
		f()
	case func() error:
		err = f()
	case func(context.Context):
		f(ctx)
	case func(context.Context) error:
		err = f(ctx)
	default:
		err = lnerrors.NewHookError(m.name, fn)
	}
	if err != nil {
		op.EndWithError(ctx, err)
		return err
	}
	op.End(ctx)
	return nil
}

// All resolves every declared name still pending and returns a snapshot
// of the attributes. Individual failures are swallowed so a partially
// broken namespace still yields its working subset.
func (m *Module) All(ctx context.Context) map[string]any {
	snapshot, failures := m.AllErrors(ctx)
	for _, f := range failures.Failures() {
		m.rt.logger.Debug(ctx, "Skipping unresolvable name",
			"module", f.Module, "name", f.Name, "error", f.Err)
	}
	return snapshot
}

// AllErrors is All, also returning the failures it swallowed.
func (m *Module) AllErrors(ctx context.Context) (map[string]any, *lnerrors.Collector) {
	failures := lnerrors.NewCollector()

	ctx, unlock, err := m.rt.lock.Lock(ctx)
	if err != nil {
		failures.Add(m.name, "", err)
		return m.Snapshot(), failures
	}
	defer unlock()

	m.mu.RLock()
	names := append([]string(nil), m.order...)
	m.mu.RUnlock()

	for _, name := range names {
		if !m.IsPending(name) {
			continue
		}
		if _, err := m.Resolve(ctx, name); err != nil {
			failures.Add(m.name, name, err)
		}
	}
	return m.Snapshot(), failures
}

// Snapshot returns a copy of the resolved attributes.
func (m *Module) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.attrs))
	for k, v := range m.attrs {
		out[k] = v
	}
	return out
}

// SetAttr assigns name. An assigned value permanently shadows a pending
// declaration of the same name.
func (m *Module) SetAttr(_ context.Context, name string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, name)
	m.storeLocked(name, value)
	return nil
}

// DelAttr removes name, resolved or pending.
func (m *Module) DelAttr(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, pending := m.pending[name]
	_, set := m.attrs[name]
	if !pending && !set {
		return lnerrors.NewAttributeError(m.name, name)
	}
	delete(m.pending, name)
	delete(m.attrs, name)
	return nil
}

// Dir lists declared names in declaration order followed by every other
// attribute in sorted order.
func (m *Module) Dir() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool, len(m.order)+len(m.attrs))
	names := make([]string, 0, len(m.order)+len(m.attrs))
	for _, n := range m.order {
		_, pending := m.pending[n]
		_, set := m.attrs[n]
		if (pending || set) && !strings.Contains(n, ".") {
			names = append(names, n)
			seen[n] = true
		}
	}
	rest := make([]string, 0, len(m.attrs))
	for n := range m.attrs {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// Declared returns every declared name except the hook, in declaration
// order.
func (m *Module) Declared() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Pending returns the names still waiting for resolution, sorted.
func (m *Module) Pending() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.pending))
	for n := range m.pending {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsPending reports whether name is declared and not yet resolved.
func (m *Module) IsPending(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pending[name]
	return ok
}

// Location returns the location a pending name resolves from.
func (m *Module) Location(name string) (Location, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.pending[name]
	return loc, ok
}

// HookPending reports whether the on-first-access hook has yet to run.
func (m *Module) HookPending() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hook != nil
}

// Hook returns the location of the on-first-access hook while it has yet
// to run.
func (m *Module) Hook() (Location, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.hook == nil {
		return Location{}, false
	}
	return *m.hook, true
}

// Doc returns the documentation string, resolving a declared __doc__.
// A namespace without documentation returns "".
func (m *Module) Doc(ctx context.Context) (string, error) {
	v, err := m.GetAttr(ctx, DocName)
	if err != nil {
		if lnerrors.IsAttributeError(err) && !m.IsPending(DocName) {
			return "", nil
		}
		return "", err
	}
	switch d := v.(type) {
	case nil:
		return "", nil
	case string:
		return d, nil
	case fmt.Stringer:
		return d.String(), nil
	default:
		return fmt.Sprint(d), nil
	}
}

// String renders the module with its version and file when known.
func (m *Module) String() string {
	var parts []string
	if v, ok := m.Lookup(AttrVersion); ok {
		parts = append(parts, fmt.Sprintf("version=%q", fmt.Sprint(v)))
	}
	if f, ok := m.Lookup(AttrFile); ok && f != nil {
		parts = append(parts, fmt.Sprintf("from %q", fmt.Sprint(f)))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("lazyns.Module(%q)", m.name)
	}
	return fmt.Sprintf("lazyns.Module(%q %s)", m.name, strings.Join(parts, " "))
}

func (m *Module) store(name string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeLocked(name, value)
}

func (m *Module) storeLocked(name string, value any) {
	m.attrs[name] = value
}

// installed returns every registry entry the tree rooted at m installed,
// keyed by dotted name.
func (m *Module) installed() map[string]any {
	entries := make(map[string]any)
	var walk func(*Module)
	walk = func(mod *Module) {
		for _, c := range mod.children {
			entries[c.name] = c.value
			if sub, ok := c.value.(*Module); ok {
				walk(sub)
			}
		}
	}
	walk(m)
	return entries
}

type resolvingKey struct{}

type resolvingName struct {
	module *Module
	name   string
	parent *resolvingName
}

// resolving reports whether the calling chain is already resolving name
// on m, which happens when a location leads back to itself.
func resolving(ctx context.Context, m *Module, name string) bool {
	r, _ := ctx.Value(resolvingKey{}).(*resolvingName)
	for ; r != nil; r = r.parent {
		if r.module == m && r.name == name {
			return true
		}
	}
	return false
}

func withResolving(ctx context.Context, m *Module, name string) context.Context {
	parent, _ := ctx.Value(resolvingKey{}).(*resolvingName)
	return context.WithValue(ctx, resolvingKey{}, &resolvingName{module: m, name: name, parent: parent})
}
