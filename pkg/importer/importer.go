// Package importer loads implementation units by dotted path.
//
// It plays the part of a host import system: a table of loader functions
// keyed by unit path, backed by the module registry which doubles as the
// import cache. Only successful loads are cached; a failing loader runs
// again on the next import so that a fixed environment is picked up
// without restarting the process.
package importer

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
	"github.com/conneroisu/lazyns/pkg/object"
	"github.com/conneroisu/lazyns/pkg/registry"
	"golang.org/x/sync/singleflight"
)

// Loader produces the unit registered under a path. The context carries
// lock ownership and the import chain; pass it on to anything the loader
// imports or resolves.
type Loader func(ctx context.Context) (any, error)

// Locker serializes loader calls. It has the shape of the namespace
// resolution lock so that one reentrant lock can guard both; Lock returns
// the context that owns the lock.
type Locker interface {
	Lock(ctx context.Context) (context.Context, func(), error)
}

// Importer resolves unit paths to values.
type Importer struct {
	reg     *registry.Registry
	mu      sync.RWMutex
	loaders map[string]Loader
	lock    Locker
	group   singleflight.Group
	loads   atomic.Int64
}

// Default loads into registry.Default.
var Default = New(registry.Default)

// New creates an importer caching into reg.
func New(reg *registry.Registry) *Importer {
	if reg == nil {
		reg = registry.New()
	}
	return &Importer{
		reg:     reg,
		loaders: make(map[string]Loader),
	}
}

// Registry returns the registry the importer caches into
func (im *Importer) Registry() *registry.Registry {
	return im.reg
}

// Register installs loader for path. Registering a path twice is a
// programmer error.
func (im *Importer) Register(path string, loader Loader) error {
	if path == "" || strings.HasPrefix(path, ".") || strings.HasSuffix(path, ".") {
		return lnerrors.NewRegistryError("BAD_PATH", path, "invalid unit path "+path)
	}
	if loader == nil {
		return lnerrors.NewRegistryError("NIL_LOADER", path, "nil loader for "+path)
	}

	im.mu.Lock()
	defer im.mu.Unlock()

	if _, exists := im.loaders[path]; exists {
		return lnerrors.NewRegistryError("DUPLICATE", path, "loader for "+path+" is already registered")
	}
	im.loaders[path] = loader
	return nil
}

// MustRegister is Register that panics on error, for package-level setup.
func (im *Importer) MustRegister(path string, loader Loader) {
	if err := im.Register(path, loader); err != nil {
		panic(err)
	}
}

// Unregister removes the loader for path. Units already imported stay in
// the registry.
func (im *Importer) Unregister(path string) {
	im.mu.Lock()
	defer im.mu.Unlock()
	delete(im.loaders, path)
}

// Has reports whether a loader is registered for path
func (im *Importer) Has(path string) bool {
	im.mu.RLock()
	defer im.mu.RUnlock()
	_, ok := im.loaders[path]
	return ok
}

// ShareLock makes l the lock loaders run under, unless the importer
// already has one, and returns the lock in effect. A runtime shares its
// resolution lock this way: a loader that initializes a namespace then
// never waits on a lock held by a resolution that waits on the loader.
func (im *Importer) ShareLock(l Locker) Locker {
	im.mu.Lock()
	defer im.mu.Unlock()
	if im.lock == nil {
		im.lock = l
	}
	return im.lock
}

// SharedLock returns the lock loaders run under, or nil.
func (im *Importer) SharedLock() Locker {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.lock
}

// Loads returns how many loader calls have succeeded.
func (im *Importer) Loads() int64 {
	return im.loads.Load()
}

// Import returns the unit at path, loading it on first use.
//
// Parent units are imported first, when something can provide them, so a
// package can set up its namespace (and register children) before a
// child is looked up.
func (im *Importer) Import(ctx context.Context, path string) (any, error) {
	if path == "" {
		return nil, lnerrors.NewNoModuleError(path)
	}
	if v, ok := im.reg.Lookup(path); ok {
		return v, nil
	}

	if i := strings.LastIndex(path, "."); i > 0 {
		parent := path[:i]
		if im.Has(parent) {
			if _, err := im.Import(ctx, parent); err != nil {
				return nil, err
			}
			if v, ok := im.reg.Lookup(path); ok {
				return v, nil
			}
		}
	}

	im.mu.RLock()
	loader, ok := im.loaders[path]
	lock := im.lock
	im.mu.RUnlock()
	if !ok {
		return nil, lnerrors.NewNoModuleError(path)
	}

	if importing(ctx, path) {
		return nil, lnerrors.NewCircularImportError(path)
	}
	if lock != nil {
		locked, unlock, err := lock.Lock(ctx)
		if err != nil {
			return nil, err
		}
		defer unlock()
		ctx = locked
	}
	lctx := withImporting(ctx, path)

	v, err, _ := im.group.Do(path, func() (any, error) {
		if v, ok := im.reg.Lookup(path); ok {
			return v, nil
		}
		v, err := loader(lctx)
		if err != nil {
			return nil, lnerrors.NewImportError(path, err)
		}
		im.loads.Add(1)
		// A package loader usually registers itself while initializing.
		if existing, ok := im.reg.Lookup(path); ok {
			return existing, nil
		}
		im.reg.Set(path, v)
		return v, nil
	})
	return v, err
}

// Value returns a loader that always yields v.
func Value(v any) Loader {
	return func(context.Context) (any, error) {
		return v, nil
	}
}

// Unit returns a loader that builds a plain module from attrs.
func Unit(name string, attrs map[string]any) Loader {
	return func(context.Context) (any, error) {
		return object.NewModule(name, attrs), nil
	}
}

type importingKey struct{}

type importChain struct {
	path   string
	parent *importChain
}

func importing(ctx context.Context, path string) bool {
	chain, _ := ctx.Value(importingKey{}).(*importChain)
	for ; chain != nil; chain = chain.parent {
		if chain.path == path {
			return true
		}
	}
	return false
}

func withImporting(ctx context.Context, path string) context.Context {
	parent, _ := ctx.Value(importingKey{}).(*importChain)
	return context.WithValue(ctx, importingKey{}, &importChain{path: path, parent: parent})
}
