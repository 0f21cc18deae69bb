package lazyns

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/conneroisu/lazyns/internal/logging"
	"github.com/conneroisu/lazyns/internal/version"
	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
	"github.com/conneroisu/lazyns/pkg/importer"
	"github.com/conneroisu/lazyns/pkg/object"
	"github.com/conneroisu/lazyns/pkg/registry"
)

// DefaultVirtualPathPrefix marks search-path entries that do not live on
// the filesystem and are therefore never made absolute.
const DefaultVirtualPathPrefix = "__classpath__"

// VersionLookup returns the distribution version of a package, if known.
type VersionLookup func(pkgID string) (string, bool)

// Runtime ties namespaces to one registry, importer and resolution lock.
// Most programs use the default runtime through the package-level
// functions; tests build isolated ones with New.
type Runtime struct {
	registry          *registry.Registry
	importer          Importer
	resolver          *Resolver
	lock              Locker
	logger            logging.Logger
	versionLookup     VersionLookup
	nilOnImportError  map[string]bool
	eagerTriggers     []string
	virtualPathPrefix string
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithRegistry sets the registry namespaces are installed into.
func WithRegistry(reg *registry.Registry) Option {
	return func(rt *Runtime) {
		rt.registry = reg
	}
}

// WithImporter sets the import machinery the resolver loads units from.
func WithImporter(im Importer) Option {
	return func(rt *Runtime) {
		rt.importer = im
	}
}

// WithLock replaces the process-wide reentrant lock. An *importer.Importer
// without a lock of its own runs its loaders under it too.
func WithLock(l Locker) Option {
	return func(rt *Runtime) {
		rt.lock = l
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = l
	}
}

// WithVersionLookup sets the lookup used to fill in a missing __version__.
// A nil lookup disables it.
func WithVersionLookup(fn VersionLookup) Option {
	return func(rt *Runtime) {
		rt.versionLookup = fn
	}
}

// WithNilOnImportError names alias targets whose import failures read as
// nil attributes instead of errors. It exists for tools that try
// optional units attribute by attribute and must not be used as a general
// error policy.
func WithNilOnImportError(paths ...string) Option {
	return func(rt *Runtime) {
		for _, p := range paths {
			rt.nilOnImportError[p] = true
		}
	}
}

// WithEagerTriggers names registry entries whose presence makes every
// Init eager.
func WithEagerTriggers(names ...string) Option {
	return func(rt *Runtime) {
		rt.eagerTriggers = append(rt.eagerTriggers, names...)
	}
}

// WithVirtualPathPrefix sets the prefix of non-filesystem search paths.
func WithVirtualPathPrefix(prefix string) Option {
	return func(rt *Runtime) {
		rt.virtualPathPrefix = prefix
	}
}

// New creates a runtime. Without options it uses a fresh registry with
// an importer over it.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		logger:            logging.Nop(),
		versionLookup:     buildVersion,
		nilOnImportError:  make(map[string]bool),
		virtualPathPrefix: DefaultVirtualPathPrefix,
	}
	for _, opt := range opts {
		opt(rt)
	}

	if rt.registry == nil {
		if im, ok := rt.importer.(*importer.Importer); ok {
			rt.registry = im.Registry()
		} else {
			rt.registry = registry.New()
		}
	}
	if rt.importer == nil {
		rt.importer = importer.New(rt.registry)
	}
	// Loaders run under the resolution lock, so a loader that initializes
	// a namespace and a resolution waiting on that loader never hold two
	// different locks.
	if im, ok := rt.importer.(*importer.Importer); ok {
		if rt.lock == nil {
			rt.lock = im.ShareLock(NewReentrantLock())
		} else {
			im.ShareLock(rt.lock)
		}
	}
	if rt.lock == nil {
		rt.lock = NewReentrantLock()
	}
	rt.resolver = NewResolver(rt.importer)
	rt.logger = rt.logger.WithComponent("lazyns")
	return rt
}

var defaultRuntime = New(
	WithRegistry(registry.Default),
	WithImporter(importer.Default),
)

// Default returns the process-wide runtime.
func Default() *Runtime {
	return defaultRuntime
}

// Registry returns the registry namespaces are installed into.
func (rt *Runtime) Registry() *registry.Registry {
	return rt.registry
}

// Resolver returns the runtime's resolver.
func (rt *Runtime) Resolver() *Resolver {
	return rt.resolver
}

// Lookup returns the namespace registered under name, if it is one.
func (rt *Runtime) Lookup(name string) (*Module, bool) {
	v, ok := rt.registry.Lookup(name)
	if !ok {
		return nil, false
	}
	m, ok := v.(*Module)
	return m, ok
}

// InitOption configures a single Init or NewModule call.
type InitOption func(*initConfig)

type initConfig struct {
	attrs      map[string]any
	eager      bool
	implPrefix string
}

// WithAttrs sets attributes that are resolved from the start.
func WithAttrs(attrs map[string]any) InitOption {
	return func(c *initConfig) {
		if c.attrs == nil {
			c.attrs = make(map[string]any, len(attrs))
		}
		for k, v := range attrs {
			c.attrs[k] = v
		}
	}
}

// WithEager resolves every namespace in the registry once Init is done.
func WithEager() InitOption {
	return func(c *initConfig) {
		c.eager = true
	}
}

// WithImplPrefix sets the prefix relative locations are resolved
// against. It defaults to the package id.
func WithImplPrefix(prefix string) InitOption {
	return func(c *initConfig) {
		c.implPrefix = prefix
	}
}

// Init installs a lazy namespace for pkgID on the default runtime.
func Init(ctx context.Context, pkgID string, spec ExportSpec, opts ...InitOption) (*Module, error) {
	return defaultRuntime.Init(ctx, pkgID, spec, opts...)
}

// Init installs a lazy namespace for pkgID built from spec.
//
// When something is already registered under pkgID its registry cell is
// re-pointed to the new namespace, so holders of the cell observe the
// replacement. Only the structural attributes in PreservedAttrs survive;
// file locations among them are made absolute. Calling Init again for the
// same package is supported and replaces the namespace again.
func (rt *Runtime) Init(ctx context.Context, pkgID string, spec ExportSpec, opts ...InitOption) (*Module, error) {
	if pkgID == "" {
		return nil, lnerrors.NewRegistryError("EMPTY_NAME", pkgID, "empty package id")
	}
	decls, err := Compile(spec)
	if err != nil {
		return nil, err
	}
	cfg := newInitConfig(pkgID, opts)
	if err := CheckShadowing(pkgID, cfg.implPrefix, decls); err != nil {
		return nil, err
	}

	ctx, unlock, err := rt.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	op := logging.StartOperation(rt.logger, "init")

	attrs := map[string]any{AttrFile: nil, AttrSpec: nil}
	old, replacing := rt.registry.Lookup(pkgID)
	if replacing {
		attrs = rt.preserved(ctx, old, hasDoc(decls))
	}
	for k, v := range cfg.attrs {
		attrs[k] = v
	}
	if _, ok := attrs[AttrVersion]; !ok && rt.versionLookup != nil {
		if v, ok := rt.versionLookup(pkgID); ok {
			attrs[AttrVersion] = v
		}
	}

	mod := newModule(rt, pkgID, decls, cfg.implPrefix, attrs)
	rt.registry.Set(pkgID, mod)
	if prev, ok := old.(*Module); ok {
		rt.removeStale(prev, mod)
	}
	rt.logger.Debug(ctx, "Namespace installed",
		"module", pkgID, "replaced", replacing, "declared", len(decls))
	op.End(ctx)

	if cfg.eager || rt.eagerTriggered() {
		rt.resolveAll(ctx)
	}
	return mod, nil
}

// NewModule builds a namespace and registers it under name. Unlike Init it
// never replaces an existing entry.
func (rt *Runtime) NewModule(ctx context.Context, name string, spec ExportSpec, opts ...InitOption) (*Module, error) {
	decls, err := Compile(spec)
	if err != nil {
		return nil, err
	}
	cfg := newInitConfig(name, opts)
	if err := CheckShadowing(name, cfg.implPrefix, decls); err != nil {
		return nil, err
	}

	ctx, unlock, err := rt.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if rt.registry.Has(name) {
		return nil, lnerrors.NewRegistryError("DUPLICATE", name, "module "+name+" is already registered")
	}
	mod := newModule(rt, name, decls, cfg.implPrefix, cfg.attrs)
	if _, err := rt.registry.Register(name, mod); err != nil {
		return nil, err
	}
	rt.logger.Debug(ctx, "Namespace registered", "module", name)
	return mod, nil
}

// removeStale drops the namespaces and aliases prev installed that the
// replacement no longer declares. Entries someone else has since
// re-registered are left alone.
func (rt *Runtime) removeStale(prev, next *Module) {
	keep := next.installed()
	for name, value := range prev.installed() {
		if _, ok := keep[name]; ok {
			continue
		}
		if cur, ok := rt.registry.Lookup(name); ok && cur == value {
			rt.registry.Remove(name)
		}
	}
}

func newInitConfig(pkgID string, opts []InitOption) *initConfig {
	cfg := &initConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.implPrefix == "" {
		cfg.implPrefix = pkgID
	}
	return cfg
}

func hasDoc(decls []Declaration) bool {
	for _, d := range decls {
		if d.Kind == KindDoc {
			return true
		}
	}
	return false
}

// preserved copies the allow-listed attributes off the entity being
// replaced. Pending declarations of a previous namespace are not resolved
// just to be carried over.
func (rt *Runtime) preserved(ctx context.Context, old any, dropDoc bool) map[string]any {
	attrs := make(map[string]any)

	get := func(name string) (any, bool) {
		if m, ok := old.(*Module); ok {
			return m.Lookup(name)
		}
		found := false
		for _, n := range object.Dir(old) {
			if n == name {
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
		v, err := object.GetAttr(ctx, old, name)
		return v, err == nil
	}

	for _, name := range PreservedAttrs {
		if name == AttrDoc && dropDoc {
			continue
		}
		v, ok := get(name)
		if !ok {
			continue
		}
		switch name {
		case AttrFile:
			if s, ok := v.(string); ok && s != "" {
				v = rt.absPath(s)
			}
		case AttrPath:
			v = rt.absPaths(v)
		case AttrDoc:
			if s, ok := v.(string); !ok || s == "" {
				continue
			}
		}
		attrs[name] = v
	}
	if _, ok := attrs[AttrFile]; !ok {
		attrs[AttrFile] = nil
	}
	if _, ok := attrs[AttrSpec]; !ok {
		attrs[AttrSpec] = nil
	}
	return attrs
}

func (rt *Runtime) absPath(p string) string {
	if rt.virtualPathPrefix != "" && strings.HasPrefix(p, rt.virtualPathPrefix) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

func (rt *Runtime) absPaths(v any) any {
	switch paths := v.(type) {
	case string:
		return rt.absPath(paths)
	case []string:
		out := make([]string, len(paths))
		for i, p := range paths {
			out[i] = rt.absPath(p)
		}
		return out
	case []any:
		out := make([]any, len(paths))
		for i, p := range paths {
			if s, ok := p.(string); ok {
				out[i] = rt.absPath(s)
			} else {
				out[i] = p
			}
		}
		return out
	default:
		return v
	}
}

func (rt *Runtime) eagerTriggered() bool {
	for _, name := range rt.eagerTriggers {
		if rt.registry.Has(name) {
			return true
		}
	}
	return false
}

// resolveAll forces every namespace in the registry, not only the one
// just installed. ctx must own the lock.
func (rt *Runtime) resolveAll(ctx context.Context) {
	var mods []*Module
	rt.registry.Range(func(_ string, v any) bool {
		if m, ok := v.(*Module); ok {
			mods = append(mods, m)
		}
		return true
	})
	for _, m := range mods {
		m.All(ctx)
	}
	rt.logger.Debug(ctx, "Eager resolution finished", "modules", len(mods))
}

func (rt *Runtime) readsNil(loc Location) bool {
	return loc.IsWhole() && rt.nilOnImportError[loc.Path]
}

// buildVersion looks pkgID up among the modules linked into the binary,
// first as given and then with dots read as path separators.
func buildVersion(pkgID string) (string, bool) {
	if v, ok := version.ModuleVersion(pkgID); ok {
		return v, true
	}
	return version.ModuleVersion(strings.ReplaceAll(pkgID, ".", "/"))
}
