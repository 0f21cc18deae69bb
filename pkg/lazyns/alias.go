package lazyns

import (
	"context"
	"fmt"
	"sync"

	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
	"github.com/conneroisu/lazyns/pkg/object"
)

// Alias stands in for a whole unit exported under another name. It owns
// no attributes: every read, write and delete goes to the target, which is
// resolved on first use and kept for the alias's lifetime.
type Alias struct {
	rt     *Runtime
	name   string
	target Location

	mu       sync.RWMutex
	resolved bool
	value    any
}

func newAlias(rt *Runtime, name string, target Location) *Alias {
	return &Alias{rt: rt, name: name, target: target}
}

// Name returns the dotted name the alias is registered under.
func (a *Alias) Name() string {
	return a.name
}

// TargetLocation returns where the alias points.
func (a *Alias) TargetLocation() Location {
	return a.target
}

// Resolved reports whether the target has been loaded.
func (a *Alias) Resolved() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.resolved
}

// Target returns the aliased unit, resolving it once. Failures are not
// cached.
func (a *Alias) Target(ctx context.Context) (any, error) {
	if v, ok := a.cached(); ok {
		return v, nil
	}

	ctx, unlock, err := a.rt.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if v, ok := a.cached(); ok {
		return v, nil
	}
	v, err := a.rt.resolver.Resolve(ctx, a.target)
	if err != nil {
		return nil, err
	}
	if v == any(a) {
		return nil, lnerrors.NewImportError(a.target.Path,
			fmt.Errorf("alias %s resolves to itself", a.name))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.resolved {
		return a.value, nil
	}
	a.value = v
	a.resolved = true
	return v, nil
}

func (a *Alias) cached() (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value, a.resolved
}

// GetAttr reads name from the target. For targets configured with
// WithNilOnImportError a target that cannot be imported reads as nil.
func (a *Alias) GetAttr(ctx context.Context, name string) (any, error) {
	t, ctx, err := a.forward(ctx)
	if err != nil {
		if lnerrors.IsImportError(err) && a.rt.readsNil(a.target) {
			return nil, nil
		}
		return nil, err
	}
	return object.GetAttr(ctx, t, name)
}

// SetAttr assigns name on the target.
func (a *Alias) SetAttr(ctx context.Context, name string, value any) error {
	t, ctx, err := a.forward(ctx)
	if err != nil {
		return err
	}
	return object.SetAttr(ctx, t, name, value)
}

// DelAttr deletes name from the target.
func (a *Alias) DelAttr(ctx context.Context, name string) error {
	t, ctx, err := a.forward(ctx)
	if err != nil {
		return err
	}
	return object.DelAttr(ctx, t, name)
}

type forwardingKey struct{}

type forwardingAlias struct {
	alias  *Alias
	parent *forwardingAlias
}

// forward resolves the target and returns the context to forward with.
// An alias met twice on one forwarding chain means the aliases point at
// each other and no unit is ever reached.
func (a *Alias) forward(ctx context.Context) (any, context.Context, error) {
	chain, _ := ctx.Value(forwardingKey{}).(*forwardingAlias)
	for f := chain; f != nil; f = f.parent {
		if f.alias == a {
			return nil, ctx, lnerrors.NewCircularImportError(a.name)
		}
	}
	t, err := a.Target(ctx)
	if err != nil {
		return nil, ctx, err
	}
	return t, context.WithValue(ctx, forwardingKey{}, &forwardingAlias{alias: a, parent: chain}), nil
}

// Dir lists the target's attributes once it has been resolved.
func (a *Alias) Dir() []string {
	t, ok := a.cached()
	if !ok {
		return nil
	}
	return object.Dir(t)
}

// String implements fmt.Stringer
func (a *Alias) String() string {
	return fmt.Sprintf("lazyns.Alias(%q for %q)", a.name, a.target.Target())
}
