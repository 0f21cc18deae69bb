package lazyns

import (
	"context"
	"sync/atomic"

	"github.com/conneroisu/lazyns/pkg/object"
)

// Importer loads a unit by absolute dotted path. *importer.Importer is
// the standard implementation.
type Importer interface {
	Import(ctx context.Context, path string) (any, error)
}

// Resolver turns a Location into a value. It keeps no state besides a
// resolution counter; caching lives in the importer (units) and in the
// modules (resolved names).
type Resolver struct {
	importer Importer
	count    atomic.Int64
}

// NewResolver creates a resolver over importer.
func NewResolver(importer Importer) *Resolver {
	return &Resolver{importer: importer}
}

// Resolve imports loc.Path and walks loc.Attribute. Import failures come
// back as import errors, traversal failures as attribute errors naming the
// whole chain. Nothing is retried or cached here.
func (r *Resolver) Resolve(ctx context.Context, loc Location) (any, error) {
	r.count.Add(1)
	unit, err := r.importer.Import(ctx, loc.Path)
	if err != nil {
		return nil, err
	}
	return object.Traverse(ctx, unit, loc.Path, loc.Attribute)
}

// Count returns how many resolutions were attempted.
func (r *Resolver) Count() int64 {
	return r.count.Load()
}
