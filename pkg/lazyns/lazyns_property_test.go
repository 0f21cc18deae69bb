//go:build property

package lazyns

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
	"github.com/conneroisu/lazyns/pkg/importer"
	"github.com/conneroisu/lazyns/pkg/registry"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestResolutionProperties validates the resolve-once behaviour of namespaces
func TestResolutionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	// Property: every declared name resolves to the unit's value, exactly once
	properties.Property("names resolve once and stay cached", prop.ForAll(
		func(count int, reads int) bool {
			ctx := context.Background()
			im := importer.New(registry.New())
			rt := New(WithImporter(im), WithVersionLookup(nil))

			attrs := make(map[string]any, count)
			spec := ExportSpec{}
			for i := 0; i < count; i++ {
				attrs[fmt.Sprintf("v%d", i)] = &struct{ I int }{I: i}
				spec[fmt.Sprintf("n%d", i)] = fmt.Sprintf(".impl:v%d", i)
			}
			im.MustRegister("prop.impl", importer.Unit("prop.impl", attrs))

			mod, err := rt.Init(ctx, "prop", spec)
			if err != nil {
				return false
			}

			for r := 0; r < reads; r++ {
				for i := 0; i < count; i++ {
					v, err := mod.GetAttr(ctx, fmt.Sprintf("n%d", i))
					if err != nil || v != attrs[fmt.Sprintf("v%d", i)] {
						return false
					}
				}
			}
			return rt.Resolver().Count() == int64(count) && len(mod.Pending()) == 0
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 5),
	))

	// Property: the hook runs once however many goroutines race for first access
	properties.Property("hook runs exactly once under concurrency", prop.ForAll(
		func(goroutines int) bool {
			ctx := context.Background()
			im := importer.New(registry.New())
			rt := New(WithImporter(im), WithVersionLookup(nil))

			var runs atomic.Int32
			attrs := map[string]any{"hook": func() { runs.Add(1) }}
			spec := ExportSpec{HookName: ".impl:hook"}
			for i := 0; i < goroutines; i++ {
				attrs[fmt.Sprintf("v%d", i)] = i
				spec[fmt.Sprintf("n%d", i)] = fmt.Sprintf(".impl:v%d", i)
			}
			im.MustRegister("prop.impl", importer.Unit("prop.impl", attrs))

			mod, err := rt.Init(ctx, "prop", spec)
			if err != nil {
				return false
			}

			var wg sync.WaitGroup
			var failed atomic.Bool
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					v, err := mod.GetAttr(ctx, fmt.Sprintf("n%d", i))
					if err != nil || v != i {
						failed.Store(true)
					}
				}(i)
			}
			wg.Wait()

			return !failed.Load() && runs.Load() == 1
		},
		gen.IntRange(1, 32),
	))

	// Property: parsed locations render back to their input
	properties.Property("location round trip", prop.ForAll(
		func(path, attr string) bool {
			text := path
			if attr != "" {
				text += ":" + attr
			}
			loc, err := ParseLocation(text)
			if err != nil {
				return false
			}
			return loc.String() == text
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	// Property: an export never takes the registry slot of a unit it reads
	properties.Property("exports on imported paths are rejected", prop.ForAll(
		func(name string) bool {
			rt := New(WithImporter(importer.New(registry.New())), WithVersionLookup(nil))
			ctx := context.Background()

			_, err := rt.Init(ctx, "pkg", ExportSpec{name: "." + name})
			if !lnerrors.IsSpecError(err) || rt.Registry().Has("pkg") {
				return false
			}
			_, err = rt.Init(ctx, "pkg", ExportSpec{
				name + "_reader": "." + name + ":v",
				name:             ExportSpec{"w": ".impl:w"},
			})
			if !lnerrors.IsSpecError(err) {
				return false
			}
			_, err = rt.Init(ctx, "pkg", ExportSpec{name: "." + name + "_impl"})
			return err == nil
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
