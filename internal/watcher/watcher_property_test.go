//go:build property

package watcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties validates batching of rapid changes
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	// Property: a burst yields one batch with one event per distinct path
	properties.Property("debouncer collapses bursts per path", prop.ForAll(
		func(paths int, repeats int) bool {
			d := NewDebouncer(20 * time.Millisecond)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go d.start(ctx)

			for r := 0; r < repeats; r++ {
				for p := 0; p < paths; p++ {
					d.events <- ChangeEvent{Path: fmt.Sprintf("spec%d.yaml", p), Type: EventTypeModified}
				}
			}

			select {
			case events := <-d.output:
				if len(events) != paths {
					return false
				}
				for i := 1; i < len(events); i++ {
					if events[i-1].Path >= events[i].Path {
						return false
					}
				}
				return true
			case <-time.After(2 * time.Second):
				return false
			}
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}
