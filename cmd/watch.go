package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/lazyns/internal/config"
	"github.com/conneroisu/lazyns/internal/logging"
	"github.com/conneroisu/lazyns/internal/watcher"
	"github.com/conneroisu/lazyns/pkg/lazyns"
	"github.com/conneroisu/lazyns/pkg/registry"
	"github.com/conneroisu/lazyns/pkg/specfile"
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-initialize a spec file's package on every change",
	Long: `Watch initializes the spec file, then follows it for changes. Each change
re-initializes the package in place, so the registry entry keeps its
identity while the declarations are replaced. Registry events are printed
as they happen.

A change that no longer parses is logged and the previous namespace stays
installed.

Examples:
  lazyns watch api.yaml
  LAZYNS_WATCH_DEBOUNCE=1s lazyns watch api.toml`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	path := args[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := newRuntime(cfg, logger)
	events := rt.Registry().Watch()
	defer rt.Registry().UnWatch(events)

	if err := reloadSpec(ctx, rt, cfg, logger, path); err != nil {
		return err
	}

	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Stop()

	fw.AddFilter(watcher.IgnoreFilter(cfg.Watch.Ignore...))
	if err := fw.AddFile(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	fw.AddHandler(func(changes []watcher.ChangeEvent) error {
		for _, change := range changes {
			if change.Type == watcher.EventTypeDeleted {
				logger.Info(ctx, "Spec file removed, keeping current namespace", "file", change.Path)
				return nil
			}
		}
		return reloadSpec(ctx, rt, cfg, logger, path)
	})

	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	logger.Info(ctx, "Watching spec file", "file", path, "debounce", cfg.Watch.Debounce)

	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-events:
			fmt.Fprintln(out, eventLine(event))
		}
	}
}

// reloadSpec loads path and initializes its package into rt, replacing
// an earlier namespace in place.
func reloadSpec(ctx context.Context, rt *lazyns.Runtime, cfg *config.Config, logger logging.Logger, path string) error {
	op := logging.StartOperation(logger, "reload_spec")

	f, err := specfile.Load(path)
	if err != nil {
		op.EndWithError(ctx, err)
		return err
	}
	spec, err := f.Spec()
	if err != nil {
		op.EndWithError(ctx, err)
		return err
	}
	mod, err := rt.Init(ctx, f.Package, spec, append(cfg.InitOptions(), f.InitOptions()...)...)
	if err != nil {
		op.EndWithError(ctx, err)
		return err
	}

	logger.Debug(ctx, "Spec file loaded", "package", mod.Name(), "pending", len(mod.Pending()))
	op.End(ctx)
	return nil
}

// eventLine renders a registry event the way watch prints it.
func eventLine(event registry.Event) string {
	return fmt.Sprintf("%s %-8s %s", event.Timestamp.Format(time.TimeOnly), event.Type, event.Name)
}
