package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/plugweave/pkg/hotreload"
	"github.com/platinummonkey/plugweave/pkg/observability"
	"github.com/platinummonkey/plugweave/pkg/plugins"
	"github.com/spf13/cobra"
)

func newWatchCommand(a *app) *cobra.Command {
	var (
		debounce time.Duration
		rescan   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Load plugins and reload them whenever the plugin trees change",
		Long: `Load every configured spec, then watch the search roots with fsnotify and
reload after each burst of changes. A cron expression given with --rescan (or
watch.rescan) also reloads periodically, for trees on filesystems that do not
deliver change events. Runs until interrupted.`,
		Example: `  plugweave watch --root ./plugins --log-level debug
  plugweave watch --rescan "@every 5m"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.applyWatchFlags(cmd, debounce, rescan)

			ctx := cmd.Context()
			session, err := a.loadedSession(ctx)
			if err != nil {
				return err
			}
			printSummary(cmd, session)

			shutdown := observability.NewShutdownManager(a.log, nil, a.cfg.HTTP.ShutdownTimeout)
			reloader := hotreload.NewReloader(session, a.log, a.metrics)
			if err := a.startReloading(session, reloader, shutdown); err != nil {
				return err
			}
			return shutdown.WaitForShutdown(ctx)
		},
	}

	addWatchFlags(cmd, &debounce, &rescan)
	return cmd
}

func addWatchFlags(cmd *cobra.Command, debounce *time.Duration, rescan *string) {
	cmd.Flags().DurationVar(debounce, "debounce", 0, "Quiet period after the last change before reloading")
	cmd.Flags().StringVar(rescan, "rescan", "", `Cron schedule for periodic rescans, e.g. "@every 5m"`)
}

func (a *app) applyWatchFlags(cmd *cobra.Command, debounce time.Duration, rescan string) {
	if cmd.Flags().Changed("debounce") {
		a.cfg.Watch.Debounce = debounce
	}
	if cmd.Flags().Changed("rescan") {
		a.cfg.Watch.Rescan = rescan
	}
}

// startReloading runs a watcher, and a scheduler when a rescan schedule is
// configured, until shutdown runs
func (a *app) startReloading(session *plugins.Session, reloader *hotreload.Reloader, shutdown *observability.ShutdownManager) error {
	watcher, err := hotreload.NewWatcher(session, reloader, a.cfg.Watch.Debounce, a.log)
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(watchCtx) }()
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if a.cfg.Watch.Rescan == "" {
		return nil
	}
	scheduler, err := hotreload.NewScheduler(a.cfg.Watch.Rescan, reloader, a.log)
	if err != nil {
		return err
	}
	scheduler.Start()
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return nil
}

func printSummary(cmd *cobra.Command, session *plugins.Session) {
	out := cmd.OutOrStdout()
	for _, spec := range session.Specs() {
		fmt.Fprintf(out, "%s: %d plugin classes, %d registered\n",
			spec.PackagePath, spec.PluginRegistry.Len(), spec.FullRegistry.Len())
	}
}
