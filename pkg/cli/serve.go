package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/platinummonkey/plugweave/pkg/api"
	"github.com/platinummonkey/plugweave/pkg/hotreload"
	"github.com/platinummonkey/plugweave/pkg/observability"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		addr     string
		noWatch  bool
		debounce time.Duration
		rescan   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the plugin inspection API",
		Long: `Load every configured spec and serve a read-only HTTP API over the session,
with health probes and Prometheus metrics. Plugin trees are watched for changes
unless --no-watch is given; POST /api/v1/reload forces a reload.`,
		Example: `  plugweave serve --root ./plugins --addr :8080`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.applyWatchFlags(cmd, debounce, rescan)
			if cmd.Flags().Changed("addr") {
				a.cfg.HTTP.Addr = addr
			}
			ctx := cmd.Context()

			providers, err := observability.InitOTel(ctx, a.cfg.ObservabilityOTel(), a.log)
			if err != nil {
				return err
			}

			session, err := a.loadedSession(ctx)
			if err != nil {
				return err
			}
			printSummary(cmd, session)
			reloader := hotreload.NewReloader(session, a.log, a.metrics)

			opts := []api.Option{
				api.WithReloader(reloader),
				api.WithLogger(a.log),
				api.WithVersion(Version),
			}
			if a.registry != nil {
				opts = append(opts, api.WithMetrics(a.metrics, a.registry))
			}
			server := api.NewServer(session, opts...).HTTPServer(a.cfg.HTTP.Addr, a.cfg.HTTP.ReadTimeout, a.cfg.HTTP.WriteTimeout)

			shutdown := observability.NewShutdownManager(a.log, server, a.cfg.HTTP.ShutdownTimeout)
			if providers != nil {
				shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
					return observability.ShutdownOTel(ctx, providers, a.log)
				})
			}
			if !noWatch {
				if err := a.startReloading(session, reloader, shutdown); err != nil {
					return err
				}
			}

			ln, err := net.Listen("tcp", a.cfg.HTTP.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", a.cfg.HTTP.Addr, err)
			}
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.log.WithError(err).Error("HTTP server failed")
				}
			}()
			a.log.WithField("addr", ln.Addr().String()).Info("Serving plugin API")

			return shutdown.WaitForShutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from http.addr)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch plugin trees for changes")
	addWatchFlags(cmd, &debounce, &rescan)
	return cmd
}
