package cli

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/platinummonkey/plugweave/pkg/config"
	"github.com/platinummonkey/plugweave/pkg/observability"
	"github.com/platinummonkey/plugweave/pkg/plugins"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// app carries the state every subcommand shares; it is filled in by the
// root command's PersistentPreRunE
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	roots      []string
	noPlugins  bool

	cfg      *config.Config
	log      *logrus.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
}

// NewRootCommand builds the plugweave command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "plugweave",
		Short: "Discover, load and inspect declarative plugins",
		Long: `plugweave discovers plugin modules under a virtual namespace spread
across directories and zip archives, loads them into per-capability registries,
and composes override plugins onto the classes they patch.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file path (default is $XDG_CONFIG_HOME/plugweave/config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format (text, json)")
	flags.StringSliceVar(&a.roots, "root", nil, `Search root, repeatable; "default" expands to the standard plugin directories`)
	flags.BoolVar(&a.noPlugins, "no-plugins", false, "Disable plugin loading")

	rootCmd.AddCommand(newListCommand(a))
	rootCmd.AddCommand(newDirsCommand(a))
	rootCmd.AddCommand(newInspectCommand(a))
	rootCmd.AddCommand(newWatchCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newPackCommand(a))
	rootCmd.AddCommand(newValidateCommand(a))

	return rootCmd
}

// Execute runs the command tree against ctx
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// setup loads configuration, applies flag overrides and builds the logger
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.Roots = a.roots
	}
	if flags.Changed("no-plugins") {
		cfg.NoPlugins = a.noPlugins
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.metrics = observability.NewMetrics(a.registry)
	}
	return nil
}

// newSession builds a session with every configured spec registered
func (a *app) newSession() (*plugins.Session, error) {
	session := plugins.NewSession(a.cfg.SessionOptions(a.log, a.metrics)...)
	for _, spec := range a.cfg.CapabilitySpecs() {
		if err := session.RegisterSpec(spec); err != nil {
			return nil, fmt.Errorf("failed to register spec %s: %w", spec.PackagePath, err)
		}
	}
	return session, nil
}

// loadedSession builds a session and runs LoadAll; load errors are logged,
// diagnostics stay on the session
func (a *app) loadedSession(ctx context.Context) (*plugins.Session, error) {
	session, err := a.newSession()
	if err != nil {
		return nil, err
	}
	if err := session.LoadAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to load plugins: %w", err)
	}
	if diags := session.Diagnostics(); len(diags) > 0 {
		a.log.WithField("count", len(diags)).Warn("Plugins loaded with diagnostics")
	}
	return session, nil
}

// specsFor resolves package arguments, defaulting to every registered spec
func specsFor(session *plugins.Session, packages []string) ([]*plugins.CapabilitySpec, error) {
	if len(packages) == 0 {
		return session.Specs(), nil
	}
	specs := make([]*plugins.CapabilitySpec, 0, len(packages))
	for _, pkg := range packages {
		spec, ok := session.Spec(pkg)
		if !ok {
			return nil, fmt.Errorf("unknown spec %q", pkg)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
