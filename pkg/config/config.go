package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/platinummonkey/plugweave/pkg/observability"
	"github.com/platinummonkey/plugweave/pkg/plugins"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable read by Load
	EnvPrefix = "PLUGWEAVE"
	// ConfigFileName is the name of the config file (without extension)
	ConfigFileName = "config"
)

// Config holds all application configuration
type Config struct {
	// Plugin search configuration
	Roots     []string     `mapstructure:"roots"`
	Namespace string       `mapstructure:"namespace"`
	NoPlugins bool         `mapstructure:"no_plugins"`
	Specs     []SpecConfig `mapstructure:"specs"`

	Log          LogConfig          `mapstructure:"log"`
	ArchiveCache ArchiveCacheConfig `mapstructure:"archive_cache"`
	Watch        WatchConfig        `mapstructure:"watch"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	OTel         OTelConfig         `mapstructure:"otel"`
}

// SpecConfig declares one capability kind the host loads plugins for
type SpecConfig struct {
	Package string `mapstructure:"package"`
	Suffix  string `mapstructure:"suffix"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ArchiveCacheConfig sizes the archive listing cache
type ArchiveCacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// WatchConfig holds hot reload settings
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	// Rescan is a cron expression; empty disables periodic rescans
	Rescan string `mapstructure:"rescan"`
}

// HTTPConfig holds inspection API server settings
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Endpoint       string `mapstructure:"endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Insecure       bool   `mapstructure:"insecure"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	return &Config{
		Roots:     []string{plugins.Sentinel},
		Namespace: plugins.DefaultNamespace,
		Specs: []SpecConfig{
			{Package: "extractor", Suffix: "IE"},
			{Package: "postprocessor", Suffix: "PP"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: observability.FormatText,
		},
		ArchiveCache: ArchiveCacheConfig{
			Size: plugins.DefaultArchiveCacheSize,
			TTL:  plugins.DefaultArchiveCacheTTL,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		HTTP: HTTPConfig{
			Addr:            "127.0.0.1:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{Enabled: true},
		OTel: OTelConfig{
			Endpoint:       "localhost:4317",
			ServiceName:    "plugweave",
			ServiceVersion: "dev",
			Insecure:       true,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and
// PLUGWEAVE_* environment variables, in increasing precedence. When path is
// empty, <config dir>/plugweave/config.yaml is used if it exists.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		if dir, err := ConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("roots", d.Roots)
	v.SetDefault("namespace", d.Namespace)
	v.SetDefault("no_plugins", d.NoPlugins)
	v.SetDefault("specs", []map[string]any{
		{"package": d.Specs[0].Package, "suffix": d.Specs[0].Suffix},
		{"package": d.Specs[1].Package, "suffix": d.Specs[1].Suffix},
	})
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("archive_cache.size", d.ArchiveCache.Size)
	v.SetDefault("archive_cache.ttl", d.ArchiveCache.TTL)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.rescan", d.Watch.Rescan)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("otel.enabled", d.OTel.Enabled)
	v.SetDefault("otel.endpoint", d.OTel.Endpoint)
	v.SetDefault("otel.service_name", d.OTel.ServiceName)
	v.SetDefault("otel.service_version", d.OTel.ServiceVersion)
	v.SetDefault("otel.insecure", d.OTel.Insecure)
}

// ConfigDir returns the plugweave configuration directory
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "plugweave"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, "plugweave"), nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if strings.ContainsAny(c.Namespace, "./\\") {
		return fmt.Errorf("invalid namespace %q: must be a single package name", c.Namespace)
	}

	seen := make(map[string]bool, len(c.Specs))
	for i, s := range c.Specs {
		if s.Package == "" || s.Suffix == "" {
			return fmt.Errorf("specs[%d]: package and suffix are required", i)
		}
		if seen[s.Package] {
			return fmt.Errorf("specs[%d]: duplicate package %q", i, s.Package)
		}
		seen[s.Package] = true
	}

	if c.ArchiveCache.Size <= 0 {
		return fmt.Errorf("archive cache size must be positive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case observability.FormatText, observability.FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q (must be text or json)", c.Log.Format)
	}

	if c.Watch.Rescan != "" {
		if _, err := cron.ParseStandard(c.Watch.Rescan); err != nil {
			return fmt.Errorf("invalid watch.rescan schedule %q: %w", c.Watch.Rescan, err)
		}
	}

	if c.OTel.Enabled {
		if c.OTel.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.OTel.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// CapabilitySpecs builds one spec per configured capability kind, each with
// fresh, empty registries
func (c *Config) CapabilitySpecs() []*plugins.CapabilitySpec {
	specs := make([]*plugins.CapabilitySpec, 0, len(c.Specs))
	for _, s := range c.Specs {
		specs = append(specs, &plugins.CapabilitySpec{
			PackagePath:    s.Package,
			RequiredSuffix: s.Suffix,
			FullRegistry:   plugins.NewRegistry(s.Package),
			PluginRegistry: plugins.NewRegistry("plugin-" + s.Package),
		})
	}
	return specs
}

// SessionOptions translates the configuration into session options
func (c *Config) SessionOptions(log logrus.FieldLogger, metrics *observability.Metrics) []plugins.Option {
	return []plugins.Option{
		plugins.WithLogger(log),
		plugins.WithMetrics(metrics),
		plugins.WithNamespace(c.Namespace),
		plugins.WithSearchRoots(c.Roots...),
		plugins.WithArchiveCache(c.ArchiveCache.Size, c.ArchiveCache.TTL),
		plugins.WithDisabled(c.NoPlugins || os.Getenv(plugins.DisableEnv) != ""),
	}
}

// ObservabilityOTel returns the tracing settings in observability form
func (c *Config) ObservabilityOTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTel.Enabled,
		Endpoint:       c.OTel.Endpoint,
		ServiceName:    c.OTel.ServiceName,
		ServiceVersion: c.OTel.ServiceVersion,
		Insecure:       c.OTel.Insecure,
	}
}
