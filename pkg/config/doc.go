// Package config provides application configuration management backed by viper.
//
// # Overview
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then PLUGWEAVE_* environment variables. Nested keys map to variables by
// replacing dots with underscores.
//
// # Configuration Structure
//
// Plugin search:
//
//	PLUGWEAVE_ROOTS="/srv/plugins,default"   # "default" expands to the host directories
//	PLUGWEAVE_NAMESPACE="plugweave_plugins"
//	PLUGWEAVE_NO_PLUGINS="1"                 # disables every load pass
//
// Logging:
//
//	PLUGWEAVE_LOG_LEVEL="info"
//	PLUGWEAVE_LOG_FORMAT="text"              # text or json
//
// Hot reload:
//
//	PLUGWEAVE_WATCH_DEBOUNCE="500ms"
//	PLUGWEAVE_WATCH_RESCAN="*/5 * * * *"     # standard cron expression
//
// Server and observability:
//
//	PLUGWEAVE_HTTP_ADDR="127.0.0.1:8080"
//	PLUGWEAVE_METRICS_ENABLED="true"
//	PLUGWEAVE_OTEL_ENABLED="false"
//	PLUGWEAVE_OTEL_ENDPOINT="localhost:4317"
//
// Capability specs can only be set from the file:
//
//	specs:
//	  - package: extractor
//	    suffix: IE
//
// # Usage
//
//	cfg, err := config.Load(configPath)
//	session := plugins.NewSession(cfg.SessionOptions(log, metrics)...)
//	for _, spec := range cfg.CapabilitySpecs() {
//	    session.RegisterSpec(spec)
//	}
package config
