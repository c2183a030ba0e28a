// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// Everything here is shared by the loader, the hot-reload watcher and the
// inspection API; none of it depends on the plugins package.
//
// # Structured Logging
//
// Create logger:
//
//	log, err := observability.NewLogger("info", observability.FormatText, os.Stderr)
//	log.WithField("spec", "extractor").Info("Plugin load pass complete")
//
// Context-aware logging:
//
//	ctx = observability.WithLogger(ctx, log)
//	observability.FromContext(ctx, nil).Warn("module failed")
//
// # Prometheus Metrics
//
// Initialize metrics on an explicit registry:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordModuleLoad("extractor", "loaded")
//
// A nil *Metrics records nothing, so library code can take one unconditionally.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("plugins", func(ctx context.Context) observability.DependencyStatus { ... })
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		ServiceName: "plugweave",
//		Endpoint:    "otel-collector:4317",
//	}, log)
//	defer observability.ShutdownOTel(ctx, providers, log)
//
// # Panics and Shutdown
//
// RecoverPanic logs a recovered panic in a defer; PanicError converts one into
// an error. ShutdownManager stops the HTTP server, then runs registered
// functions last-registered-first within a single deadline.
package observability
