package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Loader metrics
	ModulesLoadedTotal    *prometheus.CounterVec
	LoadDuration          *prometheus.HistogramVec
	OverridesAppliedTotal *prometheus.CounterVec
	RegisteredClasses     *prometheus.GaugeVec
	DiagnosticsTotal      *prometheus.CounterVec
	ReloadsTotal          *prometheus.CounterVec

	// Cache metrics
	ArchiveCacheTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugweave_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plugweave_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ModulesLoadedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugweave_modules_loaded_total",
				Help: "Total number of plugin modules processed, by outcome",
			},
			[]string{"spec", "status"},
		),
		LoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plugweave_load_duration_seconds",
				Help:    "Duration of a load pass for one capability spec",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"spec"},
		),
		OverridesAppliedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugweave_overrides_applied_total",
				Help: "Total number of override compositions written to a registry",
			},
			[]string{"spec"},
		),
		RegisteredClasses: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plugweave_registered_classes",
				Help: "Number of classes in a registry after the last load pass",
			},
			[]string{"spec", "registry"},
		),
		DiagnosticsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugweave_diagnostics_total",
				Help: "Total number of non-fatal loading failures",
			},
			[]string{"kind"},
		),
		ReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugweave_reloads_total",
				Help: "Total number of reloads, by trigger",
			},
			[]string{"trigger", "status"},
		),

		ArchiveCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugweave_archive_cache_total",
				Help: "Archive listing cache lookups",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ModulesLoadedTotal,
		m.LoadDuration,
		m.OverridesAppliedTotal,
		m.RegisteredClasses,
		m.DiagnosticsTotal,
		m.ReloadsTotal,
		m.ArchiveCacheTotal,
	)

	return m
}

// RecordModuleLoad counts one processed module; status is loaded, cached or failed
func (m *Metrics) RecordModuleLoad(spec, status string) {
	if m == nil {
		return
	}
	m.ModulesLoadedTotal.WithLabelValues(spec, status).Inc()
}

// ObserveLoadDuration records the duration of one load pass
func (m *Metrics) ObserveLoadDuration(spec string, d time.Duration) {
	if m == nil {
		return
	}
	m.LoadDuration.WithLabelValues(spec).Observe(d.Seconds())
}

// RecordOverride counts one applied override
func (m *Metrics) RecordOverride(spec string) {
	if m == nil {
		return
	}
	m.OverridesAppliedTotal.WithLabelValues(spec).Inc()
}

// SetRegisteredClasses records the size of a registry
func (m *Metrics) SetRegisteredClasses(spec, registry string, n int) {
	if m == nil {
		return
	}
	m.RegisteredClasses.WithLabelValues(spec, registry).Set(float64(n))
}

// RecordDiagnostic counts one diagnostic by kind
func (m *Metrics) RecordDiagnostic(kind string) {
	if m == nil {
		return
	}
	m.DiagnosticsTotal.WithLabelValues(kind).Inc()
}

// RecordReload counts one reload by trigger (watch, schedule, api)
func (m *Metrics) RecordReload(trigger string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ReloadsTotal.WithLabelValues(trigger, status).Inc()
}

// RecordArchiveCache counts an archive listing cache hit or miss
func (m *Metrics) RecordArchiveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ArchiveCacheTotal.WithLabelValues(result).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Routes matched by gorilla/mux are labelled by template to bound cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					path = tpl
				}
			}

			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler returns the /metrics handler for registry
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
