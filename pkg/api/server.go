package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/plugweave/pkg/hotreload"
	"github.com/platinummonkey/plugweave/pkg/httputil"
	"github.com/platinummonkey/plugweave/pkg/observability"
	"github.com/platinummonkey/plugweave/pkg/plugins"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server is the plugin inspection API
type Server struct {
	session  *plugins.Session
	reloader *hotreload.Reloader
	health   *observability.HealthChecker
	metrics  *observability.Metrics
	registry *prometheus.Registry
	log      logrus.FieldLogger
	version  string

	router  *mux.Router
	handler http.Handler
}

// Option configures a Server
type Option func(*Server)

// WithReloader enables POST /api/v1/reload
func WithReloader(r *hotreload.Reloader) Option {
	return func(s *Server) { s.reloader = r }
}

// WithMetrics instruments requests and serves registry on /metrics
func WithMetrics(metrics *observability.Metrics, registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = metrics
		s.registry = registry
	}
}

// WithLogger sets the request logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithVersion sets the version reported by the health endpoints
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// NewServer creates an API server over session
func NewServer(session *plugins.Session, opts ...Option) *Server {
	s := &Server{
		session: session,
		log:     logrus.New(),
		router:  mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "api")

	s.health = observability.NewHealthChecker(s.version)
	s.health.AddCheck("plugins", s.checkPlugins)

	s.setupRoutes()

	s.handler = otelhttp.NewHandler(
		httputil.Chain(
			httputil.RequestIDMiddleware,
			httputil.LoggingMiddleware(s.log),
			httputil.RecoveryMiddleware(s.log),
		)(s.router),
		"plugweave.api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))

	s.router.HandleFunc("/health/live", s.health.Liveness).Methods(http.MethodGet)
	s.router.HandleFunc("/health/ready", s.health.Readiness).Methods(http.MethodGet)
	if s.registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.registry)).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/session", s.getSession).Methods(http.MethodGet)
	v1.HandleFunc("/specs", s.listSpecs).Methods(http.MethodGet)
	v1.HandleFunc("/specs/{package}/classes", s.listClasses).Methods(http.MethodGet)
	v1.HandleFunc("/specs/{package}/classes/{name}", s.getClass).Methods(http.MethodGet)
	v1.HandleFunc("/specs/{package}/modules", s.listModules).Methods(http.MethodGet)
	v1.HandleFunc("/directories", s.listDirectories).Methods(http.MethodGet)
	v1.HandleFunc("/diagnostics", s.listDiagnostics).Methods(http.MethodGet)
	v1.HandleFunc("/reload", s.reload).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router so callers can add routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// HTTPServer wraps the API in an http.Server with the given timeouts
func (s *Server) HTTPServer(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return plugins.WithSession(context.Background(), s.session)
		},
	}
}

// checkPlugins is ready once every spec has been loaded; recorded
// diagnostics degrade it
func (s *Server) checkPlugins(_ context.Context) observability.DependencyStatus {
	if !s.session.AllLoaded() {
		return observability.DependencyStatus{
			Status:  observability.StatusUnhealthy,
			Message: "plugins not loaded",
		}
	}
	if n := len(s.session.Diagnostics()); n > 0 {
		return observability.DependencyStatus{
			Status:  observability.StatusDegraded,
			Message: fmt.Sprintf("%d diagnostics recorded", n),
		}
	}
	return observability.DependencyStatus{Status: observability.StatusHealthy}
}
