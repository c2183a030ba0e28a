package plugins

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/plugweave/pkg/observability"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/platinummonkey/plugweave/pkg/plugins"

// specState is the per-spec state owned by a Session
type specState struct {
	spec         *CapabilitySpec
	baseline     map[string]*Class
	modules      map[string]*LoadedModule
	compositions *compositions
	loadedAt     time.Time
}

// Session holds all mutable loading state for one logical use of the
// mechanism. Sessions never share roots, specs, records or flags.
type Session struct {
	id        string
	namespace string
	log       logrus.FieldLogger
	metrics   *observability.Metrics
	tracer    trace.Tracer

	mu          sync.RWMutex
	roots       []string
	initial     []string
	defaults    func() []string
	disabled    bool
	specs       []*specState
	byPackage   map[string]*specState
	effects     map[string]any
	diagnostics []Diagnostic
	allLoaded   bool

	cacheSize int
	cacheTTL  time.Duration
	prober    *Prober
	resolver  *Resolver
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics records loader metrics on m
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithTracer overrides the tracer taken from the global provider
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithNamespace sets the plugin namespace package name
func WithNamespace(namespace string) Option {
	return func(s *Session) {
		if namespace != "" {
			s.namespace = namespace
		}
	}
}

// WithSearchRoots sets the initial search roots; Sentinel expands to defaults
func WithSearchRoots(roots ...string) Option {
	return func(s *Session) { s.roots = slices.Clone(roots) }
}

// WithDefaultDirectories replaces the Sentinel expansion
func WithDefaultDirectories(fn func() []string) Option {
	return func(s *Session) {
		if fn != nil {
			s.defaults = fn
		}
	}
}

// WithArchiveCache sizes the archive listing cache
func WithArchiveCache(size int, ttl time.Duration) Option {
	return func(s *Session) {
		s.cacheSize = size
		s.cacheTTL = ttl
	}
}

// WithDisabled turns every load pass into a no-op
func WithDisabled(disabled bool) Option {
	return func(s *Session) { s.disabled = disabled }
}

// NewSession creates an isolated loading session
func NewSession(opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		namespace: DefaultNamespace,
		log:       logrus.New(),
		tracer:    otel.Tracer(tracerName),
		roots:     []string{Sentinel},
		defaults:  DefaultDirectories,
		disabled:  os.Getenv(DisableEnv) != "",
		byPackage: make(map[string]*specState),
		effects:   make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initial = slices.Clone(s.roots)
	s.log = s.log.WithField("session", s.id)
	s.prober = NewProber(s.cacheSize, s.cacheTTL, s.log, s.metrics)
	s.resolver = NewResolver(s.prober, s.namespace, s.expandedRoots, s.report, s.log)
	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Namespace returns the plugin namespace package name
func (s *Session) Namespace() string {
	return s.namespace
}

// RegisterSpec adds spec to the session. Registering the same spec again is
// a no-op; a different spec for an already registered package path, or a
// malformed spec, is an error.
func (s *Session) RegisterSpec(spec *CapabilitySpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.registerLocked(spec)
	return err
}

func (s *Session) registerLocked(spec *CapabilitySpec) (*specState, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if st, ok := s.byPackage[spec.PackagePath]; ok {
		if st.spec == spec {
			return st, nil
		}
		return nil, fmt.Errorf("%w: package %q already registered", ErrDuplicateSpec, spec.PackagePath)
	}

	st := &specState{
		spec:         spec,
		baseline:     spec.FullRegistry.Snapshot(),
		modules:      make(map[string]*LoadedModule),
		compositions: newCompositions(),
	}
	s.specs = append(s.specs, st)
	s.byPackage[spec.PackagePath] = st

	s.log.WithFields(logrus.Fields{
		"spec":   spec.PackagePath,
		"suffix": spec.RequiredSuffix,
	}).Debug("Registered capability spec")
	return st, nil
}

// Specs returns the registered specs in registration order
func (s *Session) Specs() []*CapabilitySpec {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*CapabilitySpec, 0, len(s.specs))
	for _, st := range s.specs {
		out = append(out, st.spec)
	}
	return out
}

// Spec returns the spec registered for packagePath
func (s *Session) Spec(packagePath string) (*CapabilitySpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byPackage[packagePath]
	if !ok {
		return nil, false
	}
	return st.spec, true
}

// Load runs one load pass for spec and returns the plugin classes it
// produced. An unregistered spec is registered first.
func (s *Session) Load(ctx context.Context, spec *CapabilitySpec) (map[string]*Class, error) {
	ctx, span := s.tracer.Start(ctx, "plugins.Load")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.registerLocked(spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("plugweave.spec", spec.PackagePath),
		attribute.String("plugweave.session", s.id),
	)

	result := s.loadLocked(ctx, st)
	span.SetAttributes(attribute.Int("plugweave.classes", len(result)))
	return result, nil
}

func (s *Session) loadLocked(ctx context.Context, st *specState) map[string]*Class {
	spec := st.spec
	log := s.log.WithField("spec", spec.PackagePath)
	if ctxLog := observability.LoggerFromContext(ctx); ctxLog != nil {
		log = ctxLog.WithFields(logrus.Fields{"session": s.id, "spec": spec.PackagePath})
	}

	if s.disabled || len(s.roots) == 0 {
		log.Debug("Plugin loading disabled, skipping load pass")
		return map[string]*Class{}
	}

	start := time.Now()
	pass := newLoadPass(s, st, log)
	result := pass.run()

	spec.PluginRegistry.replace(result)
	st.loadedAt = time.Now()

	s.metrics.ObserveLoadDuration(spec.PackagePath, time.Since(start))
	s.metrics.SetRegisteredClasses(spec.PackagePath, "full", spec.FullRegistry.Len())
	s.metrics.SetRegisteredClasses(spec.PackagePath, "plugin", spec.PluginRegistry.Len())
	log.WithFields(logrus.Fields{
		"classes":  len(result),
		"modules":  len(st.modules),
		"duration": time.Since(start),
	}).Info("Plugin load pass complete")

	return maps.Clone(result)
}

// LoadAll loads every registered spec once. Every spec is attempted even
// when an earlier one fails; the all-loaded flag is set afterwards. Further
// calls are no-ops until Reset or Reload.
func (s *Session) LoadAll(ctx context.Context) error {
	if s.AllLoaded() {
		return nil
	}
	return s.loadEvery(ctx)
}

// Reload loads every spec again regardless of the all-loaded flag. The flag
// stays set while a reload runs, so readiness holds across hot reloads.
func (s *Session) Reload(ctx context.Context) error {
	return s.loadEvery(ctx)
}

func (s *Session) loadEvery(ctx context.Context) error {
	s.mu.RLock()
	specs := make([]*CapabilitySpec, 0, len(s.specs))
	for _, st := range s.specs {
		specs = append(specs, st.spec)
	}
	s.mu.RUnlock()

	var errs []error
	for _, spec := range specs {
		if _, err := s.Load(ctx, spec); err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", spec.PackagePath, err))
		}
	}

	s.mu.Lock()
	s.allLoaded = true
	s.mu.Unlock()

	return errors.Join(errs...)
}

// AllLoaded reports whether LoadAll has completed since the last reset
func (s *Session) AllLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allLoaded
}

// SearchRoots returns the configured roots, Sentinel unexpanded
func (s *Session) SearchRoots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.roots)
}

// SetSearchRoots replaces the configured roots
func (s *Session) SetSearchRoots(roots ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roots = slices.Clone(roots)
	s.prober.Purge()
	s.log.WithField("roots", roots).Debug("Search roots changed")
}

// AddSearchRoot appends a root unless it is already configured
func (s *Session) AddSearchRoot(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.roots, root) {
		return
	}
	s.roots = append(s.roots, root)
	s.prober.Purge()
}

// Directories returns the concrete roots in configuration order, with the
// Sentinel expanded and duplicates removed
func (s *Session) Directories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expandedRoots()
}

func (s *Session) expandedRoots() []string {
	return expandRoots(s.roots, s.defaults)
}

// Locations resolves the merged package locations of a registered spec
func (s *Session) Locations(packagePath string) []Locator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.Resolve(packagePath)
}

// Modules returns the module records of a registered spec, sorted by name
func (s *Session) Modules(packagePath string) []LoadedModule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byPackage[packagePath]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(st.modules))
	for name := range st.modules {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]LoadedModule, 0, len(names))
	for _, name := range names {
		out = append(out, *st.modules[name])
	}
	return out
}

// Effects returns a copy of the side effects executed modules produced
func (s *Session) Effects() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.effects)
}

// Effect returns one side effect value
func (s *Session) Effect(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.effects[key]
	return v, ok
}

func (s *Session) applyEffects(effects map[string]any) {
	maps.Copy(s.effects, effects)
}

// Diagnostics returns every non-fatal failure recorded since the last reset
func (s *Session) Diagnostics() []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.diagnostics)
}

// report records a diagnostic; callers hold s.mu
func (s *Session) report(d Diagnostic) {
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	s.diagnostics = append(s.diagnostics, d)
	s.metrics.RecordDiagnostic(string(d.Kind))

	entry := s.log.WithFields(logrus.Fields{
		"kind":     d.Kind,
		"spec":     d.Spec,
		"module":   d.Module,
		"location": d.Location,
	})
	if d.Err != nil {
		entry = entry.WithError(d.Err)
	}
	switch d.Kind {
	case DiagnosticModuleImport:
		if d.Trace != "" {
			entry = entry.WithField("trace", d.Trace)
		}
		entry.Error("Error while importing plugin module")
	default:
		entry.Warn(d.Message)
	}
}

// Reset returns the session to its initial state: plugin registries are
// emptied, full registries are restored to their pre-plugin contents, and
// specs, records, effects, diagnostics and the all-loaded flag are cleared.
// Search roots go back to the ones the session was created with.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.specs {
		st.spec.PluginRegistry.replace(nil)
		st.spec.FullRegistry.replace(st.baseline)
	}
	s.specs = nil
	s.byPackage = make(map[string]*specState)
	s.effects = make(map[string]any)
	s.diagnostics = nil
	s.allLoaded = false
	s.roots = slices.Clone(s.initial)
	s.prober.Purge()

	s.log.Debug("Session reset")
}
