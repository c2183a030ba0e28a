package plugins

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"path"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/platinummonkey/plugweave/pkg/observability"
	"github.com/sirupsen/logrus"
)

// LoadedModule records one executed plugin module
type LoadedModule struct {
	QualifiedName string            `json:"qualified_name"`
	Location      string            `json:"location"`
	Digest        string            `json:"digest"`
	Exports       []string          `json:"exports,omitempty"`
	Classes       []*Class          `json:"-"`
	Registered    map[string]*Class `json:"-"`
	Overrides     []AppliedOverride `json:"overrides,omitempty"`
	LoadedAt      time.Time         `json:"loaded_at"`

	// steps replays the module's registry changes when it is reused
	steps []step
	// refs are the names the module resolved outside itself
	refs []reference
	// bound maps each declared class name to what later modules see: the
	// class itself, or the composed target for an override
	bound map[string]*Class
}

// AppliedOverride names one target a module patched
type AppliedOverride struct {
	Target     string `json:"target"`
	PluginName string `json:"plugin_name"`
}

// step is a harvested class when target is empty, otherwise an override
type step struct {
	class  *Class
	target string
	patch  string
}

type reference struct {
	name     string
	imported bool
	class    *Class
}

// loadPass holds the state of one Load call for one spec
type loadPass struct {
	session *Session
	state   *specState
	log     logrus.FieldLogger

	// pool holds classes defined by modules already processed in this pass
	pool   map[string]*Class
	result map[string]*Class
}

func newLoadPass(s *Session, st *specState, log logrus.FieldLogger) *loadPass {
	return &loadPass{
		session: s,
		state:   st,
		log:     log,
		pool:    make(map[string]*Class),
		result:  make(map[string]*Class),
	}
}

func (l *loadPass) spec() *CapabilitySpec {
	return l.state.spec
}

// enumerate lists candidate modules across every resolved location.
// Excluded leaves are dropped before anything is read; the first location
// providing a leaf wins.
func (l *loadPass) enumerate() []moduleRef {
	prober := l.session.prober
	seen := make(map[string]bool)

	var refs []moduleRef
	for _, loc := range l.session.resolver.Resolve(l.spec().PackagePath) {
		entries, err := prober.children(loc)
		if err != nil {
			l.session.report(Diagnostic{
				Kind:     DiagnosticArchiveUnreadable,
				Spec:     l.spec().PackagePath,
				Location: loc.String(),
				Message:  fmt.Sprintf("failed to list package contents: %v", err),
				Err:      err,
			})
			continue
		}
		slices.SortFunc(entries, func(a, b entry) int { return strings.Compare(a.name, b.name) })

		for _, e := range entries {
			if strings.HasPrefix(e.name, ExclusionMarker) {
				l.log.WithField("module", e.name).Debug("Skipping excluded module")
				continue
			}
			ref, ok := prober.candidate(loc, e)
			if !ok || seen[ref.leaf] {
				continue
			}
			seen[ref.leaf] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

func (l *loadPass) qualifiedName(leaf string) string {
	return l.session.namespace + "." + l.spec().PackagePath + "." + leaf
}

func memberLocation(loc Locator, member string) string {
	if loc.Kind == LocatorArchive {
		return loc.Path + "!/" + path.Join(loc.Prefix, member)
	}
	return filepath.Join(loc.Path, filepath.FromSlash(member))
}

// run rebuilds the full registry from its pre-plugin contents, processing
// every module in enumeration order, and returns the plugin capability classes.
// Unchanged modules are replayed instead of executed, so a reload ends in the
// same state as a fresh load of the same tree.
func (l *loadPass) run() map[string]*Class {
	if n := stripPlugins(l.spec().FullRegistry, l.state.baseline); n > 0 {
		l.log.WithField("entries", n).Debug("Restored pre-plugin registry entries")
	}

	seen := make(map[string]bool)
	for _, ref := range l.enumerate() {
		qn := l.qualifiedName(ref.leaf)
		seen[qn] = true
		l.loadModule(ref, qn)
	}

	for qn := range l.state.modules {
		if seen[qn] {
			continue
		}
		l.log.WithField("module", qn).Info("Plugin module no longer present, retiring")
		delete(l.state.modules, qn)
	}
	l.state.compositions.sweep()
	return l.result
}

func (l *loadPass) loadModule(ref moduleRef, qn string) {
	location := memberLocation(ref.location, ref.member)
	log := l.log.WithFields(logrus.Fields{
		"module":   qn,
		"location": location,
	})
	prev := l.state.modules[qn]
	metrics := l.session.metrics

	data, err := l.session.prober.read(ref.location, ref.member)
	if err != nil {
		l.fail(qn, location, fmt.Errorf("%w: %v", ErrModuleImport, err), "")
		return
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	if prev != nil && prev.Location == location && prev.Digest == digest {
		if l.current(prev) {
			log.Debug("Plugin module unchanged, reusing previous classes")
			l.replay(prev)
			l.collect(prev)
			metrics.RecordModuleLoad(l.spec().PackagePath, "cached")
			return
		}
		log.Debug("Classes resolved by plugin module changed, executing again")
	}

	full := l.spec().FullRegistry
	before, harvested := full.Snapshot(), maps.Clone(l.result)
	rec, trace, err := l.execute(ref, qn, location, digest, data)
	if err != nil {
		full.replace(before)
		l.result = harvested
		l.fail(qn, location, err, trace)
		return
	}

	l.state.modules[qn] = rec
	l.collect(rec)

	metrics.RecordModuleLoad(l.spec().PackagePath, "loaded")
	log.WithFields(logrus.Fields{
		"classes":   len(rec.Registered),
		"overrides": len(rec.Overrides),
	}).Info("Loaded plugin module")
}

// current reports whether every name rec resolved outside itself still
// resolves to the same class
func (l *loadPass) current(rec *LoadedModule) bool {
	for _, r := range rec.refs {
		var got *Class
		if r.imported {
			got, _ = l.resolveImport(r.name)
		} else {
			got, _ = l.spec().FullRegistry.Get(r.name)
		}
		if got != r.class {
			return false
		}
	}
	return true
}

// replay re-applies the registry changes of a module that is not executed again
func (l *loadPass) replay(rec *LoadedModule) {
	full := l.spec().FullRegistry
	for _, s := range rec.steps {
		if s.target == "" {
			l.harvest(s.class.name, s.class)
			continue
		}
		target, ok := full.Get(s.target)
		if !ok {
			l.log.WithFields(logrus.Fields{
				"module": rec.QualifiedName,
				"target": s.target,
			}).Warn("Override target vanished during replay")
			continue
		}
		composed := l.state.compositions.intern(layer(target, s.class, s.patch))
		l.install(s.target, composed)
		rec.bound[s.class.name] = composed
	}
}

func (l *loadPass) collect(rec *LoadedModule) {
	for _, c := range rec.Classes {
		if _, ok := l.pool[c.name]; !ok {
			l.pool[c.name] = rec.bound[c.name]
		}
	}
}

// harvest registers a plugin capability class right away, so later
// declarations in this pass can target it
func (l *loadPass) harvest(name string, class *Class) {
	l.spec().FullRegistry.set(name, class)
	l.result[name] = class
}

// install writes a composed class over its target, keeping a plugin
// capability's result entry in step
func (l *loadPass) install(target string, composed *Class) {
	l.spec().FullRegistry.set(target, composed)
	if _, ok := l.result[target]; ok {
		l.result[target] = composed
	}
}

// fail reports a module that could not be executed; it contributes nothing
func (l *loadPass) fail(qn, location string, err error, trace string) {
	l.session.report(Diagnostic{
		Kind:     DiagnosticModuleImport,
		Spec:     l.spec().PackagePath,
		Module:   qn,
		Location: location,
		Message:  err.Error(),
		Trace:    trace,
		Err:      err,
	})
	l.session.metrics.RecordModuleLoad(l.spec().PackagePath, "failed")
	delete(l.state.modules, qn)
}

// execute decodes a module and builds its classes. Panics are recovered.
func (l *loadPass) execute(ref moduleRef, qn, location, digest string, data []byte) (rec *LoadedModule, trace string, err error) {
	rec = &LoadedModule{
		QualifiedName: qn,
		Location:      location,
		Digest:        digest,
		Registered:    make(map[string]*Class),
		LoadedAt:      time.Now(),
		bound:         make(map[string]*Class),
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrModuleImport, observability.PanicError(r))
			trace = string(debug.Stack())
		}
	}()

	src, err := DecodeModule(ref.member, data)
	if err != nil {
		return rec, "", fmt.Errorf("%w: %v", ErrModuleImport, err)
	}
	rec.Exports = src.Exports

	namespace := make(map[string]*Class, len(src.Imports))
	for _, name := range src.Imports {
		class, ok := l.resolveImport(name)
		if !ok {
			return rec, "", fmt.Errorf("%w: cannot import %q", ErrModuleImport, name)
		}
		rec.refs = append(rec.refs, reference{name: name, imported: true, class: class})
		namespace[name] = class
	}

	l.session.applyEffects(src.Effects)

	for _, decl := range src.Classes {
		l.declare(ref, rec, decl, namespace, src.Exports)
	}
	return rec, "", nil
}

func (l *loadPass) resolveImport(name string) (*Class, bool) {
	if c, ok := l.pool[name]; ok {
		return c, true
	}
	return l.spec().FullRegistry.Get(name)
}

// resolveBase finds the class decl.Extends names: the module's own
// namespace first, then the full registry
func (l *loadPass) resolveBase(rec *LoadedModule, name string, namespace map[string]*Class) (*Class, bool) {
	if c, ok := namespace[name]; ok {
		return c, true
	}
	c, ok := l.spec().FullRegistry.Get(name)
	if !ok || c.module != rec.QualifiedName {
		rec.refs = append(rec.refs, reference{name: name, class: c})
	}
	return c, ok
}

func (l *loadPass) targetMissing(rec *LoadedModule, err error) {
	l.session.report(Diagnostic{
		Kind:     DiagnosticTargetMissing,
		Spec:     l.spec().PackagePath,
		Module:   rec.QualifiedName,
		Location: rec.Location,
		Message:  err.Error(),
		Err:      err,
	})
}

// declare builds one class, applying it as an override or harvesting it
func (l *loadPass) declare(ref moduleRef, rec *LoadedModule, decl ClassSource, namespace map[string]*Class, exports []string) {
	log := l.log.WithFields(logrus.Fields{
		"module": rec.QualifiedName,
		"class":  decl.Name,
	})
	full := l.spec().FullRegistry

	var base *Class
	if decl.Extends != "" {
		var ok bool
		if base, ok = l.resolveBase(rec, decl.Extends, namespace); !ok {
			l.targetMissing(rec, fmt.Errorf("%w: %s extends %q", ErrTargetMissing, decl.Name, decl.Extends))
			return
		}
	}

	lineage := decl.LineageName
	if lineage == "" {
		lineage = strings.ToLower(strings.TrimSuffix(decl.Name, l.spec().RequiredSuffix))
	}
	class := &Class{
		name:       decl.Name,
		lineage:    lineage,
		module:     rec.QualifiedName,
		digest:     rec.Digest,
		pluginName: decl.PluginName,
		base:       base,
		attrs:      maps.Clone(decl.Attributes),
	}
	rec.Classes = append(rec.Classes, class)
	namespace[decl.Name] = class
	rec.bound[decl.Name] = class

	if _, targetName, ok := overrideTarget(class, full); ok {
		patch := decl.PluginName
		if patch == "" {
			patch = ref.leaf
		}
		class.pluginName = patch

		_, composed := ApplyOverride(class, full, patch)
		composed = l.state.compositions.intern(composed)
		l.install(targetName, composed)

		// later declarations naming the override reach the composed target
		namespace[decl.Name] = composed
		rec.bound[decl.Name] = composed
		rec.steps = append(rec.steps, step{class: class, target: targetName, patch: patch})
		rec.Overrides = append(rec.Overrides, AppliedOverride{Target: targetName, PluginName: patch})
		l.session.metrics.RecordOverride(l.spec().PackagePath)
		log.WithFields(logrus.Fields{
			"target":      targetName,
			"plugin_name": patch,
			"lineage":     composed.LineageName(),
		}).Info("Applied plugin override")
		return
	}

	if decl.PluginName != "" {
		l.targetMissing(rec, fmt.Errorf("%w: %s declares plugin_name %q but its base is not a registered class",
			ErrTargetMissing, decl.Name, decl.PluginName))
		return
	}

	if !l.harvestable(decl.Name, exports) {
		log.Debug("Class not harvested")
		return
	}
	rec.Registered[decl.Name] = class
	rec.steps = append(rec.steps, step{class: class})
	l.harvest(decl.Name, class)
}

// harvestable applies the suffix, exclusion and allow-list rules
func (l *loadPass) harvestable(name string, exports []string) bool {
	if !strings.HasSuffix(name, l.spec().RequiredSuffix) {
		return false
	}
	if strings.HasPrefix(name, ExclusionMarker) {
		return false
	}
	if exports != nil && !slices.Contains(exports, name) {
		return false
	}
	return true
}
