package plugins

import (
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

// Resolver merges the contributions of every search root into the
// "virtual package" of a capability
type Resolver struct {
	prober    *Prober
	namespace string
	roots     func() []string
	report    func(Diagnostic)
	log       logrus.FieldLogger
}

// NewResolver creates a resolver reading roots on every call
func NewResolver(prober *Prober, namespace string, roots func() []string, report func(Diagnostic), log logrus.FieldLogger) *Resolver {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if report == nil {
		report = func(Diagnostic) {}
	}
	if log == nil {
		log = logrus.New()
	}
	return &Resolver{
		prober:    prober,
		namespace: namespace,
		roots:     roots,
		report:    report,
		log:       log,
	}
}

// Resolve returns every location contributing to packagePath, in root order.
// Nothing is cached between calls, so root changes are always observed.
func (r *Resolver) Resolve(packagePath string) []Locator {
	segments := strings.Split(r.namespace+"."+packagePath, ".")

	var locations []Locator
	for _, root := range r.roots() {
		loc, ok, err := r.prober.Probe(root, segments)
		if err != nil {
			kind := DiagnosticInvalidRoot
			if errors.Is(err, ErrArchiveUnreadable) {
				kind = DiagnosticArchiveUnreadable
			}
			r.report(Diagnostic{
				Kind:     kind,
				Location: root,
				Message:  err.Error(),
				Err:      err,
			})
			continue
		}
		if !ok {
			continue
		}
		r.log.WithFields(logrus.Fields{
			"root":     root,
			"location": loc.String(),
		}).Debug("Search root contributes to package")
		locations = append(locations, loc)
	}
	return locations
}
