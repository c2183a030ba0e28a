package plugins

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultNamespace is the package under which plugin modules live in every root
	DefaultNamespace = "plugweave_plugins"

	// Sentinel is the search root value replaced by the host's default plugin directories
	Sentinel = "default"

	// ExclusionMarker prefixes module and class names that must never be loaded
	ExclusionMarker = "_"

	// LineageDelimiter joins successive patch names in a lineage name
	LineageDelimiter = "+"

	// DisableEnv disables plugin loading entirely when set to a non-empty value
	DisableEnv = "PLUGWEAVE_NO_PLUGINS"
)

// CapabilitySpec describes one kind of pluggable capability
type CapabilitySpec struct {
	// PackagePath is the dotted subpath below the namespace, e.g. "extractor"
	PackagePath string `json:"package_path" yaml:"package"`

	// RequiredSuffix is the class-name suffix harvested classes must carry
	RequiredSuffix string `json:"required_suffix" yaml:"suffix"`

	// FullRegistry holds built-in and plugin classes
	FullRegistry *Registry `json:"-" yaml:"-"`

	// PluginRegistry holds plugin classes only; replaced on every load pass
	PluginRegistry *Registry `json:"-" yaml:"-"`
}

// Validate reports why a spec cannot be registered
func (s *CapabilitySpec) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil spec", ErrInvalidSpec)
	}
	if s.PackagePath == "" {
		return fmt.Errorf("%w: package path is required", ErrInvalidSpec)
	}
	for _, segment := range strings.Split(s.PackagePath, ".") {
		if segment == "" || strings.ContainsAny(segment, `/\`) {
			return fmt.Errorf("%w: invalid package path %q", ErrInvalidSpec, s.PackagePath)
		}
	}
	if s.RequiredSuffix == "" {
		return fmt.Errorf("%w: required suffix is required for %q", ErrInvalidSpec, s.PackagePath)
	}
	if s.FullRegistry == nil || s.PluginRegistry == nil {
		return fmt.Errorf("%w: both registries are required for %q", ErrInvalidSpec, s.PackagePath)
	}
	if s.FullRegistry == s.PluginRegistry {
		return fmt.Errorf("%w: full and plugin registries must differ for %q", ErrInvalidSpec, s.PackagePath)
	}
	return nil
}

func (s *CapabilitySpec) segments() []string {
	return strings.Split(s.PackagePath, ".")
}

// DiagnosticKind classifies a non-fatal loading failure
type DiagnosticKind string

const (
	DiagnosticModuleImport      DiagnosticKind = "module_import_failure"
	DiagnosticArchiveUnreadable DiagnosticKind = "archive_unreadable"
	DiagnosticTargetMissing     DiagnosticKind = "override_target_missing"
	DiagnosticInvalidRoot       DiagnosticKind = "invalid_search_root"
)

// Diagnostic records one non-fatal failure observed during a load pass
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Spec     string         `json:"spec,omitempty"`
	Module   string         `json:"module,omitempty"`
	Location string         `json:"location,omitempty"`
	Message  string         `json:"message"`
	Trace    string         `json:"trace,omitempty"`
	Err      error          `json:"-"`
	Time     time.Time      `json:"time"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(string(d.Kind))
	if d.Module != "" {
		fmt.Fprintf(&b, " %s", d.Module)
	}
	if d.Location != "" {
		fmt.Fprintf(&b, " (%s)", d.Location)
	}
	fmt.Fprintf(&b, ": %s", d.Message)
	return b.String()
}

// ValidationError represents a problem found while validating a plugin tree
type ValidationError struct {
	Path     string `json:"path"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}
