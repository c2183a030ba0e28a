package plugins

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidateTree checks a plugin tree (a directory search root) without loading
// it. Every module below <root>/<namespace>/<package> for each spec is
// decoded; problems a load pass would silently skip are reported as warnings.
func ValidateTree(root, namespace string, specs []*CapabilitySpec) []ValidationError {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	var errs []ValidationError
	found := false
	prober := NewProber(1, 0, nil, nil)
	for _, spec := range specs {
		loc, ok, err := prober.Probe(root, strings.Split(namespace+"."+spec.PackagePath, "."))
		if err != nil {
			errs = append(errs, ValidationError{Path: root, Message: err.Error(), Severity: SeverityError})
			continue
		}
		if !ok {
			continue
		}
		found = true
		errs = append(errs, validateLocation(prober, loc, spec)...)
	}
	if !found {
		errs = append(errs, ValidationError{
			Path:     filepath.Join(root, namespace),
			Message:  fmt.Sprintf("no capability package found below namespace %q", namespace),
			Severity: SeverityError,
		})
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })
	return errs
}

func validateLocation(prober *Prober, loc Locator, spec *CapabilitySpec) []ValidationError {
	entries, err := prober.children(loc)
	if err != nil {
		return []ValidationError{{Path: loc.String(), Message: err.Error(), Severity: SeverityError}}
	}

	var errs []ValidationError
	for _, e := range entries {
		ref, ok := prober.candidate(loc, e)
		if !ok {
			continue
		}
		memberPath := memberLocation(loc, ref.member)

		if strings.HasPrefix(ref.leaf, ExclusionMarker) {
			errs = append(errs, ValidationError{
				Path:     memberPath,
				Message:  "module name starts with " + ExclusionMarker + " and will never be loaded",
				Severity: SeverityWarning,
			})
			continue
		}

		data, err := prober.read(loc, ref.member)
		if err != nil {
			errs = append(errs, ValidationError{Path: memberPath, Message: err.Error(), Severity: SeverityError})
			continue
		}
		src, err := DecodeModule(ref.member, data)
		if err != nil {
			errs = append(errs, ValidationError{Path: memberPath, Message: err.Error(), Severity: SeverityError})
			continue
		}
		errs = append(errs, validateModule(memberPath, src, spec)...)
	}
	return errs
}

func validateModule(memberPath string, src *ModuleSource, spec *CapabilitySpec) []ValidationError {
	var errs []ValidationError
	declared := make(map[string]bool, len(src.Classes))
	for _, c := range src.Classes {
		declared[c.Name] = true
		field := "classes." + c.Name

		if c.Extends != "" && c.PluginName == "" && !declared[c.Extends] && !slices.Contains(src.Imports, c.Extends) {
			errs = append(errs, ValidationError{
				Path:     memberPath,
				Field:    field,
				Message:  fmt.Sprintf("extends %q without plugin_name; the module name will be used as patch name if it is an override", c.Extends),
				Severity: SeverityWarning,
			})
		}
		if c.Extends == "" && !strings.HasSuffix(c.Name, spec.RequiredSuffix) {
			errs = append(errs, ValidationError{
				Path:     memberPath,
				Field:    field,
				Message:  fmt.Sprintf("class name lacks required suffix %q and will not be registered", spec.RequiredSuffix),
				Severity: SeverityWarning,
			})
		}
		if c.Extends == "" && strings.HasPrefix(c.Name, ExclusionMarker) {
			errs = append(errs, ValidationError{
				Path:     memberPath,
				Field:    field,
				Message:  "class name starts with " + ExclusionMarker + " and will not be registered",
				Severity: SeverityWarning,
			})
		}
	}

	for _, name := range src.Exports {
		if !declared[name] {
			errs = append(errs, ValidationError{
				Path:     memberPath,
				Field:    "exports",
				Message:  fmt.Sprintf("export %q is not declared in this module", name),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

// HasErrors reports whether any entry has error severity
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}
