package plugins

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// packageModuleStem is the file name (without extension) of a nested package module
const packageModuleStem = "module"

// ModuleSource is the decoded content of one plugin module
type ModuleSource struct {
	// Exports is the optional allow-list; nil means none was declared
	Exports []string       `json:"exports,omitempty" yaml:"exports"`
	Imports []string       `json:"imports,omitempty" yaml:"imports"`
	Effects map[string]any `json:"effects,omitempty" yaml:"effects"`
	Classes []ClassSource  `json:"classes,omitempty" yaml:"classes"`
}

// ClassSource declares one class inside a module
type ClassSource struct {
	Name        string         `json:"name" yaml:"name"`
	Extends     string         `json:"extends,omitempty" yaml:"extends"`
	PluginName  string         `json:"plugin_name,omitempty" yaml:"plugin_name"`
	LineageName string         `json:"lineage_name,omitempty" yaml:"lineage_name"`
	Attributes  map[string]any `json:"attributes,omitempty" yaml:"attributes"`
}

// Validate checks structural rules a decoder cannot express
func (m *ModuleSource) Validate() error {
	seen := make(map[string]bool, len(m.Classes))
	for i, c := range m.Classes {
		if c.Name == "" {
			return fmt.Errorf("class %d: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("class %q declared twice", c.Name)
		}
		seen[c.Name] = true
	}
	for _, imp := range m.Imports {
		if imp == "" {
			return fmt.Errorf("empty import")
		}
		if seen[imp] {
			return fmt.Errorf("import %q shadows a class declared in the module", imp)
		}
	}
	return nil
}

// Decoder turns raw module bytes into a ModuleSource
type Decoder interface {
	Decode(filename string, data []byte) (*ModuleSource, error)
}

// DecoderFunc adapts a function to the Decoder interface
type DecoderFunc func(filename string, data []byte) (*ModuleSource, error)

// Decode calls f
func (f DecoderFunc) Decode(filename string, data []byte) (*ModuleSource, error) {
	return f(filename, data)
}

var decoders = map[string]Decoder{
	".yaml": DecoderFunc(decodeYAMLModule),
	".yml":  DecoderFunc(decodeYAMLModule),
	".hcl":  DecoderFunc(decodeHCLModule),
	".cue":  DecoderFunc(decodeCUEModule),
}

// ModuleExtensions returns the recognized module file extensions, sorted
func ModuleExtensions() []string {
	exts := make([]string, 0, len(decoders))
	for ext := range decoders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DecodeModule decodes and validates a module by file extension
func DecodeModule(filename string, data []byte) (*ModuleSource, error) {
	dec, ok := decoders[path.Ext(filename)]
	if !ok {
		return nil, fmt.Errorf("unsupported module format: %s", filename)
	}
	src, err := dec.Decode(filename, data)
	if err != nil {
		return nil, err
	}
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return src, nil
}

// moduleRef is one enumerated candidate module
type moduleRef struct {
	leaf     string
	member   string // path relative to the location
	location Locator
}

// candidate maps a directory child to a module reference, if it is one
func (p *Prober) candidate(loc Locator, e entry) (moduleRef, bool) {
	if e.isDir {
		for _, ext := range ModuleExtensions() {
			member := e.name + "/" + packageModuleStem + ext
			if p.exists(loc, member) {
				return moduleRef{leaf: e.name, member: member, location: loc}, true
			}
		}
		return moduleRef{}, false
	}

	ext := path.Ext(e.name)
	if _, ok := decoders[ext]; !ok {
		return moduleRef{}, false
	}
	leaf := strings.TrimSuffix(e.name, ext)
	if leaf == "" || strings.Contains(leaf, ".") {
		return moduleRef{}, false
	}
	return moduleRef{leaf: leaf, member: e.name, location: loc}, true
}
