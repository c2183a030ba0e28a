package plugins

import (
	"maps"
	"sort"
	"strings"
)

// Class is an immutable capability value stored in a Registry.
//
// Built-in classes are created by the host with NewClass. Plugin classes are
// built by the Loader from module declarations. Overrides never mutate a class:
// they produce a new composed Class whose Base is the previous registry value.
type Class struct {
	name       string
	lineage    string
	module     string
	digest     string
	pluginName string
	base       *Class
	attrs      map[string]any

	// set on composed classes only
	origin  *Class
	patches []Patch
}

// Patch is one override layer applied to a composed class
type Patch struct {
	PluginName string         `json:"plugin_name" yaml:"plugin_name"`
	Class      string         `json:"class" yaml:"class"`
	Module     string         `json:"module" yaml:"module"`
	Digest     string         `json:"digest" yaml:"digest"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// ClassInfo is the serializable view of a Class
type ClassInfo struct {
	Name        string         `json:"name" yaml:"name"`
	LineageName string         `json:"lineage_name" yaml:"lineage_name"`
	Module      string         `json:"module,omitempty" yaml:"module,omitempty"`
	Base        string         `json:"base,omitempty" yaml:"base,omitempty"`
	BuiltIn     bool           `json:"built_in" yaml:"built_in"`
	Attributes  map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Patches     []Patch        `json:"patches,omitempty" yaml:"patches,omitempty"`
}

// NewClass creates a host-provided (built-in) class
func NewClass(name, lineageName string, attrs map[string]any) *Class {
	if lineageName == "" {
		lineageName = strings.ToLower(name)
	}
	return &Class{
		name:    name,
		lineage: lineageName,
		attrs:   maps.Clone(attrs),
	}
}

// Extend creates a built-in subclass of c, e.g. for host class hierarchies
func (c *Class) Extend(name, lineageName string, attrs map[string]any) *Class {
	sub := NewClass(name, lineageName, attrs)
	sub.base = c
	return sub
}

// Name returns the class name
func (c *Class) Name() string { return c.name }

// LineageName returns the human-readable lineage, e.g. "generic+override"
func (c *Class) LineageName() string { return c.lineage }

// Module returns the qualified module that declared the class, empty for built-ins
func (c *Class) Module() string { return c.module }

// Base returns the parent class or nil
func (c *Class) Base() *Class { return c.base }

// PluginName returns the patch name of an override candidate or composed class
func (c *Class) PluginName() string { return c.pluginName }

// BuiltIn reports whether the host provided the class (or its composed origin)
func (c *Class) BuiltIn() bool { return c.Origin().module == "" }

// Composed reports whether at least one override has been applied
func (c *Class) Composed() bool { return c.origin != nil }

// Origin returns the pre-patch class of a composed class, or c itself
func (c *Class) Origin() *Class {
	if c.origin != nil {
		return c.origin
	}
	return c
}

// Patches returns the applied override layers, oldest first
func (c *Class) Patches() []Patch {
	out := make([]Patch, len(c.patches))
	copy(out, c.patches)
	return out
}

// Attr looks up an attribute on the class and then on its bases
func (c *Class) Attr(key string) (any, bool) {
	for cur := c; cur != nil; cur = cur.base {
		if v, ok := cur.attrs[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Attributes returns the effective attributes; nearer classes win
func (c *Class) Attributes() map[string]any {
	var chain []*Class
	for cur := c; cur != nil; cur = cur.base {
		chain = append(chain, cur)
	}
	out := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		maps.Copy(out, chain[i].attrs)
	}
	return out
}

// OwnAttributes returns only the attributes declared on c itself
func (c *Class) OwnAttributes() map[string]any {
	return maps.Clone(c.attrs)
}

// Inherits reports whether other appears in c's base chain
func (c *Class) Inherits(other *Class) bool {
	for cur := c.base; cur != nil; cur = cur.base {
		if cur == other {
			return true
		}
	}
	return false
}

// Info returns a serializable snapshot of the class
func (c *Class) Info() ClassInfo {
	info := ClassInfo{
		Name:        c.name,
		LineageName: c.lineage,
		Module:      c.module,
		BuiltIn:     c.BuiltIn(),
		Attributes:  c.Attributes(),
		Patches:     c.Patches(),
	}
	if c.base != nil {
		info.Base = c.base.name
	}
	return info
}

func (c *Class) String() string {
	return c.name + " (" + c.lineage + ")"
}

// compose layers candidate's own attributes on top of target
func compose(target, candidate *Class, patchName string) *Class {
	return &Class{
		name:       target.name,
		lineage:    target.lineage + LineageDelimiter + patchName,
		module:     candidate.module,
		digest:     candidate.digest,
		pluginName: patchName,
		base:       target,
		attrs:      maps.Clone(candidate.attrs),
		origin:     target.Origin(),
		patches:    append(target.Patches(), newPatch(candidate, patchName)),
	}
}

func newPatch(candidate *Class, patchName string) Patch {
	return Patch{
		PluginName: patchName,
		Class:      candidate.name,
		Module:     candidate.module,
		Digest:     candidate.digest,
		Attributes: candidate.OwnAttributes(),
	}
}

// replay rebuilds a composed class from origin with the given layers
func replay(origin *Class, patches []Patch) *Class {
	cur := origin
	for _, p := range patches {
		cur = compose(cur, &Class{
			name:   p.Class,
			module: p.Module,
			digest: p.Digest,
			attrs:  p.Attributes,
		}, p.PluginName)
	}
	return cur
}

func sortedClassNames(m map[string]*Class) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
