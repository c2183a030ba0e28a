package plugins

import "strings"

// ApplyOverride composes candidate onto the registry entry it inherits from.
//
// candidate is an override when its base is a class currently present in
// reg, built-in or plugin-provided; the lookup is by identity, not by name.
// The composed class replaces the target entry and candidate itself is never
// written to reg.
//
// Applying the same patch from an unchanged source is a no-op. A patch with
// the same plugin name but a different source replaces that layer, rebuilding
// the chain from the original target.
func ApplyOverride(candidate *Class, reg *Registry, patchName string) (bool, *Class) {
	target, targetName, ok := overrideTarget(candidate, reg)
	if !ok {
		return false, nil
	}
	if patchName == "" {
		patchName = candidate.pluginName
	}

	composed := layer(target, candidate, patchName)
	if composed != target {
		reg.set(targetName, composed)
	}
	return true, composed
}

// layer returns target with candidate applied as the patch named patchName
func layer(target, candidate *Class, patchName string) *Class {
	for i, p := range target.patches {
		if p.PluginName != patchName {
			continue
		}
		if p.Module == candidate.module && p.Digest == candidate.digest && p.Class == candidate.name {
			return target
		}
		layers := target.Patches()
		layers[i] = newPatch(candidate, patchName)
		return replay(target.Origin(), layers)
	}
	return compose(target, candidate, patchName)
}

// overrideTarget finds the registry entry candidate inherits from
func overrideTarget(candidate *Class, reg *Registry) (*Class, string, bool) {
	if candidate == nil || candidate.base == nil {
		return nil, "", false
	}
	name, ok := reg.nameOf(candidate.base)
	if !ok {
		return nil, "", false
	}
	return candidate.base, name, true
}

// stripPlugins returns reg to its pre-plugin contents. Composed built-ins
// fall back to their origin; plugin entries fall back to the built-in they
// shadowed, or are removed. Entries added by the host after baseline was
// taken are kept. It returns the number of entries changed.
func stripPlugins(reg *Registry, baseline map[string]*Class) int {
	stripped := 0
	for name, class := range reg.Snapshot() {
		origin := class.Origin()
		var changed bool
		switch {
		case origin.module == "" && class == origin:
			continue
		case origin.module == "":
			changed = reg.swapIf(name, class, origin)
		default:
			if builtin, ok := baseline[name]; ok {
				changed = reg.swapIf(name, class, builtin)
			} else {
				changed = reg.deleteIf(name, class)
			}
		}
		if changed {
			stripped++
		}
	}
	return stripped
}

// compositions interns composed classes by origin and layers, so a chain
// rebuilt from unchanged patches keeps its identity across load passes
type compositions struct {
	live map[compositionKey]*Class
	used map[compositionKey]*Class
}

type compositionKey struct {
	origin *Class
	layers string
}

func newCompositions() *compositions {
	return &compositions{
		live: make(map[compositionKey]*Class),
		used: make(map[compositionKey]*Class),
	}
}

func keyOf(c *Class) compositionKey {
	var b strings.Builder
	for _, p := range c.patches {
		for _, part := range []string{p.PluginName, p.Class, p.Module, p.Digest} {
			b.WriteString(part)
			b.WriteByte(0)
		}
		b.WriteByte('\n')
	}
	return compositionKey{origin: c.Origin(), layers: b.String()}
}

// intern returns the known class equal to c, remembering c if there is none
func (cs *compositions) intern(c *Class) *Class {
	if !c.Composed() {
		return c
	}
	k := keyOf(c)
	if known, ok := cs.used[k]; ok {
		return known
	}
	if known, ok := cs.live[k]; ok {
		c = known
	}
	cs.used[k] = c
	return c
}

// sweep forgets compositions not interned since the previous sweep
func (cs *compositions) sweep() {
	cs.live = cs.used
	cs.used = make(map[compositionKey]*Class, len(cs.live))
}
