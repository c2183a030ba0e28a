package plugins

import (
	"fmt"
	"maps"
	"sync"
)

// Registry maps class names to classes. Hosts register built-ins with
// Register; every other write goes through a Session load pass.
type Registry struct {
	name    string
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewRegistry creates an empty registry
func NewRegistry(name string) *Registry {
	return &Registry{
		name:    name,
		classes: make(map[string]*Class),
	}
}

// Name returns the registry's label
func (r *Registry) Name() string {
	return r.name
}

// Register adds a host class; an existing entry with the same name is replaced
func (r *Registry) Register(class *Class) error {
	if class == nil {
		return fmt.Errorf("cannot register nil class")
	}
	if class.Name() == "" {
		return fmt.Errorf("cannot register class with empty name")
	}

	r.set(class.Name(), class)
	return nil
}

// Get retrieves a class by name
func (r *Registry) Get(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	class, ok := r.classes[name]
	return class, ok
}

// Has checks if a class is registered under name
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns all registered names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedClassNames(r.classes)
}

// List returns all registered classes sorted by name
func (r *Registry) List() []*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Class, 0, len(r.classes))
	for _, name := range sortedClassNames(r.classes) {
		out = append(out, r.classes[name])
	}
	return out
}

// Len returns the number of registered classes
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.classes)
}

// Snapshot returns a copy of the name to class mapping
func (r *Registry) Snapshot() map[string]*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Clone(r.classes)
}

func (r *Registry) set(name string, class *Class) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.classes[name] = class
}

// deleteIf removes name only while it still maps to class
func (r *Registry) deleteIf(name string, class *Class) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.classes[name] != class {
		return false
	}
	delete(r.classes, name)
	return true
}

// swapIf replaces name with next only while it still maps to prev
func (r *Registry) swapIf(name string, prev, next *Class) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.classes[name] != prev {
		return false
	}
	r.classes[name] = next
	return true
}

func (r *Registry) replace(classes map[string]*Class) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.classes = maps.Clone(classes)
	if r.classes == nil {
		r.classes = make(map[string]*Class)
	}
}

// nameOf finds the name a class is registered under, by identity
func (r *Registry) nameOf(class *Class) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, c := range r.classes {
		if c == class {
			return name, true
		}
	}
	return "", false
}
