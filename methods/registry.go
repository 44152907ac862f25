// Package methods holds the method definitions published by the backend and
// validates field writes against their schemas before they are admitted into
// a sample document.
package methods

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/lh-manager/workbench/core/labware"
)

// Registry is a name-keyed set of method definitions and their compiled
// schemas. The set is replaced wholesale on each refresh. All methods are
// safe for concurrent use.
type Registry struct {
	defs    map[string]labware.MethodDef
	schemas map[string]*jsonschema.Schema
	mu      sync.RWMutex
}

// NewRegistry creates an empty Registry. An empty registry admits every
// field write, since definitions have not been fetched yet.
func NewRegistry() *Registry {
	return &Registry{
		defs:    make(map[string]labware.MethodDef),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Replace swaps the full definition set. Every schema is compiled first; a
// schema that fails to compile leaves the current set in place.
func (r *Registry) Replace(defs map[string]labware.MethodDef) error {
	next := make(map[string]labware.MethodDef, len(defs))
	schemas := make(map[string]*jsonschema.Schema, len(defs))
	for name, def := range defs {
		if name == "" {
			return ErrEmptyName
		}
		sch, err := compile(name, def.Schema)
		if err != nil {
			return err
		}
		next[name] = def
		if sch != nil {
			schemas[name] = sch
		}
	}

	r.mu.Lock()
	r.defs = next
	r.schemas = schemas
	r.mu.Unlock()
	return nil
}

// Get retrieves a definition by method name.
func (r *Registry) Get(name string) (labware.MethodDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered method names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.defs))
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Known reports whether name may be added as a new method. Every name is
// accepted until definitions have been loaded.
func (r *Registry) Known(name string) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.defs) == 0 {
		return nil
	}
	if _, ok := r.defs[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return nil
}

// Validate checks that field is declared by the definition of method and
// that value satisfies the method schema with field as its only property.
func (r *Registry) Validate(method, field string, value labware.Value) error {
	r.mu.RLock()
	empty := len(r.defs) == 0
	def, ok := r.defs[method]
	sch := r.schemas[method]
	r.mu.RUnlock()

	if empty {
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}

	_, declared := def.Schema.Properties[field]
	if !declared && !slices.Contains(def.Fields, field) && field != labware.KeyDisplayName {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, method, field)
	}
	if !declared || sch == nil {
		return nil
	}

	if err := validateField(sch, field, value); err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrInvalidValue, method, field, err)
	}
	return nil
}
