package typemap

import (
	"github.com/hanpama/oasgraph/internal/oas"
	"github.com/hanpama/oasgraph/internal/schema"
)

// Registry holds the composite types built under each name for one direction
// during one schema generation run. A name is registered at most once.
type Registry struct {
	dir     Direction
	entries map[string]*entry
	order   []string
	sources map[sourceKey]string
}

type entry struct {
	typ  *schema.Type
	ref  *schema.TypeRef
	node *oas.Node
}

type sourceKey struct {
	typeName string
	field    string
}

func NewRegistry(dir Direction) *Registry {
	return &Registry{
		dir:     dir,
		entries: make(map[string]*entry),
		sources: make(map[sourceKey]string),
	}
}

func (r *Registry) Direction() Direction { return r.dir }

// Lookup returns the reference registered under name. Repeated lookups return
// the same *schema.TypeRef.
func (r *Registry) Lookup(name string) (*schema.TypeRef, bool) {
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.ref, true
}

// Type returns the composite registered under name, or nil.
func (r *Registry) Type(name string) *schema.Type {
	if e, ok := r.entries[name]; ok {
		return e.typ
	}
	return nil
}

// Types returns the registered composites in registration order.
func (r *Registry) Types() []*schema.Type {
	types := make([]*schema.Type, 0, len(r.order))
	for _, name := range r.order {
		types = append(types, r.entries[name].typ)
	}
	return types
}

func (r *Registry) Len() int { return len(r.order) }

// SourceName returns the property name a member of typeName was built from.
// The second result is false when the member is unknown or its type has not
// been resolved yet.
func (r *Registry) SourceName(typeName, field string) (string, bool) {
	name, ok := r.sources[sourceKey{typeName, field}]
	return name, ok
}

func (r *Registry) register(name string, typ *schema.Type, node *oas.Node) *schema.TypeRef {
	e := &entry{typ: typ, ref: schema.NamedType(name), node: node}
	r.entries[name] = e
	r.order = append(r.order, name)
	return e.ref
}

func (r *Registry) recordSource(typeName, field, property string) {
	r.sources[sourceKey{typeName, field}] = property
}
