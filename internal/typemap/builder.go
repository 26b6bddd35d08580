package typemap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hanpama/oasgraph/internal/oas"
	"github.com/hanpama/oasgraph/internal/schema"
)

// ErrUnresolvable is returned for a node that has neither a kind nor any
// structure to build a type from.
var ErrUnresolvable = errors.New("typemap: node has no type")

// filePlaceholder stands in for binary payloads, which GraphQL cannot carry.
var filePlaceholder = &oas.Node{
	Kind:       oas.KindObject,
	Properties: []oas.Property{{Name: "unsupported", Node: &oas.Node{Kind: oas.KindString}}},
}

// Builder turns Schema Nodes into GraphQL type references for one direction.
// Composite types are registered in its Registry and their members are
// computed lazily, so cyclic node graphs terminate.
type Builder struct {
	reg    *Registry
	logger *slog.Logger
}

func NewBuilder(reg *Registry, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		reg:    reg,
		logger: logger.With("component", "typemap", "direction", reg.dir.String()),
	}
}

func (b *Builder) Registry() *Registry { return b.reg }

// Build returns the type for node, named after the node's title or proposed.
// Arrays become nullable lists of non-null items and objects without
// properties become the JSON scalar; neither is registered.
func (b *Builder) Build(node *oas.Node, proposed string) (*schema.TypeRef, error) {
	name := proposed
	if node != nil && node.Title != "" {
		name = node.Title
	}
	name = b.reg.dir.TypeName(oas.SanitizeName(name))

	if e, ok := b.reg.entries[name]; ok {
		if node != nil && e.node != node {
			b.logger.Warn("type name collision, reusing existing type", "name", name)
		}
		return e.ref, nil
	}

	if node == nil {
		return schema.NamedType(schema.JSONScalarName), nil
	}

	if node.IsArray() {
		elem, err := b.buildItem(node.Item(), name)
		if err != nil {
			return nil, err
		}
		return schema.ListType(schema.NonNullType(elem)), nil
	}

	if len(node.Properties) == 0 {
		return schema.NamedType(schema.JSONScalarName), nil
	}

	typ := schema.NewType(name, b.reg.dir.compositeKind(), node.Description)
	ref := b.reg.register(name, typ, node)
	b.reg.dir.attachMembers(typ, func() ([]member, error) {
		return b.members(name, node)
	})
	return ref, nil
}

func (b *Builder) buildItem(item *oas.Node, name string) (*schema.TypeRef, error) {
	switch {
	case item == nil:
		return nil, fmt.Errorf("%s: array without items: %w", name, ErrUnresolvable)
	case item.IsObject() || item.IsArray():
		return b.Build(item, name+"_items")
	case item.IsFile():
		return b.Build(filePlaceholder, name)
	}
	return schema.NamedType(ResolvePrimitive(item.Format, string(item.Kind))), nil
}

// BuildField returns the type of a member called property on the type named
// parent. Body wrappers are unwrapped and required members are non-null.
// A nil node is an empty object.
func (b *Builder) BuildField(parent string, node *oas.Node, property string, required bool) (*schema.TypeRef, error) {
	if node.IsBody() {
		return b.BuildField(parent, node.Schema, property, required)
	}

	var (
		base *schema.TypeRef
		err  error
	)
	switch {
	case node == nil, node.IsObject(), node.IsArray():
		base, err = b.Build(node, parent+"_"+property)
	case node.IsFile():
		base, err = b.Build(filePlaceholder, parent+"_"+property)
	case node.Kind != "":
		base = schema.NamedType(ResolvePrimitive(node.Format, string(node.Kind)))
	default:
		err = fmt.Errorf("%s.%s: %w", parent, property, ErrUnresolvable)
	}
	if err != nil {
		return nil, err
	}
	if required {
		return schema.NonNullType(base), nil
	}
	return base, nil
}

// members computes the fields of the composite called name. Sanitized names
// that collide keep the position of the first property and the type of the
// last one.
func (b *Builder) members(name string, node *oas.Node) ([]member, error) {
	var members []member
	index := map[string]int{}
	for _, prop := range node.Properties {
		field := oas.SanitizeName(prop.Name)
		typ, err := b.BuildField(name, prop.Node, field, node.IsRequired(prop.Name))
		if err != nil {
			return nil, err
		}
		m := member{name: field, typ: typ}
		if prop.Node != nil {
			m.description = prop.Node.Description
		}
		b.reg.recordSource(name, field, prop.Name)
		if i, ok := index[field]; ok {
			members[i] = m
			continue
		}
		index[field] = len(members)
		members = append(members, m)
	}
	return members, nil
}
