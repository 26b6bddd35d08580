package oas

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Kind discriminates Schema Nodes.
type Kind string

const (
	KindString  Kind = "string"
	KindDate    Kind = "date"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindBody    Kind = "body"
	KindFile    Kind = "file"
)

// Node describes the shape of a value: a scalar, an object, an array, a
// body wrapper around another node, or an opaque file payload. Nodes may form
// cycles through Properties and Items.
type Node struct {
	Kind        Kind
	Format      string
	Title       string
	Description string
	Properties  []Property
	Required    []string
	Items       []*Node
	// Schema is the wrapped node of a body parameter.
	Schema *Node
}

// Property is one named member of an object node.
type Property struct {
	Name string
	Node *Node
}

// IsObject reports whether n describes an object. Nodes with properties but
// no kind count as objects.
func (n *Node) IsObject() bool {
	return n != nil && (n.Kind == KindObject || (n.Kind == "" && len(n.Properties) > 0))
}

func (n *Node) IsArray() bool { return n != nil && n.Kind == KindArray }
func (n *Node) IsBody() bool  { return n != nil && n.Kind == KindBody }
func (n *Node) IsFile() bool  { return n != nil && n.Kind == KindFile }

// Item returns the first item node of an array, or nil.
func (n *Node) Item() *Node {
	if n == nil || len(n.Items) == 0 {
		return nil
	}
	return n.Items[0]
}

// IsRequired reports whether the property called name is required.
func (n *Node) IsRequired(name string) bool {
	return n != nil && slices.Contains(n.Required, name)
}

var invalidNameChars = regexp.MustCompile(`[^0-9A-Za-z_]`)

// SanitizeName replaces every character that is not valid in a GraphQL name
// with an underscore.
func SanitizeName(name string) string {
	return invalidNameChars.ReplaceAllString(name, "_")
}

// nodeConverter turns kin-openapi schemas into Nodes. It memoizes by schema
// pointer, so shared components map to a single node and cycles terminate.
type nodeConverter struct {
	nodes map[*openapi3.Schema]*Node
}

func newNodeConverter() *nodeConverter {
	return &nodeConverter{nodes: make(map[*openapi3.Schema]*Node)}
}

func (c *nodeConverter) convert(ref *openapi3.SchemaRef) *Node {
	if ref == nil || ref.Value == nil {
		return nil
	}
	s := ref.Value
	if n, ok := c.nodes[s]; ok {
		return n
	}
	n := &Node{Title: s.Title, Description: s.Description, Format: s.Format}
	if n.Title == "" && ref.Ref != "" {
		n.Title = componentName(ref.Ref)
	}
	c.nodes[s] = n

	switch schemaType(s) {
	case "array":
		n.Kind = KindArray
		if item := c.convert(s.Items); item != nil {
			n.Items = []*Node{item}
		}
	case "object":
		n.Kind = KindObject
		c.fillObject(n, s)
	case "string":
		n.Kind = KindString
		if s.Format == "binary" {
			n.Kind = KindFile
		}
	case "integer":
		n.Kind = KindInteger
	case "number":
		n.Kind = KindNumber
	case "boolean":
		n.Kind = KindBoolean
	case "file":
		n.Kind = KindFile
	default:
		switch {
		case len(s.Properties) > 0 || len(s.AllOf) > 0:
			n.Kind = KindObject
			c.fillObject(n, s)
		case s.Items != nil:
			n.Kind = KindArray
			if item := c.convert(s.Items); item != nil {
				n.Items = []*Node{item}
			}
		default:
			// Untyped schemas, oneOf and anyOf carry no usable structure and
			// pass through as opaque JSON.
			n.Kind = KindObject
		}
	}
	return n
}

func (c *nodeConverter) fillObject(n *Node, s *openapi3.Schema) {
	seen := map[string]bool{}
	for _, member := range s.AllOf {
		m := c.convert(member)
		if !m.IsObject() {
			continue
		}
		for _, p := range m.Properties {
			if !seen[p.Name] {
				seen[p.Name] = true
				n.Properties = append(n.Properties, p)
			}
		}
		n.Required = appendUnique(n.Required, m.Required...)
		if n.Description == "" {
			n.Description = m.Description
		}
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		n.Properties = append(n.Properties, Property{Name: name, Node: c.convert(s.Properties[name])})
	}
	n.Required = appendUnique(n.Required, s.Required...)
}

// schemaType returns the first declared type other than null.
func schemaType(s *openapi3.Schema) string {
	if s.Type == nil {
		return ""
	}
	for _, t := range *s.Type {
		if t != openapi3.TypeNull {
			return t
		}
	}
	return ""
}

// componentName extracts "Pet" from "#/components/schemas/Pet" or from an
// external reference such as "pet.yaml#/Pet".
func componentName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return strings.TrimPrefix(ref, "#")
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if !slices.Contains(list, item) {
			list = append(list, item)
		}
	}
	return list
}
