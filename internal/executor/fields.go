package executor

import (
	language "github.com/hanpama/oasgraph/internal/language"
	schema "github.com/hanpama/oasgraph/internal/schema"
)

// fieldGroup is every field node sharing one response name, in document order.
type fieldGroup struct {
	responseName string
	fields       []*language.Field
}

// collectFields flattens selection for objectType, expanding fragments and
// applying @skip and @include. Groups keep the order of first appearance.
func (ex *execution) collectFields(objectType *schema.Type, selection language.SelectionSet) []*fieldGroup {
	var groups []*fieldGroup
	index := map[string]*fieldGroup{}
	visited := map[string]bool{}

	var walk func(language.SelectionSet)
	walk = func(set language.SelectionSet) {
		for _, sel := range set {
			switch s := sel.(type) {
			case *language.Field:
				if !ex.included(s.Directives) {
					continue
				}
				name := s.Alias
				if name == "" {
					name = s.Name
				}
				if g, ok := index[name]; ok {
					g.fields = append(g.fields, s)
					continue
				}
				g := &fieldGroup{responseName: name, fields: []*language.Field{s}}
				index[name] = g
				groups = append(groups, g)

			case *language.InlineFragment:
				if ex.included(s.Directives) && appliesTo(s.TypeCondition, objectType) {
					walk(s.SelectionSet)
				}

			case *language.FragmentSpread:
				if visited[s.Name] || !ex.included(s.Directives) {
					continue
				}
				visited[s.Name] = true
				def := ex.doc.Fragments.ForName(s.Name)
				if def == nil || !appliesTo(def.TypeCondition, objectType) || !ex.included(def.Directives) {
					continue
				}
				walk(def.SelectionSet)
			}
		}
	}
	walk(selection)
	return groups
}

// Generated schemas have no abstract types, so a type condition applies only
// to the object type it names.
func appliesTo(condition string, objectType *schema.Type) bool {
	return condition == "" || condition == objectType.Name
}

func (ex *execution) included(directives language.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil && ex.directiveIf(d) {
		return false
	}
	if d := directives.ForName("include"); d != nil && !ex.directiveIf(d) {
		return false
	}
	return true
}

func (ex *execution) directiveIf(d *language.Directive) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	v, _ := valueFromAST(arg.Value, ex.vars).(bool)
	return v
}
