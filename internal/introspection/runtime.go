package introspection

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	executor "github.com/hanpama/oasgraph/internal/executor"
	schema "github.com/hanpama/oasgraph/internal/schema"
)

// Wrapper pairs the introspection-aware runtime with the schema it serves.
type Wrapper struct {
	Runtime executor.Runtime
	Schema  *schema.Schema
}

// Wrap extends sch with the introspection types and the __schema and __type
// query fields, and returns a runtime answering them from the schema model.
// Every other field is delegated to base.
func Wrap(base executor.Runtime, sch *schema.Schema) *Wrapper {
	extended := extend(sch)
	return &Wrapper{
		Runtime: &runtime{base: base, schema: extended},
		Schema:  extended,
	}
}

type runtime struct {
	base   executor.Runtime
	schema *schema.Schema
}

var _ executor.Runtime = (*runtime)(nil)

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case *schema.Schema:
		return r.schemaField(src, field)
	case *schema.Type:
		return r.typeField(src, field, args)
	case *schema.TypeRef:
		return r.typeRefField(src, field, args)
	case *schema.Field:
		return fieldField(src, field, args)
	case *schema.InputValue:
		return inputValueField(src, field)
	case *schema.EnumValue:
		return enumValueField(src, field)
	case *schema.Directive:
		return directiveField(src, field, args)
	}

	if objectType == r.schema.QueryType {
		switch field {
		case "__schema":
			return r.schema, nil
		case "__type":
			name, _ := args["name"].(string)
			if t := r.schema.Types[name]; t != nil {
				return t, nil
			}
			return nil, nil
		}
	}
	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return r.base.BatchResolveAsync(ctx, tasks)
}

// SerializeLeafValue handles the two introspection enums; kinds arrive as
// schema.TypeKind or schema.TypeRefKind values.
func (r *runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	switch typ {
	case "__TypeKind", "__DirectiveLocation":
		switch v := value.(type) {
		case schema.TypeKind:
			return string(v), nil
		case schema.TypeRefKind:
			return string(v), nil
		case string:
			return v, nil
		}
		return nil, fmt.Errorf("%s cannot represent %v", typ, value)
	}
	return r.base.SerializeLeafValue(ctx, typ, value)
}

func (r *runtime) schemaField(s *schema.Schema, field string) (any, error) {
	switch field {
	case "description":
		return optional(s.Description), nil
	case "types":
		return sortedValues(s.Types, func(t *schema.Type) string { return t.Name }), nil
	case "queryType":
		return s.GetQueryType(), nil
	case "mutationType":
		return s.GetMutationType(), nil
	case "subscriptionType":
		return s.GetSubscriptionType(), nil
	case "directives":
		return sortedValues(s.Directives, func(d *schema.Directive) string { return d.Name }), nil
	}
	return nil, unknown("__Schema", field)
}

func (r *runtime) typeField(t *schema.Type, field string, args map[string]any) (any, error) {
	switch field {
	case "kind":
		return t.Kind, nil
	case "name":
		return t.Name, nil
	case "description":
		return optional(t.Description), nil
	case "specifiedByURL":
		if t.SpecifiedByURL == nil {
			return nil, nil
		}
		return *t.SpecifiedByURL, nil
	case "fields":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, nil
		}
		out := []*schema.Field{}
		for _, f := range t.GetOrderedFields() {
			if strings.HasPrefix(f.Name, "__") || f.IsDeprecated && !withDeprecated(args) {
				continue
			}
			out = append(out, f)
		}
		return out, nil
	case "interfaces":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, nil
		}
		return r.named(t.Interfaces), nil
	case "possibleTypes":
		if t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion {
			return nil, nil
		}
		return r.named(t.PossibleTypes), nil
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, nil
		}
		out := []*schema.EnumValue{}
		for _, v := range t.EnumValues {
			if !v.IsDeprecated || withDeprecated(args) {
				out = append(out, v)
			}
		}
		return out, nil
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, nil
		}
		return inputValues(t.GetOrderedInputFields(), args), nil
	case "ofType":
		return nil, nil
	case "isOneOf":
		if t.Kind != schema.TypeKindInputObject {
			return nil, nil
		}
		return t.OneOf, nil
	}
	return nil, unknown("__Type", field)
}

// typeRefField answers __Type fields for a field or argument type. Wrappers
// report their own kind and ofType; named references defer to the type.
func (r *runtime) typeRefField(ref *schema.TypeRef, field string, args map[string]any) (any, error) {
	if ref.Kind == schema.TypeRefKindList || ref.Kind == schema.TypeRefKindNonNull {
		switch field {
		case "kind":
			return ref.Kind, nil
		case "ofType":
			return ref.OfType, nil
		}
		return nil, nil
	}
	t := r.schema.Types[ref.Named]
	if t == nil {
		return nil, fmt.Errorf("introspection: unknown type %s", ref.Named)
	}
	return r.typeField(t, field, args)
}

func fieldField(f *schema.Field, field string, args map[string]any) (any, error) {
	switch field {
	case "name":
		return f.Name, nil
	case "description":
		return optional(f.Description), nil
	case "args":
		return inputValues(f.GetOrderedArguments(), args), nil
	case "type":
		return f.Type, nil
	case "isDeprecated":
		return f.IsDeprecated, nil
	case "deprecationReason":
		return reason(f.IsDeprecated, f.DeprecationReason), nil
	}
	return nil, unknown("__Field", field)
}

func inputValueField(v *schema.InputValue, field string) (any, error) {
	switch field {
	case "name":
		return v.Name, nil
	case "description":
		return optional(v.Description), nil
	case "type":
		return v.Type, nil
	case "defaultValue":
		if v.DefaultValue == nil {
			return nil, nil
		}
		b, err := json.Marshal(v.DefaultValue)
		if err != nil {
			return fmt.Sprint(v.DefaultValue), nil
		}
		return string(b), nil
	case "isDeprecated":
		return v.IsDeprecated, nil
	case "deprecationReason":
		return reason(v.IsDeprecated, v.DeprecationReason), nil
	}
	return nil, unknown("__InputValue", field)
}

func enumValueField(v *schema.EnumValue, field string) (any, error) {
	switch field {
	case "name":
		return v.Name, nil
	case "description":
		return optional(v.Description), nil
	case "isDeprecated":
		return v.IsDeprecated, nil
	case "deprecationReason":
		return reason(v.IsDeprecated, v.DeprecationReason), nil
	}
	return nil, unknown("__EnumValue", field)
}

func directiveField(d *schema.Directive, field string, args map[string]any) (any, error) {
	switch field {
	case "name":
		return d.Name, nil
	case "description":
		return optional(d.Description), nil
	case "isRepeatable":
		return d.IsRepeatable, nil
	case "locations":
		return slices.Clone(d.Locations), nil
	case "args":
		return inputValues(d.Arguments, args), nil
	}
	return nil, unknown("__Directive", field)
}

func (r *runtime) named(names []string) []*schema.Type {
	out := []*schema.Type{}
	for _, name := range names {
		if t := r.schema.Types[name]; t != nil {
			out = append(out, t)
		}
	}
	return out
}

func inputValues(values []*schema.InputValue, args map[string]any) []*schema.InputValue {
	out := []*schema.InputValue{}
	for _, v := range values {
		if !v.IsDeprecated || withDeprecated(args) {
			out = append(out, v)
		}
	}
	return out
}

func sortedValues[T any](m map[string]T, name func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(name(a), name(b)) })
	return out
}

func withDeprecated(args map[string]any) bool {
	v, _ := args["includeDeprecated"].(bool)
	return v
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func reason(deprecated bool, why string) any {
	if !deprecated {
		return nil
	}
	return why
}

func unknown(typ, field string) error {
	return fmt.Errorf("introspection: %s has no field %q", typ, field)
}
