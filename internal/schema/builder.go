package schema

import (
	"fmt"

	language "github.com/hanpama/oasgraph/internal/language"
)

// BuildFromSDL parses SDL and returns the corresponding Schema with builtins
// added. Type extensions are merged into their base definitions.
//
// Fields declared on the root operation types are marked async, every other
// field resolves synchronously from its parent value. Root types default to
// Query, Mutation and Subscription when no schema definition is present.
func BuildFromSDL(sdl string) (*Schema, error) {
	doc, err := language.ParseSchema("schema.graphql", sdl)
	if err != nil {
		return nil, err
	}

	s := NewSchema("").AddBuiltins()
	roots := map[language.Operation]string{}
	for _, def := range doc.Schema {
		for _, op := range def.OperationTypes {
			roots[op.Operation] = op.Type
		}
	}
	for _, def := range doc.SchemaExtension {
		for _, op := range def.OperationTypes {
			roots[op.Operation] = op.Type
		}
	}
	for op, name := range map[language.Operation]string{
		language.Query:        "Query",
		language.Mutation:     "Mutation",
		language.Subscription: "Subscription",
	} {
		if _, ok := roots[op]; ok {
			continue
		}
		if doc.Definitions.ForName(name) != nil {
			roots[op] = name
		}
	}
	if roots[language.Query] == "" {
		return nil, fmt.Errorf("schema: no query root type")
	}
	s.SetQueryType(roots[language.Query]).
		SetMutationType(roots[language.Mutation]).
		SetSubscriptionType(roots[language.Subscription])
	isRoot := func(name string) bool {
		return name == s.QueryType || name == s.MutationType || name == s.SubscriptionType
	}

	for _, def := range doc.Definitions {
		t, err := buildDefinition(def, isRoot(def.Name))
		if err != nil {
			return nil, err
		}
		s.AddType(t)
	}
	for _, ext := range doc.Extensions {
		base := s.Types[ext.Name]
		if base == nil {
			return nil, fmt.Errorf("schema: cannot extend undefined type %s", ext.Name)
		}
		t, err := buildDefinition(ext, isRoot(ext.Name))
		if err != nil {
			return nil, err
		}
		base.Fields = append(base.Fields, t.Fields...)
		base.InputFields = append(base.InputFields, t.InputFields...)
		base.Interfaces = append(base.Interfaces, t.Interfaces...)
		base.PossibleTypes = append(base.PossibleTypes, t.PossibleTypes...)
		base.EnumValues = append(base.EnumValues, t.EnumValues...)
	}
	for _, dir := range doc.Directives {
		d := NewDirective(dir.Name, dir.Description).SetRepeatable(dir.IsRepeatable)
		for _, loc := range dir.Locations {
			d.Locations = append(d.Locations, string(loc))
		}
		for _, arg := range dir.Arguments {
			iv, err := buildArgument(arg)
			if err != nil {
				return nil, err
			}
			d.AddArgument(iv)
		}
		s.AddDirective(d)
	}
	return s, nil
}

func buildDefinition(def *language.Definition, root bool) (*Type, error) {
	switch def.Kind {
	case language.Object, language.Interface:
		kind := TypeKindObject
		if def.Kind == language.Interface {
			kind = TypeKindInterface
		}
		t := NewType(def.Name, kind, def.Description)
		for _, name := range def.Interfaces {
			t.AddInterface(name)
		}
		for _, fd := range def.Fields {
			f := NewField(fd.Name, fd.Description, typeRefFromAST(fd.Type)).SetAsync(root)
			if reason, ok := deprecation(fd.Directives); ok {
				f.Deprecate(reason)
			}
			for _, arg := range fd.Arguments {
				iv, err := buildArgument(arg)
				if err != nil {
					return nil, fmt.Errorf("schema: %s.%s: %w", def.Name, fd.Name, err)
				}
				f.AddArgument(iv)
			}
			t.AddField(f)
		}
		return t, nil
	case language.InputObject:
		t := NewType(def.Name, TypeKindInputObject, def.Description).
			SetOneOf(def.Directives.ForName("oneOf") != nil)
		for _, fd := range def.Fields {
			iv := NewInputValue(fd.Name, fd.Description, typeRefFromAST(fd.Type))
			if fd.DefaultValue != nil {
				v, err := fd.DefaultValue.Value(nil)
				if err != nil {
					return nil, fmt.Errorf("schema: %s.%s default: %w", def.Name, fd.Name, err)
				}
				iv.SetDefault(v)
			}
			if reason, ok := deprecation(fd.Directives); ok {
				iv.Deprecate(reason)
			}
			t.AddInputField(iv)
		}
		return t, nil
	case language.Enum:
		t := NewType(def.Name, TypeKindEnum, def.Description)
		for _, ev := range def.EnumValues {
			v := NewEnumValue(ev.Name, ev.Description)
			if reason, ok := deprecation(ev.Directives); ok {
				v.Deprecate(reason)
			}
			t.AddEnumValue(v)
		}
		return t, nil
	case language.Union:
		t := NewType(def.Name, TypeKindUnion, def.Description)
		for _, name := range def.Types {
			t.AddPossibleType(name)
		}
		return t, nil
	case language.Scalar:
		t := NewType(def.Name, TypeKindScalar, def.Description)
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil {
				t.SetSpecifiedByURL(arg.Value.Raw)
			}
		}
		return t, nil
	}
	return nil, fmt.Errorf("schema: unsupported definition kind %s for %s", def.Kind, def.Name)
}

func buildArgument(arg *language.ArgumentDefinition) (*InputValue, error) {
	iv := NewInputValue(arg.Name, arg.Description, typeRefFromAST(arg.Type))
	if arg.DefaultValue != nil {
		v, err := arg.DefaultValue.Value(nil)
		if err != nil {
			return nil, fmt.Errorf("argument %s default: %w", arg.Name, err)
		}
		iv.SetDefault(v)
	}
	if reason, ok := deprecation(arg.Directives); ok {
		iv.Deprecate(reason)
	}
	return iv, nil
}

func deprecation(directives language.DirectiveList) (string, bool) {
	d := directives.ForName("deprecated")
	if d == nil {
		return "", false
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw, true
	}
	return "", true
}

func typeRefFromAST(t *language.Type) *TypeRef {
	if t.NonNull {
		return NonNullType(typeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return NamedType(t.NamedType)
	}
	return ListType(typeRefFromAST(t.Elem))
}
