package executor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	language "github.com/hanpama/oasgraph/internal/language"
	schema "github.com/hanpama/oasgraph/internal/schema"
)

// coerceVariableValues checks the provided variables against the variable
// definitions of op, applying defaults. Undeclared variables are ignored.
func coerceVariableValues(sch *schema.Schema, op *language.OperationDefinition, provided map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(op.VariableDefinitions))
	for _, def := range op.VariableDefinitions {
		name := def.Variable
		v, ok := provided[name]
		if !ok {
			switch {
			case def.DefaultValue != nil:
				v = valueFromAST(def.DefaultValue, nil)
			case def.Type.NonNull:
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, def.Type)
			default:
				continue
			}
		}
		cv, err := coerceValue(sch, v, typeRefFromAST(def.Type))
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s: %w", name, def.Type, err)
		}
		out[name] = cv
	}
	return out, nil
}

// coerceArguments builds the argument map of a field. Problems are reported
// at path and leave the argument out.
func (ex *execution) coerceArguments(def *schema.Field, args language.ArgumentList, path Path) map[string]any {
	out := make(map[string]any, len(def.Arguments))
	for _, argDef := range def.Arguments {
		arg := args.ForName(argDef.Name)
		if arg == nil || (arg.Value.Kind == language.Variable && !hasVar(ex.vars, arg.Value.Raw)) {
			switch {
			case argDef.DefaultValue != nil:
				out[argDef.Name] = argDef.DefaultValue
			case schema.IsNonNull(argDef.Type):
				ex.addError(fmt.Sprintf("argument %q of type %s was not provided", argDef.Name, argDef.Type), path)
			}
			continue
		}
		v, err := coerceValue(ex.schema, valueFromAST(arg.Value, ex.vars), argDef.Type)
		if err != nil {
			ex.addError(fmt.Sprintf("argument %q: %v", argDef.Name, err), path)
			continue
		}
		out[argDef.Name] = v
	}
	return out
}

func hasVar(vars map[string]any, name string) bool {
	_, ok := vars[name]
	return ok
}

// valueFromAST converts a literal to a Go value, substituting variables.
// Integers become int and lists []any.
func valueFromAST(v *language.Value, vars map[string]any) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case language.Variable:
		return vars[v.Raw]
	case language.IntValue:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return int(n)
		}
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case language.FloatValue:
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case language.BooleanValue:
		return v.Raw == "true"
	case language.NullValue:
		return nil
	case language.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			out[i] = valueFromAST(c.Value, vars)
		}
		return out
	case language.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			out[c.Name] = valueFromAST(c.Value, vars)
		}
		return out
	default:
		return v.Raw
	}
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	var ref *schema.TypeRef
	if t.Elem != nil {
		ref = schema.ListType(typeRefFromAST(t.Elem))
	} else {
		ref = schema.NamedType(t.NamedType)
	}
	if t.NonNull {
		return schema.NonNullType(ref)
	}
	return ref
}

// coerceValue converts an input value to ref. Input objects are checked
// field by field; custom scalars such as JSON pass through.
func coerceValue(sch *schema.Schema, v any, ref *schema.TypeRef) (any, error) {
	if schema.IsNonNull(ref) {
		if v == nil {
			return nil, fmt.Errorf("null given for non-null type %s", ref)
		}
		return coerceValue(sch, v, schema.Unwrap(ref))
	}
	if v == nil {
		return nil, nil
	}
	if schema.IsList(ref) {
		item := schema.Unwrap(ref)
		list, ok := v.([]any)
		if !ok {
			// A single value stands for a list of one.
			cv, err := coerceValue(sch, v, item)
			if err != nil {
				return nil, err
			}
			return []any{cv}, nil
		}
		out := make([]any, len(list))
		for i, elem := range list {
			cv, err := coerceValue(sch, elem, item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	}

	name := schema.GetNamedType(ref)
	switch name {
	case "Int":
		return coerceInt(v)
	case "Float":
		return coerceFloat(v)
	case "String":
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("String cannot represent %v", v)
	case "Boolean":
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent %v", v)
	case "ID":
		if s, ok := v.(string); ok {
			return s, nil
		}
		n, err := coerceInt(v)
		if err != nil {
			return nil, fmt.Errorf("ID cannot represent %v", v)
		}
		return strconv.Itoa(n.(int)), nil
	}
	if t := sch.Types[name]; t != nil && t.Kind == schema.TypeKindInputObject {
		return coerceInputObject(sch, v, t)
	}
	return v, nil
}

func coerceInputObject(sch *schema.Schema, v any, t *schema.Type) (any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object, got %T", t.Name, v)
	}
	for name := range obj {
		if t.GetInputField(name) == nil {
			return nil, fmt.Errorf("field %q is not defined by type %s", name, t.Name)
		}
	}
	out := make(map[string]any, len(obj))
	for _, f := range t.GetOrderedInputFields() {
		fv, ok := obj[f.Name]
		if !ok {
			switch {
			case f.DefaultValue != nil:
				out[f.Name] = f.DefaultValue
			case schema.IsNonNull(f.Type):
				return nil, fmt.Errorf("required field %q of type %s was not provided", f.Name, f.Type)
			}
			continue
		}
		cv, err := coerceValue(sch, fv, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[f.Name] = cv
	}
	return out, nil
}

func coerceInt(v any) (any, error) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("Int cannot represent %s", n)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("Int cannot represent %v", v)
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil, fmt.Errorf("Int cannot represent %v", v)
	}
	return int(f), nil
}

func coerceFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("Float cannot represent %s", n)
		}
		return f, nil
	}
	return nil, fmt.Errorf("Float cannot represent %v", v)
}
