package bridge

import (
	"context"

	"github.com/hanpama/oasgraph/internal/oas"
	"github.com/hanpama/oasgraph/internal/schema"
	"github.com/hanpama/oasgraph/internal/typemap"
)

// newDispatch returns the resolver for an operation field. It builds the
// request from the arguments, calls backend once and coerces the result to
// the field's declared type.
func newDispatch(op *oas.Operation, field *schema.Field, inputs *typemap.Registry, backend Backend) Dispatch {
	return func(ctx context.Context, args map[string]any) (any, error) {
		restored := make(map[string]any, len(args))
		for name, v := range args {
			restored[name] = v
		}
		for _, arg := range field.Arguments {
			if v, ok := restored[arg.Name]; ok {
				restored[arg.Name] = restoreKeys(v, arg.Type, inputs)
			}
		}
		raw, err := backend(ctx, op.RequestOptions(restored))
		if err != nil {
			return nil, err
		}
		return Coerce(raw, field.Type), nil
	}
}

// restoreKeys renames input object members back to the property names of
// the document, recursing through lists and nested input objects.
func restoreKeys(v any, ref *schema.TypeRef, inputs *typemap.Registry) any {
	if v == nil || ref == nil {
		return v
	}
	switch ref.Kind {
	case schema.TypeRefKindNonNull:
		return restoreKeys(v, ref.OfType, inputs)
	case schema.TypeRefKindList:
		items, ok := v.([]any)
		if !ok {
			return v
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = restoreKeys(item, ref.OfType, inputs)
		}
		return out
	}
	obj, ok := v.(map[string]any)
	typ := inputs.Type(ref.Named)
	if !ok || typ == nil {
		return v
	}
	out := make(map[string]any, len(obj))
	for name, item := range obj {
		if f := typ.GetInputField(name); f != nil {
			item = restoreKeys(item, f.Type, inputs)
		}
		if source, ok := inputs.SourceName(ref.Named, name); ok {
			name = source
		}
		out[name] = item
	}
	return out
}
