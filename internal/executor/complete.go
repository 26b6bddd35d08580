package executor

import (
	"fmt"
	"reflect"

	language "github.com/hanpama/oasgraph/internal/language"
	schema "github.com/hanpama/oasgraph/internal/schema"
)

// executeSelectionSet resolves the sync fields of selection against source
// and queues the async ones. It returns nil when a Non-Null field of a
// nested object completed to null; fields queued for that object are then
// dropped.
func (ex *execution) executeSelectionSet(objectType *schema.Type, selection language.SelectionSet, source any, path Path) map[string]any {
	start := len(ex.queue)
	out := make(map[string]any)
	for _, group := range ex.collectFields(objectType, selection) {
		name := group.responseName
		fieldPath := path.With(name)
		first := group.fields[0]

		if first.Name == "__typename" {
			out[name] = objectType.Name
			continue
		}
		def := objectType.GetField(first.Name)
		if def == nil {
			ex.addError(fmt.Sprintf("Cannot query field %q on type %q", first.Name, objectType.Name), fieldPath)
			continue
		}

		args := ex.coerceArguments(def, first.Arguments, fieldPath)
		if def.Async {
			out[name] = nil
			ex.queue = append(ex.queue, &pending{
				task: AsyncResolveTask{
					ObjectType: objectType.Name,
					Field:      def.Name,
					Source:     source,
					Args:       args,
				},
				fieldType: def.Type,
				fields:    group.fields,
				path:      fieldPath,
				set:       func(v any) { out[name] = v },
			})
			continue
		}

		v, err := ex.runtime.ResolveSync(ex.ctx, objectType.Name, def.Name, source, args)
		if err != nil {
			ex.addError(err.Error(), fieldPath)
			v = nil
		}
		v = ex.completeValue(def.Type, group.fields, v, fieldPath)
		if isNullish(v) {
			if schema.IsNonNull(def.Type) && len(path) > 0 {
				ex.dropFrom(start)
				return nil
			}
			v = nil
		}
		out[name] = v
	}
	return out
}

// completeValue shapes a raw resolved value after fieldType. A Non-Null
// violation is reported once, at the deepest path involved, and yields nil.
func (ex *execution) completeValue(fieldType *schema.TypeRef, fields []*language.Field, value any, path Path) any {
	if schema.IsNonNull(fieldType) {
		v := ex.completeValue(schema.Unwrap(fieldType), fields, value, path)
		if isNullish(v) {
			if !ex.hasErrorWithin(path) {
				ex.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", path), path)
			}
			return nil
		}
		return v
	}
	if isNullish(value) {
		return nil
	}
	if schema.IsList(fieldType) {
		return ex.completeList(schema.Unwrap(fieldType), fields, value, path)
	}

	name := schema.GetNamedType(fieldType)
	t := ex.schema.Types[name]
	if t == nil {
		ex.addError(fmt.Sprintf("unknown type %s", name), path)
		return nil
	}
	switch t.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		v, err := ex.runtime.SerializeLeafValue(ex.ctx, name, value)
		if err != nil {
			ex.addError(err.Error(), path)
			return nil
		}
		return v
	case schema.TypeKindObject:
		var sub language.SelectionSet
		for _, f := range fields {
			sub = append(sub, f.SelectionSet...)
		}
		return ex.executeSelectionSet(t, sub, value, path)
	default:
		ex.addError(fmt.Sprintf("cannot complete a value of %s type %s", t.Kind, name), path)
		return nil
	}
}

func (ex *execution) completeList(itemType *schema.TypeRef, fields []*language.Field, value any, path Path) any {
	items, ok := value.([]any)
	if !ok {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			ex.addError(fmt.Sprintf("expected a list, got %T", value), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	start := len(ex.queue)
	out := make([]any, len(items))
	for i, item := range items {
		v := ex.completeValue(itemType, fields, item, path.With(i))
		if isNullish(v) {
			if schema.IsNonNull(itemType) {
				ex.dropFrom(start)
				return nil
			}
			v = nil
		}
		out[i] = v
	}
	return out
}

// isNullish reports nil interfaces and typed nils.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
