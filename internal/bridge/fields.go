package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hanpama/oasgraph/internal/oas"
	"github.com/hanpama/oasgraph/internal/schema"
	"github.com/hanpama/oasgraph/internal/typemap"
)

// Backend performs the actual call for one operation. It owns transport,
// retries and timeouts. Errors are reported on the field unchanged.
type Backend func(ctx context.Context, req *oas.RequestOptions) (any, error)

// Dispatch resolves an operation field from its coerced arguments.
type Dispatch func(ctx context.Context, args map[string]any) (any, error)

// Field binds a root field to the operation it calls.
type Field struct {
	Field     *schema.Field
	Operation *oas.Operation
	Dispatch  Dispatch
}

// FieldMap keeps fields in insertion order. Setting an existing name replaces
// the field in place.
type FieldMap struct {
	names  []string
	fields map[string]*Field
}

func newFieldMap() *FieldMap {
	return &FieldMap{fields: make(map[string]*Field)}
}

func (m *FieldMap) set(name string, f *Field) (replaced bool) {
	if _, ok := m.fields[name]; ok {
		replaced = true
	} else {
		m.names = append(m.names, name)
	}
	m.fields[name] = f
	return replaced
}

func (m *FieldMap) Get(name string) *Field { return m.fields[name] }

func (m *FieldMap) Len() int { return len(m.names) }

// Fields returns the bound fields in order.
func (m *FieldMap) Fields() []*Field {
	out := make([]*Field, 0, len(m.names))
	for _, name := range m.names {
		out = append(out, m.fields[name])
	}
	return out
}

// BindFields builds one field per operation whose mutation flag equals
// mutation. Output types come from out and argument types from in.
func BindFields(ops []*oas.Operation, mutation bool, in, out *typemap.Builder, backend Backend, logger *slog.Logger) (*FieldMap, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bridge")

	fields := newFieldMap()
	for _, op := range ops {
		if op.Mutation != mutation {
			continue
		}
		f, err := bindField(op, in, out, backend, logger)
		if err != nil {
			return nil, fmt.Errorf("operation %s: %w", op.ID, err)
		}
		if fields.set(f.Field.Name, f) {
			logger.Warn("duplicate operation id, later operation wins", "field", f.Field.Name, "method", op.Method, "path", op.Path)
		}
	}
	return fields, nil
}

func bindField(op *oas.Operation, in, out *typemap.Builder, backend Backend, logger *slog.Logger) (*Field, error) {
	typ, err := out.BuildField(op.ID, op.Response, "response", true)
	if err != nil {
		return nil, err
	}
	field := schema.NewField(oas.SanitizeName(op.ID), op.FieldDescription(), typ).SetAsync(true)
	if op.Deprecated {
		field.Deprecate("")
	}

	index := map[string]int{}
	for _, p := range op.Parameters {
		if p.In == oas.InHeader {
			continue
		}
		if p.Schema == nil {
			logger.Debug("skipping parameter without schema", "operation", op.ID, "param", p.SourceName)
			continue
		}
		argType, err := in.BuildField("param_"+op.ID, p.Schema, p.Name, p.Required)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.SourceName, err)
		}
		arg := schema.NewInputValue(p.Name, p.Description, argType)
		if i, ok := index[p.Name]; ok {
			field.Arguments[i] = arg
			continue
		}
		index[p.Name] = len(field.Arguments)
		field.AddArgument(arg)
	}

	return &Field{
		Field:     field,
		Operation: op,
		Dispatch:  newDispatch(op, field, in.Registry(), backend),
	}, nil
}
