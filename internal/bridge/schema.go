package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hanpama/oasgraph/internal/oas"
	"github.com/hanpama/oasgraph/internal/schema"
	"github.com/hanpama/oasgraph/internal/typemap"
)

const (
	queryTypeName    = "Query"
	mutationTypeName = "Mutation"
)

type options struct {
	logger      *slog.Logger
	description string
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDescription sets the schema description.
func WithDescription(d string) Option {
	return func(o *options) { o.description = d }
}

// Executable is a generated schema together with the bindings needed to
// resolve its fields. It satisfies restrt.Registry.
type Executable struct {
	Schema    *schema.Schema
	Queries   *FieldMap
	Mutations *FieldMap

	inputs  *typemap.Registry
	outputs *typemap.Registry
}

// CreateSchema builds the GraphQL schema for ops. Every field dispatches to
// backend. Query always exists; Mutation only when some operation is a
// mutation. All deferred members are forced before returning, so any build
// error is reported here.
func CreateSchema(ops []*oas.Operation, backend Backend, opts ...Option) (*Executable, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "bridge")

	inputs := typemap.NewRegistry(typemap.Input)
	outputs := typemap.NewRegistry(typemap.Output)
	in := typemap.NewBuilder(inputs, o.logger)
	out := typemap.NewBuilder(outputs, o.logger)

	queries, err := BindFields(ops, false, in, out, backend, o.logger)
	if err != nil {
		return nil, err
	}
	mutations, err := BindFields(ops, true, in, out, backend, o.logger)
	if err != nil {
		return nil, err
	}

	sch := schema.NewSchema(o.description).AddBuiltins()
	query := schema.NewType(queryTypeName, schema.TypeKindObject, "")
	for _, f := range queries.Fields() {
		query.AddField(f.Field)
	}
	if queries.Len() == 0 {
		logger.Warn("no query operations, Query root has no fields")
	}
	sch.AddType(query).SetQueryType(queryTypeName)
	if mutations.Len() > 0 {
		mutation := schema.NewType(mutationTypeName, schema.TypeKindObject, "")
		for _, f := range mutations.Fields() {
			mutation.AddField(f.Field)
		}
		sch.AddType(mutation).SetMutationType(mutationTypeName)
	}

	if err := collect(sch, inputs, outputs); err != nil {
		return nil, err
	}
	logger.Debug("schema created",
		"queries", queries.Len(),
		"mutations", mutations.Len(),
		"outputTypes", outputs.Len(),
		"inputTypes", inputs.Len(),
	)
	return &Executable{
		Schema:    sch,
		Queries:   queries,
		Mutations: mutations,
		inputs:    inputs,
		outputs:   outputs,
	}, nil
}

// collect walks the types reachable from the roots, forcing deferred members
// and adding every generated type to sch. A name claimed by more than one
// type is an error.
func collect(sch *schema.Schema, inputs, outputs *typemap.Registry) error {
	seen := map[string]bool{}
	stack := []string{sch.QueryType}
	if sch.MutationType != "" {
		stack = append(stack, sch.MutationType)
	}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		var owners []*schema.Type
		for _, t := range []*schema.Type{sch.Types[name], outputs.Type(name), inputs.Type(name)} {
			if t != nil {
				owners = append(owners, t)
			}
		}
		switch len(owners) {
		case 0:
			return fmt.Errorf("bridge: unknown type %s", name)
		case 1:
		default:
			return fmt.Errorf("bridge: type name %s is defined more than once", name)
		}
		t := owners[0]
		if err := t.Resolve(); err != nil {
			return err
		}
		sch.AddType(t)

		for _, f := range t.GetOrderedFields() {
			stack = append(stack, f.Type.GetNamedType())
			for _, arg := range f.GetOrderedArguments() {
				stack = append(stack, arg.Type.GetNamedType())
			}
		}
		for _, v := range t.GetOrderedInputFields() {
			stack = append(stack, v.Type.GetNamedType())
		}
	}
	return nil
}

// GetDispatch returns the resolver bound to a root field, or nil.
func (e *Executable) GetDispatch(objectType, field string) func(ctx context.Context, args map[string]any) (any, error) {
	var fields *FieldMap
	switch objectType {
	case e.Schema.QueryType:
		fields = e.Queries
	case e.Schema.MutationType:
		fields = e.Mutations
	}
	if fields == nil {
		return nil
	}
	if f := fields.Get(field); f != nil {
		return f.Dispatch
	}
	return nil
}

// GetSourceKey returns the key holding field in decoded values of
// objectType. It differs from field when the property name had to be
// sanitized.
func (e *Executable) GetSourceKey(objectType, field string) string {
	if source, ok := e.outputs.SourceName(objectType, field); ok {
		return source
	}
	return field
}
