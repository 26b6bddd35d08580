package executor

import (
	"context"
	"fmt"

	language "github.com/hanpama/oasgraph/internal/language"
	schema "github.com/hanpama/oasgraph/internal/schema"
)

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// execution is the state of one ExecuteRequest call.
type execution struct {
	ctx     context.Context
	runtime Runtime
	schema  *schema.Schema
	doc     *language.QueryDocument
	vars    map[string]any

	data   map[string]any
	errors []GraphQLError
	// queue holds the async fields found while walking the current depth.
	queue []*pending
}

// pending is a queued async field. set stores its completed value in the
// slot the field occupies in its parent object.
type pending struct {
	task      AsyncResolveTask
	fieldType *schema.TypeRef
	fields    []*language.Field
	path      Path
	set       func(any)
	dropped   bool
}

// ExecuteRequest runs the named operation of document, or its only operation
// when operationName is empty. initialValue is the source of root fields.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	op, err := selectOperation(document, operationName)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
	}
	root, err := e.rootType(op)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
	}
	vars, err := coerceVariableValues(e.schema, op, variableValues)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
	}

	ex := &execution{
		ctx:     ctx,
		runtime: e.runtime,
		schema:  e.schema,
		doc:     document,
		vars:    vars,
	}
	ex.data = ex.executeSelectionSet(root, op.SelectionSet, initialValue, nil)
	if ex.data == nil {
		ex.data = map[string]any{}
	}
	for len(ex.queue) > 0 {
		ex.runDepth()
	}
	return &ExecutionResult{Data: ex.data, Errors: ex.errors}
}

func (e *Executor) rootType(op *language.OperationDefinition) (*schema.Type, error) {
	var t *schema.Type
	switch op.Operation {
	case language.Query:
		t = e.schema.GetQueryType()
	case language.Mutation:
		t = e.schema.GetMutationType()
	case language.Subscription:
		return nil, fmt.Errorf("subscriptions are not supported")
	default:
		return nil, fmt.Errorf("unsupported operation type %q", op.Operation)
	}
	if t == nil {
		return nil, fmt.Errorf("schema does not support %s operations", op.Operation)
	}
	return t, nil
}

func selectOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, error) {
	if name == "" {
		if len(doc.Operations) != 1 {
			return nil, fmt.Errorf("operation name is required when the document has %d operations", len(doc.Operations))
		}
		return doc.Operations[0], nil
	}
	for _, op := range doc.Operations {
		if op.Name == name {
			return op, nil
		}
	}
	return nil, fmt.Errorf("unknown operation %q", name)
}

// runDepth resolves the queued async fields in one batch and completes
// them. Async fields found during completion form the next depth.
func (ex *execution) runDepth() {
	var batch []*pending
	for _, p := range ex.queue {
		if !p.dropped {
			batch = append(batch, p)
		}
	}
	ex.queue = nil
	if len(batch) == 0 {
		return
	}

	if err := ex.ctx.Err(); err != nil {
		for _, p := range batch {
			if !p.dropped {
				ex.fail(p, err, batch)
			}
		}
		return
	}

	tasks := make([]AsyncResolveTask, len(batch))
	for i, p := range batch {
		tasks[i] = p.task
	}
	results := ex.runtime.BatchResolveAsync(ex.ctx, tasks)

	for i, p := range batch {
		if p.dropped {
			continue
		}
		if i >= len(results) {
			ex.fail(p, fmt.Errorf("runtime returned no result for %s.%s", p.task.ObjectType, p.task.Field), batch)
			continue
		}
		res := results[i]
		if res.Error != nil {
			ex.fail(p, res.Error, batch)
			continue
		}
		start := len(ex.queue)
		v := ex.completeValue(p.fieldType, p.fields, res.Value, p.path)
		if isNullish(v) {
			if schema.IsNonNull(p.fieldType) {
				ex.dropFrom(start)
				ex.nullRoot(p.path, batch)
				continue
			}
			v = nil
		}
		p.set(v)
	}
}

// fail records err at the field and applies Non-Null propagation.
func (ex *execution) fail(p *pending, err error, batch []*pending) {
	ex.addError(err.Error(), p.path)
	if schema.IsNonNull(p.fieldType) {
		ex.nullRoot(p.path, batch)
		return
	}
	p.set(nil)
}

// nullRoot nulls the root field containing path and drops every field still
// queued below it. Violations raised by queued fields propagate to the root
// field rather than to the nearest nullable ancestor.
func (ex *execution) nullRoot(path Path, batch []*pending) {
	root, ok := rootName(path)
	if !ok {
		return
	}
	ex.data[root] = nil
	for _, list := range [][]*pending{ex.queue, batch} {
		for _, p := range list {
			if r, _ := rootName(p.path); r == root {
				p.dropped = true
			}
		}
	}
}

// dropFrom drops every field queued since the queue had length start.
func (ex *execution) dropFrom(start int) {
	for _, p := range ex.queue[start:] {
		p.dropped = true
	}
}

func (ex *execution) addError(msg string, path Path) {
	ex.errors = append(ex.errors, GraphQLError{Message: msg, Path: path})
}

// hasErrorWithin reports whether an error was recorded at path or below it.
func (ex *execution) hasErrorWithin(path Path) bool {
	for _, err := range ex.errors {
		if len(err.Path) >= len(path) && path.Equal(err.Path[:len(path)]) {
			return true
		}
	}
	return false
}
