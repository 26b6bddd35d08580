package executor

import "context"

// Runtime is what the Executor calls to produce field values.
//
// Execution is breadth-first. Sync fields of a depth are resolved as they are
// met with ResolveSync; async fields are queued and handed to
// BatchResolveAsync once per depth, after the sync work of that depth is done.
// Fields below a null produced by a Non-Null violation are never dispatched.
//
// Implementations may be called concurrently by different requests and must
// not mutate sources or args.
type Runtime interface {
	// ResolveSync returns the raw value of a field not marked async. It is
	// never called for async fields. A nil value completes to null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves every async field queued at one depth.
	// results[i] belongs to tasks[i] and an error in one result leaves the
	// others intact.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// SerializeLeafValue converts a raw scalar or enum value into its
	// response form.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

type AsyncResolveTask struct {
	ObjectType string
	Field      string
	// Source is the parent value, nil for root fields.
	Source any
	Args   map[string]any
}

type AsyncResolveResult struct {
	Value any
	Error error
}
