package restrt

import "context"

// Registry describes how the fields of a generated schema resolve.
type Registry interface {
	// GetDispatch returns the resolver for a root operation field, or nil when
	// (objectType, field) is not an operation.
	GetDispatch(objectType, field string) func(ctx context.Context, args map[string]any) (any, error)

	// GetSourceKey returns the key under which field is stored in decoded
	// values of objectType.
	GetSourceKey(objectType, field string) string
}
