// Package reqid tags a request context with an id shared by its logs, spans
// and backend calls.
package reqid

import (
	"context"
	"math/rand/v2"
)

type key struct{}

// NewContext stores a fresh positive id in parent.
func NewContext(parent context.Context) (context.Context, int64) {
	id := rand.Int64N(1<<63-1) + 1
	return context.WithValue(parent, key{}, id), id
}

func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(key{}).(int64)
	return id, ok
}
