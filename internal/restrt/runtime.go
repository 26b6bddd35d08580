package restrt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/hanpama/oasgraph/internal/executor"
)

// Runtime implements executor.Runtime for schemas generated from an API
// document.
//   - Root operation fields are async. Each task calls the registered dispatch
//     exactly once; tasks run in parallel and results keep task order.
//   - Nested fields are sync and read decoded JSON objects (map[string]any)
//     by source key. A missing key resolves to null.
type Runtime struct {
	reg Registry
}

var _ executor.Runtime = (*Runtime)(nil)

func NewRuntime(registry Registry) executor.Runtime {
	return &Runtime{reg: registry}
}

// ResolveSync reads field from a decoded object. It never performs I/O.
func (r *Runtime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	_ = ctx
	_ = args

	switch src := source.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return src[r.reg.GetSourceKey(objectType, field)], nil
	default:
		return nil, fmt.Errorf("restrt: value for %s must be an object, got %T", objectType, source)
	}
}

// BatchResolveAsync runs the dispatch of every task. Tasks run concurrently,
// so dispatch functions must be safe for concurrent use.
func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	run := func(i int) {
		t := tasks[i]
		dispatch := r.reg.GetDispatch(t.ObjectType, t.Field)
		if dispatch == nil {
			results[i] = executor.AsyncResolveResult{Error: fmt.Errorf("restrt: no operation bound to %s.%s", t.ObjectType, t.Field)}
			return
		}
		v, err := dispatch(ctx, t.Args)
		results[i] = executor.AsyncResolveResult{Value: v, Error: err}
	}

	if len(tasks) == 1 {
		run(0)
		return results
	}
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i := range tasks {
		go func(i int) {
			defer wg.Done()
			run(i)
		}(i)
	}
	wg.Wait()
	return results
}

// SerializeLeafValue converts a decoded JSON value to the output form of the
// named scalar. JSON values pass through untouched.
func (r *Runtime) SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch scalarOrEnumTypeName {
	case "String", "ID":
		return serializeString(value)
	case "Int":
		return serializeInt(value)
	case "Float":
		return serializeFloat(value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent %v", value)
	default:
		return value, nil
	}
}

func serializeString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return base64.StdEncoding.EncodeToString(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("String cannot represent %T: %w", value, err)
	}
	return string(b), nil
}

func serializeInt(value any) (any, error) {
	var f float64
	switch v := value.(type) {
	case int:
		f = float64(v)
	case int32:
		return v, nil
	case int64:
		f = float64(v)
	case float32:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("Int cannot represent %s", v)
		}
		f = float64(n)
	default:
		return nil, fmt.Errorf("Int cannot represent %v", value)
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil, fmt.Errorf("Int cannot represent %v", value)
	}
	return int32(f), nil
}

func serializeFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("Float cannot represent %s", v)
		}
		return f, nil
	}
	return nil, fmt.Errorf("Float cannot represent %v", value)
}
