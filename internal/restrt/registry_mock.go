package restrt

import "context"

// MockRegistry is a test helper that registers dispatch functions and source
// keys per (objectType, field).
type MockRegistry struct {
	dispatch   map[[2]string]func(ctx context.Context, args map[string]any) (any, error)
	sourceKeys map[[2]string]string
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		dispatch:   map[[2]string]func(ctx context.Context, args map[string]any) (any, error){},
		sourceKeys: map[[2]string]string{},
	}
}

// RegisterDispatch maps (objectType, field) to a dispatch function.
func (m *MockRegistry) RegisterDispatch(objectType, field string, fn func(ctx context.Context, args map[string]any) (any, error)) *MockRegistry {
	m.dispatch[[2]string{objectType, field}] = fn
	return m
}

// RegisterSourceKey maps (objectType, field) to the key read from decoded values.
func (m *MockRegistry) RegisterSourceKey(objectType, field, key string) *MockRegistry {
	m.sourceKeys[[2]string{objectType, field}] = key
	return m
}

func (m *MockRegistry) GetDispatch(objectType, field string) func(ctx context.Context, args map[string]any) (any, error) {
	return m.dispatch[[2]string{objectType, field}]
}

func (m *MockRegistry) GetSourceKey(objectType, field string) string {
	if key, ok := m.sourceKeys[[2]string{objectType, field}]; ok {
		return key
	}
	return field
}
