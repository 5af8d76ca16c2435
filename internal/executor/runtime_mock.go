package executor

import (
	"context"
	"errors"
	"sync"
)

// MockResolver resolves one field for one source value.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// NewMockValueResolver resolves every call to val.
func NewMockValueResolver(val any) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return val, nil }
}

// NewMockErrorResolver fails every call with err.
func NewMockErrorResolver(err error) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// Call is one recorded resolver invocation. Kind is "sync" or "async"; async
// calls flushed together share a BatchID starting at 1.
type Call struct {
	Kind       string
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
	BatchID    int
}

// MockRuntime is a Runtime backed by resolvers keyed "Type.field". Fields
// without a resolver resolve null. Abstract values are maps carrying a
// "__typename" key, and leaves pass through unchanged unless a parser is set.
type MockRuntime struct {
	resolvers map[string]MockResolver

	mu      sync.Mutex
	parse   func(typeName string, val any) (any, error)
	calls   []Call
	batches int
}

func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{resolvers: make(map[string]MockResolver, len(resolvers))}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

// SetLeafParser installs the hook behind ParseLeafValue.
func SetLeafParser(r *MockRuntime, f func(typeName string, val any) (any, error)) {
	r.mu.Lock()
	r.parse = f
	r.mu.Unlock()
}

func (m *MockRuntime) call(ctx context.Context, c Call) (any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
	if r := m.resolvers[c.ObjectType+"."+c.Field]; r != nil {
		return r(ctx, c.Source, c.Args)
	}
	return nil, nil
}

func (m *MockRuntime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	return m.call(ctx, Call{Kind: "sync", ObjectType: objectType, Field: field, Source: source, Args: args})
}

// BatchResolveAsync resolves tasks grouped by field, groups in order of first
// appearance, and returns results in task order.
func (m *MockRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	if len(tasks) == 0 {
		return nil
	}
	m.mu.Lock()
	m.batches++
	batch := m.batches
	m.mu.Unlock()

	var order []string
	groups := map[string][]int{}
	for i, t := range tasks {
		key := t.ObjectType + "." + t.Field
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	results := make([]AsyncResolveResult, len(tasks))
	for _, key := range order {
		for _, i := range groups[key] {
			t := tasks[i]
			v, err := m.call(ctx, Call{Kind: "async", ObjectType: t.ObjectType, Field: t.Field, Source: t.Source, Args: t.Args, BatchID: batch})
			results[i] = AsyncResolveResult{Value: v, Error: err}
		}
	}
	return results
}

func (m *MockRuntime) ResolveType(_ context.Context, _ string, value any) (string, error) {
	if obj, ok := value.(map[string]any); ok {
		if name, ok := obj["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", errors.New("cannot resolve type")
}

func (m *MockRuntime) ParseLeafValue(_ context.Context, typeName string, value any) (any, error) {
	m.mu.Lock()
	parse := m.parse
	m.mu.Unlock()
	if parse == nil {
		return value, nil
	}
	return parse(typeName, value)
}

func (m *MockRuntime) SerializeLeafValue(_ context.Context, _ string, value any) (any, error) {
	return value, nil
}

// GetCalls returns the recorded calls in order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
