package usecases_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/samirrijal/soundlines/internal/core/domain"
	"github.com/samirrijal/soundlines/internal/core/ports"
)

// --- Mock DataSource ---

type mockSource struct {
	initFn     func(ctx context.Context) error
	entitiesFn func(ctx context.Context) ([]byte, error)
	cellsFn    func(ctx context.Context) ([]byte, error)

	entityCalls atomic.Int32
	cellCalls   atomic.Int32
}

func (m *mockSource) Initialize(ctx context.Context) error {
	if m.initFn != nil {
		return m.initFn(ctx)
	}
	return nil
}

func (m *mockSource) FetchEntitiesRaw(ctx context.Context) ([]byte, error) {
	m.entityCalls.Add(1)
	if m.entitiesFn != nil {
		return m.entitiesFn(ctx)
	}
	return []byte(`{"entities":[]}`), nil
}

func (m *mockSource) FetchCellsRaw(ctx context.Context) ([]byte, error) {
	m.cellCalls.Add(1)
	if m.cellsFn != nil {
		return m.cellsFn(ctx)
	}
	return []byte(`{"cells":[]}`), nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu    sync.Mutex
	data  map[string][]byte
	getFn func(ctx context.Context, key string) ([]byte, error)
	sets  int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// --- Mock SnapshotPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.SnapshotEvent
}

func (m *mockPublisher) PublishSnapshotEvent(ctx context.Context, event domain.SnapshotEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.Kind)
	}
	return out
}
