package catalog

import (
	"context"
	"sync"

	"github.com/eleven-am/meandra/internal/domain"
	"github.com/eleven-am/meandra/internal/ports"
)

// Memory is an in-memory catalog for tests and fully ephemeral runs. Keys
// listed at construction behave as persistent entries; everything else is
// absent until seeded or saved.
type Memory struct {
	mu         sync.RWMutex
	values     map[string]interface{}
	persistent map[string]struct{}
	locations  map[string]string
}

func NewMemory(persistentKeys ...string) *Memory {
	m := &Memory{
		values:     make(map[string]interface{}),
		persistent: make(map[string]struct{}, len(persistentKeys)),
		locations:  make(map[string]string),
	}
	for _, key := range persistentKeys {
		m.persistent[key] = struct{}{}
	}
	return m
}

// Seed stores a value directly, as if a previous run had produced it.
func (m *Memory) Seed(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.locations[key] = "mem://" + key
}

func (m *Memory) ForRun(rc *domain.RunContext) ports.CatalogPort { return m }

func (m *Memory) Load(ctx context.Context, key string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, &domain.NotFoundError{Key: key}
	}
	return value, nil
}

func (m *Memory) Save(ctx context.Context, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.locations[key] = "mem://" + key
	return nil
}

func (m *Memory) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.values[key]
	return ok
}

func (m *Memory) IsPersistent(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.persistent[key]
	return ok
}

func (m *Memory) Location(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[key]
	return loc, ok
}

func (m *Memory) Bind(key, location string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[key] = location
}
