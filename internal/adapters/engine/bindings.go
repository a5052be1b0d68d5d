package engine

import (
	"sync"
)

// bindingTable is the in-memory value store for one run: run inputs seed it,
// node outputs land in it, and input resolution consults it before falling
// back to the catalog.
type bindingTable struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

func newBindingTable(seed map[string]interface{}) *bindingTable {
	values := make(map[string]interface{}, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &bindingTable{values: values}
}

func (b *bindingTable) get(key string) (interface{}, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	value, ok := b.values[key]
	return value, ok
}

func (b *bindingTable) put(key string, value interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}
