package schema

import (
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Cache holds compiled schemas keyed by name. Entries are immutable once
// loaded, so concurrent readers share them without further locking. The cache
// is an explicitly owned object injected into the Validator; there is no
// process-wide singleton.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*jsonschema.Schema
}

// NewCache creates an empty compiled-schema cache.
func NewCache() *Cache {
	return &Cache{items: make(map[string]*jsonschema.Schema)}
}

// GetOrCompile returns the cached schema for name, compiling and storing it
// on first use. Failed compiles are not cached, so a registry that later
// gains the schema is retried.
func (c *Cache) GetOrCompile(name string, compile func() (*jsonschema.Schema, error)) (*jsonschema.Schema, error) {
	c.mu.RLock()
	sch, ok := c.items[name]
	c.mu.RUnlock()
	if ok {
		return sch, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have compiled it while we waited for the lock.
	if sch, ok := c.items[name]; ok {
		return sch, nil
	}
	sch, err := compile()
	if err != nil {
		return nil, err
	}
	c.items[name] = sch
	return sch, nil
}

// Size returns the number of compiled schemas currently cached.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
