package worker

import (
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// idemCache is a bounded FIFO idempotency cache: evicts oldest at capacity
// (§4.1 "Cache is bounded (evict oldest at configurable capacity"). Values
// are stored msgpack-encoded — cheaper than JSON for a hot in-memory path
// that is never inspected by a human (SPEC_FULL.md domain-stack table) —
// and decoded back into Result on hit.
//
// Grounded on the registry's resolverCache (mutex-guarded map +
// eviction), generalized from TTL expiry to capacity-bounded FIFO eviction.
type idemCache struct {
	mu       sync.Mutex
	capacity int
	order    []string
	entries  map[string][]byte
}

func newIdemCache(capacity int) *idemCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &idemCache{
		capacity: capacity,
		entries:  make(map[string][]byte, capacity),
	}
}

func (c *idemCache) get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	var res Result
	if err := msgpack.Unmarshal(raw, &res); err != nil {
		return Result{}, false
	}
	return res, true
}

func (c *idemCache) put(key string, res Result) {
	raw, err := msgpack.Marshal(&res)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = raw
}

func (c *idemCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
