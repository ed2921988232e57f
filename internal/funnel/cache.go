package funnel

import "sync"

// orderKey packs a permutation one byte per position. The optimizer
// caps funnels far below 256 steps, so a byte per index is exact.
type orderKey string

func keyFor(order []int) orderKey {
	b := make([]byte, len(order))
	for i, v := range order {
		b[i] = byte(v)
	}
	return orderKey(b)
}

// evalCache memoizes conversion totals per ordering within a single
// optimize invocation; the parameter tuple is fixed at construction.
// Reads may run concurrently; only the coordinating goroutine inserts.
type evalCache struct {
	mu sync.RWMutex
	m  map[orderKey]float64
}

func newEvalCache() *evalCache {
	return &evalCache{m: make(map[orderKey]float64)}
}

func (c *evalCache) get(k orderKey) (float64, bool) {
	c.mu.RLock()
	v, ok := c.m[k]
	c.mu.RUnlock()
	return v, ok
}

func (c *evalCache) put(k orderKey, v float64) {
	c.mu.Lock()
	c.m[k] = v
	c.mu.Unlock()
}
