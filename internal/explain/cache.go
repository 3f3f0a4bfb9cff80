package explain

import "sync"

// narrativeCache memoizes enrichment results by payload hash. A hit skips the
// provider call entirely.
type narrativeCache struct {
	mu      sync.RWMutex
	entries map[string]*narrative
}

func newNarrativeCache() *narrativeCache {
	return &narrativeCache{entries: make(map[string]*narrative)}
}

func (c *narrativeCache) get(key string) (*narrative, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.entries[key]
	return n, ok
}

func (c *narrativeCache) put(key string, n *narrative) {
	c.mu.Lock()
	c.entries[key] = n
	c.mu.Unlock()
}
