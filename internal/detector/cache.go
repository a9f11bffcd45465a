package detector

import "github.com/driftlock/driftlock/internal/state"

// Cache is an O(1)-lookup view over an object-store cache snapshot, built
// once per run and consulted by every Detect call.
type Cache struct {
	keys map[string]struct{}
}

// NewCache indexes oc.Files for fast membership checks.
func NewCache(oc *state.ObjectCache) *Cache {
	c := &Cache{keys: make(map[string]struct{}, len(oc.Files))}
	for _, f := range oc.Files {
		c.keys[f] = struct{}{}
	}
	return c
}

// Has reports whether key is present in the cached snapshot.
func (c *Cache) Has(key string) bool {
	_, ok := c.keys[key]
	return ok
}

// Len returns the number of distinct keys in the cache.
func (c *Cache) Len() int {
	return len(c.keys)
}
